// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"binmaps/internal/app"
	"binmaps/internal/domain"
)

type Handlers struct {
	Q *app.QueryService
	// Origin is searched when the caller sends no coordinates. Zero means DefaultOrigin.
	Origin domain.Coords
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type placeView struct {
	domain.ScoredPlace
	Category domain.Category `json:"category"`
}

type placesResponse struct {
	CycleID string        `json:"cycle_id"`
	Origin  domain.Coords `json:"origin"`
	Reason  string        `json:"reason"`
	Places  []placeView   `json:"places"`
}

type cycleResponse struct {
	domain.CycleRecord
	Places []placeView `json:"places"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/places/stream", h.streamPlaces)
	s.mux.Group(func(r chi.Router) {
		if s.timeout > 0 {
			r.Use(Timeout(s.timeout))
		}
		r.Get("/v1/places", h.searchPlaces)
		r.Get("/v1/cycles/{id}", h.getCycle)
		r.Get("/v1/categories", h.getCategory)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	return etagOf(body), body
}

func etagOf(b []byte) string {
	sum := sha1.Sum(b)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`
}

// writeJSON honours If-None-Match before writing body with the given ETag.
func writeJSON(w http.ResponseWriter, r *http.Request, etag string, body []byte) {
	if etag != "" {
		if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
			w.Header().Set("ETag", etag)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to write body")
	}
}

// parseOrigin reads lat/lng. Both absent selects def; anything else must be
// a pair of in-range numbers.
func parseOrigin(r *http.Request, def domain.Coords) (domain.Coords, error) {
	q := r.URL.Query()
	latS, lngS := strings.TrimSpace(q.Get("lat")), strings.TrimSpace(q.Get("lng"))
	if latS == "" && lngS == "" {
		return def, nil
	}
	if latS == "" || lngS == "" {
		return domain.Coords{}, errors.New("lat and lng must be given together")
	}
	lat, err := strconv.ParseFloat(latS, 64)
	if err != nil {
		return domain.Coords{}, fmt.Errorf("lat %q is not a number", latS)
	}
	lng, err := strconv.ParseFloat(lngS, 64)
	if err != nil {
		return domain.Coords{}, fmt.Errorf("lng %q is not a number", lngS)
	}
	c := domain.Coords{Lat: lat, Lng: lng}
	if !c.Valid() {
		return domain.Coords{}, errors.New("lat must be within [-90,90] and lng within [-180,180]")
	}
	return c, nil
}

func (h *Handlers) defaultOrigin() domain.Coords {
	if h.Origin == (domain.Coords{}) {
		return domain.DefaultOrigin
	}
	return h.Origin
}

func views(places []domain.ScoredPlace) []placeView {
	out := make([]placeView, 0, len(places))
	for _, p := range places {
		out = append(out, placeView{ScoredPlace: p, Category: app.DisplayCategory(p.MatchedTerm)})
	}
	return out
}

func (h *Handlers) searchPlaces(w http.ResponseWriter, r *http.Request) {
	origin, err := parseOrigin(r, h.defaultOrigin())
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid origin", err.Error())
		return
	}
	rec, err := h.Q.Search(r.Context(), origin)
	if err != nil {
		// the caller went away or the request deadline hit first
		writeProblem(w, http.StatusServiceUnavailable, "Search aborted", err.Error())
		return
	}

	resp := placesResponse{CycleID: rec.ID, Origin: rec.Origin, Reason: rec.Reason, Places: views(rec.Places)}
	body, err := json.Marshal(resp)
	if err != nil {
		log.Error().Err(err).Msg("marshal places response")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	// cycle ids differ on every request, so the tag covers the result only
	tagBody, _ := json.Marshal(struct {
		Reason string      `json:"reason"`
		Places []placeView `json:"places"`
	}{resp.Reason, resp.Places})
	writeJSON(w, r, etagOf(tagBody), body)
}

func (h *Handlers) getCycle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.Q.GetCycle(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Not Found", "cycle not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("cycle", id).Msg("get cycle")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	etag, body := calcETagAndBody(cycleResponse{CycleRecord: rec, Places: views(rec.Places)})
	writeJSON(w, r, etag, body)
}

func (h *Handlers) getCategory(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("term")
	if strings.TrimSpace(term) == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid term", "term is required")
		return
	}
	etag, body := calcETagAndBody(struct {
		Term     string          `json:"term"`
		Category domain.Category `json:"category"`
	}{term, app.DisplayCategory(term)})
	writeJSON(w, r, etag, body)
}
