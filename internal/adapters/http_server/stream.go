package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"binmaps/internal/domain"
)

// updateQueue hands cycle updates from the event loop to the writer without
// ever blocking the loop.
type updateQueue struct {
	mu   sync.Mutex
	buf  []domain.Update
	wake chan struct{}
}

func newUpdateQueue() *updateQueue { return &updateQueue{wake: make(chan struct{}, 1)} }

func (q *updateQueue) Observe(u domain.Update) {
	q.mu.Lock()
	q.buf = append(q.buf, u)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *updateQueue) drain() []domain.Update {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.buf
	q.buf = nil
	return out
}

type streamEvent struct {
	CycleID string      `json:"cycle_id"`
	Place   *placeView  `json:"place,omitempty"`
	Places  []placeView `json:"places,omitempty"`
	Reason  string      `json:"reason,omitempty"`
}

// streamPlaces pushes a cycle as server-sent events. The stream closes after
// the completion event, except after an early "empty" signal where it stays
// open for the final ranked set.
func (h *Handlers) streamPlaces(w http.ResponseWriter, r *http.Request) {
	origin, err := parseOrigin(r, h.defaultOrigin())
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid origin", err.Error())
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "")
		return
	}

	queue := newUpdateQueue()
	c := h.Q.NewPipeline().StartCycle(r.Context(), origin, queue)
	// saved once settled, so places that land after an early "empty" are kept
	go func() {
		<-c.Settled()
		if c.Reason() != domain.ReasonSuperseded {
			h.Q.Save(r.Context(), c.Record())
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// a little past the deadline so a final rank after "empty" can land
	giveUp := time.NewTimer(time.Until(c.Deadline()) + time.Second)
	defer giveUp.Stop()

	afterEmpty := false
	for {
		select {
		case <-r.Context().Done():
			log.Debug().Str("cycle", c.ID()).Msg("stream client went away")
			return
		case <-giveUp.C:
			return
		case <-queue.wake:
		}
		for _, u := range queue.drain() {
			if err := writeEvent(w, u); err != nil {
				log.Debug().Err(err).Str("cycle", c.ID()).Msg("stream write failed")
				return
			}
			flusher.Flush()
			switch {
			case u.Kind == domain.UpdateComplete && u.Reason == domain.ReasonEmpty:
				afterEmpty = true
			case u.Kind == domain.UpdateComplete:
				return
			case u.Kind == domain.UpdateRanked && afterEmpty:
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, u domain.Update) error {
	ev := streamEvent{CycleID: u.CycleID, Reason: string(u.Reason)}
	switch u.Kind {
	case domain.UpdatePlace:
		v := views([]domain.ScoredPlace{*u.Place})[0]
		ev.Place = &v
	case domain.UpdateRanked:
		ev.Places = views(u.Ranked)
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", u.Kind, b)
	return err
}
