// internal/adapters/places/client.go
package places

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"binmaps/internal/adapters/observability"
	"binmaps/internal/domain"
)

const DefaultBase = "https://maps.googleapis.com/maps/api/place"

// Client speaks the Places Text Search JSON API.
type Client struct {
	base string
	hc   *http.Client
	key  string
	rl   *rate.Limiter
}

func New(base, key string, rps int) (*Client, error) {
	if base == "" {
		base = DefaultBase
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("places base url: %w", err)
	}
	if rps <= 0 {
		rps = 10
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: 20 * time.Second},
		key:  key,
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// Available is false without an API key; cycles then complete empty at once.
func (c *Client) Available() bool { return c != nil && c.key != "" }

// TextSearch returns the first page of results for query around origin.
// ZERO_RESULTS is an empty success.
func (c *Client) TextSearch(ctx context.Context, origin domain.Coords, radiusMeters int, query string) ([]domain.RawPlace, error) {
	if !c.Available() {
		return nil, domain.ErrProviderUnavailable
	}
	q := url.Values{}
	q.Set("query", query)
	q.Set("location", strconv.FormatFloat(origin.Lat, 'f', -1, 64)+","+strconv.FormatFloat(origin.Lng, 'f', -1, 64))
	q.Set("radius", strconv.Itoa(radiusMeters))
	q.Set("key", c.key)

	var out searchResponse
	if err := c.get(ctx, c.base+"/textsearch/json?"+q.Encode(), &out); err != nil {
		return nil, fmt.Errorf("text search %q: %w", query, err)
	}
	if err := statusErr(out.Status, out.ErrorMessage); err != nil {
		return nil, fmt.Errorf("text search %q: %w", query, err)
	}
	places := make([]domain.RawPlace, 0, len(out.Results))
	for _, r := range out.Results {
		places = append(places, mapPlace(r))
	}
	return places, nil
}

type searchResponse struct {
	Results      []map[string]any `json:"results"`
	Status       string           `json:"status"` // OK, ZERO_RESULTS, OVER_QUERY_LIMIT, ...
	ErrorMessage string           `json:"error_message,omitempty"`
}

func statusErr(status, msg string) error {
	var base error
	switch status {
	case "OK", "ZERO_RESULTS", "":
		return nil
	case "OVER_QUERY_LIMIT":
		base = domain.ErrQuotaExceeded
	case "REQUEST_DENIED":
		base = domain.ErrProviderDenied
	case "INVALID_REQUEST":
		base = domain.ErrInvalidRequest
	default:
		base = fmt.Errorf("status %s", status)
	}
	if msg != "" {
		return fmt.Errorf("%w: %s", base, msg)
	}
	return base
}

// ---- Internals ----

// get performs a GET with client-side rate limiting, retries, and JSON decode into out.
// Retries on 429 and transient 5xx, honoring Retry-After when provided.
func (c *Client) get(ctx context.Context, rawURL string, out any) error {
	// client-side rate limiting
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "binmaps/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("places", "textsearch", 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal("places", "textsearch", resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("decoding response: %w", err)
			}
			return nil

		case http.StatusNotFound:
			resp.Body.Close()
			return domain.ErrNotFound

		case http.StatusUnauthorized, http.StatusForbidden:
			resp.Body.Close()
			return domain.ErrProviderDenied

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no attempt succeeded")
	}
	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff returns 200ms, 400ms, 800ms... plus up to 50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
