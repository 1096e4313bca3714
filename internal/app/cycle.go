package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"binmaps/internal/adapters/observability"
	"binmaps/internal/domain"
)

// Cycle is one search for one origin. Its running result set is written only
// by the cycle's event loop; everything else reads copies.
type Cycle struct {
	id        string
	seq       uint64
	origin    domain.Coords
	total     int
	started   time.Time
	deadline  time.Time
	observers []domain.Observer

	seen map[string]struct{} // event loop only

	// notifyMu orders observer calls against supersede
	notifyMu sync.Mutex

	settled    chan struct{}
	settleOnce sync.Once

	mu         sync.RWMutex
	completed  int
	places     []domain.ScoredPlace
	reason     domain.CompletionReason
	finished   time.Time
	superseded bool
	done       chan struct{}
}

func newCycle(id string, seq uint64, origin domain.Coords, total int, deadline time.Duration, obs []domain.Observer) *Cycle {
	now := time.Now()
	return &Cycle{
		id:        id,
		seq:       seq,
		origin:    origin,
		total:     total,
		started:   now,
		deadline:  now.Add(deadline),
		observers: obs,
		seen:      make(map[string]struct{}),
		done:      make(chan struct{}),
		settled:   make(chan struct{}),
	}
}

func (c *Cycle) ID() string { return c.id }
func (c *Cycle) Origin() domain.Coords { return c.origin }
func (c *Cycle) StartedAt() time.Time { return c.started }
func (c *Cycle) Deadline() time.Time { return c.deadline }
func (c *Cycle) Done() <-chan struct{} { return c.done }

// Settled closes once no further updates can change the result set: after the
// final rank, or with the completion signal when no queries were issued. It may
// close well after Done when an early "empty" signal was followed by late results.
func (c *Cycle) Settled() <-chan struct{} { return c.settled }

// Reason is empty until completion has been signaled.
func (c *Cycle) Reason() domain.CompletionReason {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reason
}

func (c *Cycle) Progress() (completed, total int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.completed, c.total
}

// Snapshot returns a copy of the current result set.
func (c *Cycle) Snapshot() []domain.ScoredPlace {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyPlaces(c.places)
}

// Wait blocks until the completion signal or ctx is done. On ctx expiry the
// partial snapshot is still returned alongside the error.
func (c *Cycle) Wait(ctx context.Context) ([]domain.ScoredPlace, domain.CompletionReason, error) {
	select {
	case <-c.done:
		return c.Snapshot(), c.Reason(), nil
	case <-ctx.Done():
		return c.Snapshot(), domain.ReasonPending, ctx.Err()
	}
}

// Record is the persisted form of the cycle as it stands now.
func (c *Cycle) Record() domain.CycleRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fin := c.finished
	if fin.IsZero() {
		fin = time.Now()
	}
	return domain.CycleRecord{
		ID:               c.id,
		Origin:           c.origin,
		Reason:           string(c.reason),
		QueriesTotal:     c.total,
		QueriesCompleted: c.completed,
		StartedAt:        c.started,
		FinishedAt:       fin,
		Places:           copyPlaces(c.places),
	}
}

func (c *Cycle) isSuperseded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.superseded
}

func (c *Cycle) signaled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reason != domain.ReasonPending
}

func (c *Cycle) markCompleted() {
	c.mu.Lock()
	c.completed++
	c.mu.Unlock()
}

func (c *Cycle) count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.places)
}

func (c *Cycle) append(p domain.ScoredPlace) {
	c.mu.Lock()
	c.places = append(c.places, p)
	c.mu.Unlock()
	c.notify(domain.Update{CycleID: c.id, Kind: domain.UpdatePlace, Place: &p})
}

// rank replaces the running set with its deduped, sorted view.
func (c *Cycle) rank() {
	c.mu.Lock()
	c.places = RankPlaces(c.places)
	ranked := copyPlaces(c.places)
	c.mu.Unlock()
	c.notify(domain.Update{CycleID: c.id, Kind: domain.UpdateRanked, Ranked: ranked})
}

// signal fires the completion signal once; later calls are no-ops.
func (c *Cycle) signal(reason domain.CompletionReason) {
	c.mu.Lock()
	if c.reason != domain.ReasonPending {
		c.mu.Unlock()
		return
	}
	c.reason = reason
	c.finished = time.Now()
	n := len(c.places)
	close(c.done)
	c.mu.Unlock()

	dur := c.finished.Sub(c.started)
	observability.ObserveCycle(string(reason), dur)
	log.Info().
		Str("cycle", c.id).
		Str("reason", string(reason)).
		Int("places", n).
		Dur("elapsed", dur).
		Msg("search cycle complete")
	c.notify(domain.Update{CycleID: c.id, Kind: domain.UpdateComplete, Reason: reason})
}

func (c *Cycle) settle() {
	c.settleOnce.Do(func() { close(c.settled) })
}

// supersede releases waiters and silences the cycle for good. An observer call
// already in flight finishes first; none starts afterwards.
func (c *Cycle) supersede() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.superseded = true
	if c.reason == domain.ReasonPending {
		c.reason = domain.ReasonSuperseded
		c.finished = time.Now()
		close(c.done)
	}
}

// notify must not be reached from an observer of the same pipeline starting a
// new cycle synchronously; observers hand updates off instead.
func (c *Cycle) notify(u domain.Update) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if c.isSuperseded() {
		return
	}
	for _, o := range c.observers {
		o.Observe(u)
	}
}

// RankPlaces drops repeated keys (first wins) and sorts by descending
// confidence, ties by key, so identical inputs always give the same order.
func RankPlaces(in []domain.ScoredPlace) []domain.ScoredPlace {
	out := make([]domain.ScoredPlace, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, p := range in {
		k := p.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Key() < out[j].Key()
	})
	return out
}

func copyPlaces(in []domain.ScoredPlace) []domain.ScoredPlace {
	if len(in) == 0 {
		return []domain.ScoredPlace{}
	}
	out := make([]domain.ScoredPlace, len(in))
	copy(out, in)
	return out
}
