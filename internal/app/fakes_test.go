package app_test

import (
	"context"
	"encoding/json"
	"sync"

	"binmaps/internal/domain"
)

// ---- fakes ----

type fakeProvider struct {
	unavailable bool
	results     map[string][]domain.RawPlace
	errs        map[string]error
	gates       map[string]chan struct{} // a term with a gate blocks until it is closed

	mu    sync.Mutex
	calls []string
}

func (f *fakeProvider) Available() bool { return !f.unavailable }

func (f *fakeProvider) TextSearch(ctx context.Context, origin domain.Coords, radiusMeters int, query string) ([]domain.RawPlace, error) {
	f.mu.Lock()
	f.calls = append(f.calls, query)
	gate := f.gates[query]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err := f.errs[query]; err != nil {
		return nil, err
	}
	return f.results[query], nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recorder struct {
	mu      sync.Mutex
	updates []domain.Update
}

func (r *recorder) Observe(u domain.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recorder) kinds() []domain.UpdateKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.UpdateKind, 0, len(r.updates))
	for _, u := range r.updates {
		out = append(out, u.Kind)
	}
	return out
}

func (r *recorder) count(k domain.UpdateKind) int {
	n := 0
	for _, got := range r.kinds() {
		if got == k {
			n++
		}
	}
	return n
}

// fakeCache round-trips through JSON like the redis adapter does.
type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
	sets  int
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	c.sets++
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

type fakeRepo struct {
	mu     sync.Mutex
	cycles map[string]domain.CycleRecord
	gets   int
}

func (r *fakeRepo) SaveCycle(ctx context.Context, c domain.CycleRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cycles == nil {
		r.cycles = map[string]domain.CycleRecord{}
	}
	r.cycles[c.ID] = c
	return nil
}

func (r *fakeRepo) GetCycle(ctx context.Context, id string) (domain.CycleRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	c, ok := r.cycles[id]
	if !ok {
		return domain.CycleRecord{}, domain.ErrNotFound
	}
	return c, nil
}
