package app_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"binmaps/internal/app"
	"binmaps/internal/domain"
)

var (
	boroughTip = domain.RawPlace{ID: "A", Name: "Borough Tip", Types: []string{}}
	oxfam      = domain.RawPlace{ID: "B", Name: "Oxfam", Types: []string{"store"}}
)

func waitDone(t *testing.T, c *app.Cycle, within time.Duration) ([]domain.ScoredPlace, domain.CompletionReason) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), within)
	defer cancel()
	places, reason, err := c.Wait(ctx)
	require.NoError(t, err, "cycle did not signal completion within %v", within)
	return places, reason
}

func fastOptions() app.Options {
	return app.Options{Radius: 5000, Deadline: 2 * time.Second, EmptyCheck: time.Second}
}

func TestPipeline_EndToEndScenario(t *testing.T) {
	// "charity shop" only answers once "tip" has been absorbed, so the first
	// sighting of A is under "tip".
	charityGate := make(chan struct{})
	var once sync.Once
	prov := &fakeProvider{
		results: map[string][]domain.RawPlace{
			"tip":          {boroughTip},
			"charity shop": {oxfam, boroughTip},
		},
		gates: map[string]chan struct{}{"charity shop": charityGate},
	}
	rec := &recorder{}
	release := domain.ObserverFunc(func(u domain.Update) {
		if u.Kind == domain.UpdatePlace && u.Place.ID == "A" {
			once.Do(func() { close(charityGate) })
		}
	})
	t.Cleanup(func() { once.Do(func() { close(charityGate) }) })

	p := app.NewPipeline(prov, nil, app.Catalog{"tip", "charity shop"}, fastOptions())
	c := p.StartCycle(context.Background(), domain.DefaultOrigin, release, rec)

	got, reason := waitDone(t, c, 3*time.Second)
	assert.Equal(t, domain.ReasonComplete, reason)

	want := []domain.ScoredPlace{
		{RawPlace: boroughTip, MatchedTerm: "tip", Confidence: 120},
		{RawPlace: oxfam, MatchedTerm: "charity shop", Confidence: 60},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ranked list mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []domain.UpdateKind{
		domain.UpdatePlace, domain.UpdatePlace, domain.UpdateRanked, domain.UpdateComplete,
	}, rec.kinds())

	done, total := c.Progress()
	assert.Equal(t, 2, done)
	assert.Equal(t, 2, total)
}

func TestPipeline_FirstSightingWins(t *testing.T) {
	tipGate := make(chan struct{})
	var once sync.Once
	prov := &fakeProvider{
		results: map[string][]domain.RawPlace{
			"tip":          {boroughTip},
			"charity shop": {boroughTip},
		},
		gates: map[string]chan struct{}{"tip": tipGate},
	}
	release := domain.ObserverFunc(func(u domain.Update) {
		if u.Kind == domain.UpdatePlace {
			once.Do(func() { close(tipGate) })
		}
	})
	t.Cleanup(func() { once.Do(func() { close(tipGate) }) })

	p := app.NewPipeline(prov, nil, app.Catalog{"tip", "charity shop"}, fastOptions())
	got, _ := waitDone(t, p.StartCycle(context.Background(), domain.DefaultOrigin, release), 3*time.Second)

	require.Len(t, got, 1)
	assert.Equal(t, "charity shop", got[0].MatchedTerm)
	assert.Equal(t, 120, got[0].Confidence)
}

func TestPipeline_RankedInvariants(t *testing.T) {
	prov := &fakeProvider{results: map[string][]domain.RawPlace{
		"recycling center": {
			{ID: "1", Name: "Community Collection Point", Address: "Recycling Way"}, // 70
			{ID: "2", Name: "Eco Hub"},                                              // 50
			{ID: "3", Name: "Recycling Centre", Types: []string{"restaurant"}},      // rejected
			{ID: "4", Name: "Community Hall"},                                       // 30, rejected
		},
		"tip": {
			{ID: "5", Name: "Council Tip"}, // 120
			{ID: "2", Name: "Eco Hub"},     // duplicate
			{ID: "6", Name: "Green Bins"},  // 50, ties with 2
		},
		"dump": {
			{ID: "7", Name: "Waste Dump", Address: "Civic Estate"}, // 120, ties with 5
		},
	}}

	p := app.NewPipeline(prov, nil, app.Catalog{"recycling center", "tip", "dump"}, fastOptions())
	got, reason := waitDone(t, p.StartCycle(context.Background(), domain.DefaultOrigin), 3*time.Second)
	assert.Equal(t, domain.ReasonComplete, reason)

	ids := make([]string, 0, len(got))
	seen := map[string]bool{}
	for _, sp := range got {
		assert.Greater(t, sp.Confidence, 30)
		assert.False(t, seen[sp.ID], "duplicate id %s", sp.ID)
		seen[sp.ID] = true
		ids = append(ids, sp.ID)
	}
	assert.True(t, sort.SliceIsSorted(got, func(i, j int) bool { return got[i].Confidence > got[j].Confidence }))
	// ties resolve by id, independent of which query answered first
	assert.Equal(t, []string{"5", "7", "1", "2", "6"}, ids)
}

func TestPipeline_IssuesAllQueriesAtOnce(t *testing.T) {
	gate := make(chan struct{})
	terms := app.DefaultCatalog.Terms()
	gates := map[string]chan struct{}{}
	for _, term := range terms {
		gates[term] = gate
	}
	prov := &fakeProvider{gates: gates}
	t.Cleanup(func() { close(gate) })

	p := app.NewPipeline(prov, nil, nil, fastOptions())
	p.StartCycle(context.Background(), domain.DefaultOrigin)

	// every query is in flight while none has answered
	require.Eventually(t, func() bool { return prov.callCount() == len(terms) }, time.Second, 5*time.Millisecond)
}

func TestPipeline_QueryFailureCountsAsEmpty(t *testing.T) {
	prov := &fakeProvider{
		results: map[string][]domain.RawPlace{"tip": {boroughTip}},
		errs:    map[string]error{"dump": errors.New("status OVER_QUERY_LIMIT")},
	}
	p := app.NewPipeline(prov, nil, app.Catalog{"tip", "dump"}, fastOptions())
	c := p.StartCycle(context.Background(), domain.DefaultOrigin)

	got, reason := waitDone(t, c, 3*time.Second)
	assert.Equal(t, domain.ReasonComplete, reason)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].ID)

	done, total := c.Progress()
	assert.Equal(t, total, done)
}

// lockedBuffer lets the event loop log while the test reads.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestPipeline_QueryFailureLogsErrorKind(t *testing.T) {
	var out lockedBuffer
	prev := log.Logger
	log.Logger = zerolog.New(&out)
	t.Cleanup(func() { log.Logger = prev })

	prov := &fakeProvider{errs: map[string]error{
		"dump": fmt.Errorf("text search %q: %w", "dump", domain.ErrQuotaExceeded),
	}}
	p := app.NewPipeline(prov, nil, app.Catalog{"dump"}, fastOptions())
	c := p.StartCycle(context.Background(), domain.DefaultOrigin)
	waitDone(t, c, 3*time.Second)

	assert.Contains(t, out.String(), `"err_type":"quota"`)
}

func TestPipeline_ProviderUnavailable(t *testing.T) {
	prov := &fakeProvider{unavailable: true}
	rec := &recorder{}
	p := app.NewPipeline(prov, nil, nil, fastOptions())
	c := p.StartCycle(context.Background(), domain.DefaultOrigin, rec)

	select {
	case <-c.Done():
	default:
		t.Fatal("expected immediate completion")
	}
	assert.Equal(t, domain.ReasonUnavailable, c.Reason())
	assert.Empty(t, c.Snapshot())
	assert.Zero(t, prov.callCount())
	assert.Equal(t, []domain.UpdateKind{domain.UpdateComplete}, rec.kinds())
}

func TestPipeline_NilProvider(t *testing.T) {
	c := app.NewPipeline(nil, nil, nil, fastOptions()).StartCycle(context.Background(), domain.DefaultOrigin)
	got, reason := waitDone(t, c, 100*time.Millisecond)
	assert.Equal(t, domain.ReasonUnavailable, reason)
	assert.Empty(t, got)
}

func TestPipeline_TimeoutFallback(t *testing.T) {
	stuck := make(chan struct{})
	t.Cleanup(func() { close(stuck) })
	prov := &fakeProvider{
		results: map[string][]domain.RawPlace{"tip": {boroughTip}},
		gates:   map[string]chan struct{}{"dump": stuck},
	}
	opts := app.Options{Deadline: 150 * time.Millisecond, EmptyCheck: time.Hour}
	p := app.NewPipeline(prov, nil, app.Catalog{"tip", "dump"}, opts)

	start := time.Now()
	c := p.StartCycle(context.Background(), domain.DefaultOrigin)
	got, reason := waitDone(t, c, 2*time.Second)

	assert.Equal(t, domain.ReasonTimeout, reason)
	assert.Less(t, time.Since(start), time.Second)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].ID)

	done, total := c.Progress()
	assert.Equal(t, 1, done)
	assert.Equal(t, 2, total)
}

func TestPipeline_EarlyEmptyThenLateResults(t *testing.T) {
	slow := make(chan struct{})
	prov := &fakeProvider{
		results: map[string][]domain.RawPlace{"tip": {boroughTip}},
		gates:   map[string]chan struct{}{"tip": slow},
	}
	rec := &recorder{}
	opts := app.Options{Deadline: time.Hour, EmptyCheck: 50 * time.Millisecond}
	p := app.NewPipeline(prov, nil, app.Catalog{"tip"}, opts)
	c := p.StartCycle(context.Background(), domain.DefaultOrigin, rec)

	got, reason := waitDone(t, c, 2*time.Second)
	assert.Equal(t, domain.ReasonEmpty, reason)
	assert.Empty(t, got)

	// the slow query still lands through the incremental path
	close(slow)
	require.Eventually(t, func() bool { return rec.count(domain.UpdateRanked) == 1 }, 2*time.Second, 5*time.Millisecond)
	snap := c.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "A", snap[0].ID)
	assert.Equal(t, domain.ReasonEmpty, c.Reason())
	assert.Equal(t, 1, rec.count(domain.UpdateComplete))
}

func TestPipeline_NewCycleSupersedesOld(t *testing.T) {
	gate := make(chan struct{})
	prov := &fakeProvider{
		results: map[string][]domain.RawPlace{"tip": {boroughTip}},
		gates:   map[string]chan struct{}{"tip": gate},
	}
	first := &recorder{}
	p := app.NewPipeline(prov, nil, app.Catalog{"tip"}, app.Options{Deadline: time.Hour, EmptyCheck: time.Hour})
	old := p.StartCycle(context.Background(), domain.DefaultOrigin, first)
	require.Eventually(t, func() bool { return prov.callCount() == 1 }, time.Second, 5*time.Millisecond)

	// second cycle for a new origin, answered immediately
	prov.mu.Lock()
	prov.gates = map[string]chan struct{}{}
	prov.mu.Unlock()
	second := &recorder{}
	cur := p.StartCycle(context.Background(), domain.Coords{Lat: 53.48, Lng: -2.24}, second)

	_, reason := waitDone(t, old, time.Second)
	assert.Equal(t, domain.ReasonSuperseded, reason)
	assert.NotEqual(t, old.ID(), cur.ID())

	got, reason := waitDone(t, cur, 2*time.Second)
	assert.Equal(t, domain.ReasonComplete, reason)
	require.Len(t, got, 1)

	// the stale answer for the old cycle is dropped
	close(gate)
	require.Eventually(t, func() bool {
		done, _ := old.Progress()
		return done == 1
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, old.Snapshot())
	assert.Empty(t, first.kinds())
}

func TestCycle_WaitHonoursContext(t *testing.T) {
	gate := make(chan struct{})
	t.Cleanup(func() { close(gate) })
	prov := &fakeProvider{gates: map[string]chan struct{}{"tip": gate}}
	c := app.NewPipeline(prov, nil, app.Catalog{"tip"}, app.Options{Deadline: time.Hour, EmptyCheck: time.Hour}).
		StartCycle(context.Background(), domain.DefaultOrigin)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, reason, err := c.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, domain.ReasonPending, reason)
}

func TestRankPlaces(t *testing.T) {
	in := []domain.ScoredPlace{
		{RawPlace: domain.RawPlace{ID: "b"}, Confidence: 50},
		{RawPlace: domain.RawPlace{ID: "a"}, Confidence: 50},
		{RawPlace: domain.RawPlace{ID: "c"}, Confidence: 90, MatchedTerm: "tip"},
		{RawPlace: domain.RawPlace{ID: "c"}, Confidence: 10, MatchedTerm: "dump"},
	}
	got := app.RankPlaces(in)
	want := []domain.ScoredPlace{
		{RawPlace: domain.RawPlace{ID: "c"}, Confidence: 90, MatchedTerm: "tip"},
		{RawPlace: domain.RawPlace{ID: "a"}, Confidence: 50},
		{RawPlace: domain.RawPlace{ID: "b"}, Confidence: 50},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("RankPlaces mismatch (-want +got):\n%s", diff)
	}
}
