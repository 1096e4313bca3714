package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"binmaps/internal/adapters/observability"
	"binmaps/internal/domain"
)

const (
	DefaultRadiusMeters = 5000
	DefaultDeadline     = 15 * time.Second
	DefaultEmptyCheck   = 5 * time.Second
)

type Options struct {
	Radius     int           // meters
	Deadline   time.Duration // forced completion
	EmptyCheck time.Duration // early completion when nothing was accepted yet
}

func DefaultOptions() Options {
	return Options{Radius: DefaultRadiusMeters, Deadline: DefaultDeadline, EmptyCheck: DefaultEmptyCheck}
}

// Pipeline runs search cycles against one provider. Starting a cycle
// supersedes the previous one; its late results are dropped.
type Pipeline struct {
	provider domain.PlacesProvider
	clf      *Classifier
	terms    []string
	opts     Options

	mu      sync.Mutex
	seq     uint64
	current *Cycle
}

func NewPipeline(provider domain.PlacesProvider, clf *Classifier, catalog Catalog, opts Options) *Pipeline {
	if clf == nil {
		clf = defaultClassifier
	}
	if len(catalog) == 0 {
		catalog = DefaultCatalog
	}
	def := DefaultOptions()
	if opts.Radius <= 0 {
		opts.Radius = def.Radius
	}
	if opts.Deadline <= 0 {
		opts.Deadline = def.Deadline
	}
	if opts.EmptyCheck <= 0 {
		opts.EmptyCheck = def.EmptyCheck
	}
	return &Pipeline{provider: provider, clf: clf, terms: catalog.Terms(), opts: opts}
}

func (p *Pipeline) Terms() []string { return append([]string(nil), p.terms...) }

type termResult struct {
	term   string
	places []domain.RawPlace
	err    error
}

// StartCycle issues one query per catalog term, all at once, and returns
// immediately. Observers are called from the cycle's event loop, in order.
func (p *Pipeline) StartCycle(ctx context.Context, origin domain.Coords, observers ...domain.Observer) *Cycle {
	p.mu.Lock()
	p.seq++
	prev := p.current
	c := newCycle(uuid.NewString(), p.seq, origin, len(p.terms), p.opts.Deadline, observers)
	p.current = c
	p.mu.Unlock()

	if prev != nil {
		prev.supersede()
	}

	log.Info().
		Str("cycle", c.id).
		Float64("lat", origin.Lat).
		Float64("lng", origin.Lng).
		Int("terms", len(p.terms)).
		Msg("search cycle started")

	if p.provider == nil || !p.provider.Available() {
		log.Warn().Str("cycle", c.id).Msg("places provider unavailable")
		c.signal(domain.ReasonUnavailable)
		c.settle()
		return c
	}

	// buffered so stragglers never block once the loop is gone
	results := make(chan termResult, len(p.terms))
	qctx := context.WithoutCancel(ctx)
	for _, term := range p.terms {
		go func(term string) {
			places, err := p.provider.TextSearch(qctx, origin, p.opts.Radius, term)
			results <- termResult{term: term, places: places, err: err}
		}(term)
	}
	go p.run(c, results)
	return c
}

func (p *Pipeline) run(c *Cycle, results <-chan termResult) {
	deadline := time.NewTimer(p.opts.Deadline)
	defer deadline.Stop()
	emptyCheck := time.NewTimer(p.opts.EmptyCheck)
	defer emptyCheck.Stop()
	defer c.settle()

	for pending := c.total; pending > 0; {
		select {
		case r := <-results:
			pending--
			c.markCompleted()
			if c.isSuperseded() {
				observability.ObserveQuery(r.term, "dropped")
				continue
			}
			p.absorb(c, r)
		case <-emptyCheck.C:
			if !c.isSuperseded() && !c.signaled() && c.count() == 0 {
				c.signal(domain.ReasonEmpty)
			}
		case <-deadline.C:
			if !c.isSuperseded() && !c.signaled() {
				c.rank()
				c.signal(domain.ReasonTimeout)
			}
		}
	}

	if c.isSuperseded() {
		return
	}
	c.rank()
	c.signal(domain.ReasonComplete)
}

func (p *Pipeline) absorb(c *Cycle, r termResult) {
	l := log.With().Str("cycle", c.id).Str("term", r.term).Logger()
	if r.err != nil {
		observability.ObserveQuery(r.term, "error")
		l.Warn().Err(r.err).Str("err_type", observability.LabelErr(r.err)).Msg("term query failed")
		return
	}
	observability.ObserveQuery(r.term, "ok")

	accepted := 0
	for _, raw := range r.places {
		key := raw.Key()
		if _, ok := c.seen[key]; ok {
			continue
		}
		if p.clf.Disqualified(raw) {
			continue
		}
		ok, conf := p.clf.Classify(raw)
		if !ok {
			continue
		}
		c.seen[key] = struct{}{}
		c.append(domain.ScoredPlace{RawPlace: raw, MatchedTerm: r.term, Confidence: conf})
		observability.ObserveAccepted()
		accepted++
	}
	l.Debug().Int("returned", len(r.places)).Int("accepted", accepted).Msg("term query done")
}
