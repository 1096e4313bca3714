package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"binmaps/internal/domain"
)

// QueryService is what the HTTP layer talks to: it runs cycles to completion
// and serves persisted ones.
type QueryService struct {
	provider domain.PlacesProvider
	clf      *Classifier
	catalog  Catalog
	opts     Options
	repo     domain.CycleRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(provider domain.PlacesProvider, clf *Classifier, catalog Catalog, opts Options,
	repo domain.CycleRepository, cache domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{
		provider: provider,
		clf:      clf,
		catalog:  catalog,
		opts:     opts,
		repo:     repo,
		cache:    cache,
		cacheTTL: ttl,
	}
}

// NewPipeline returns a pipeline for one caller session.
func (s *QueryService) NewPipeline() *Pipeline {
	return NewPipeline(s.provider, s.clf, s.catalog, s.opts)
}

// Search runs a cycle and waits for its completion signal, then persists it.
// A cycle that keeps absorbing results past its signal is saved again once settled.
func (s *QueryService) Search(ctx context.Context, origin domain.Coords, observers ...domain.Observer) (domain.CycleRecord, error) {
	c := s.NewPipeline().StartCycle(ctx, origin, observers...)
	if _, _, err := c.Wait(ctx); err != nil {
		return domain.CycleRecord{}, err
	}
	rec := c.Record()
	s.Save(ctx, rec)
	select {
	case <-c.Settled():
	default:
		// an early "empty" can still be followed by results; store them too
		go func() {
			<-c.Settled()
			s.Save(ctx, c.Record())
		}()
	}
	return rec, nil
}

// Save persists a finished cycle. Storage is best effort; failures are logged.
func (s *QueryService) Save(ctx context.Context, rec domain.CycleRecord) {
	if s.repo == nil {
		return
	}
	if err := s.repo.SaveCycle(context.WithoutCancel(ctx), rec); err != nil {
		log.Error().Err(err).Str("cycle", rec.ID).Msg("save cycle failed")
	}
}

func (s *QueryService) GetCycle(ctx context.Context, id string) (domain.CycleRecord, error) {
	if s.repo == nil {
		return domain.CycleRecord{}, domain.ErrNotFound
	}
	key := fmt.Sprintf("cycle:%s", id)
	var rec domain.CycleRecord
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &rec); ok {
			return rec, nil
		}
	}
	rec, err := s.repo.GetCycle(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.CycleRecord{}, err
		}
		return domain.CycleRecord{}, fmt.Errorf("get cycle %s: %w", id, err)
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, rec, int(s.cacheTTL.Seconds()))
	}
	return rec, nil
}
