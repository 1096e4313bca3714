package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/uber/h3-go/v4"

	"binmaps/internal/domain"
)

// CachedProvider answers repeated term queries for nearby origins from the
// cache. Origins are bucketed by H3 cell so a user moving a few metres reuses
// the previous results.
type CachedProvider struct {
	next       domain.PlacesProvider
	cache      domain.Cache
	ttl        time.Duration
	resolution int
}

func NewCachedProvider(next domain.PlacesProvider, cache domain.Cache, ttl time.Duration, resolution int) *CachedProvider {
	if resolution < 0 || resolution > 15 {
		resolution = 8
	}
	return &CachedProvider{next: next, cache: cache, ttl: ttl, resolution: resolution}
}

func (p *CachedProvider) Available() bool { return p.next != nil && p.next.Available() }

func (p *CachedProvider) TextSearch(ctx context.Context, origin domain.Coords, radiusMeters int, query string) ([]domain.RawPlace, error) {
	key, err := p.key(origin, radiusMeters, query)
	if err != nil {
		// an unbucketable origin still gets a live answer
		log.Debug().Err(err).Msg("places cache key")
		return p.next.TextSearch(ctx, origin, radiusMeters, query)
	}

	var cached []domain.RawPlace
	if ok, _ := p.cache.Get(ctx, key, &cached); ok {
		return cached, nil
	}

	places, err := p.next.TextSearch(ctx, origin, radiusMeters, query)
	if err != nil {
		return nil, err
	}
	if places == nil {
		places = []domain.RawPlace{}
	}
	if err := p.cache.Set(ctx, key, places, int(p.ttl.Seconds())); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("places cache set failed")
	}
	return places, nil
}

func (p *CachedProvider) key(origin domain.Coords, radiusMeters int, query string) (string, error) {
	cell, err := h3.LatLngToCell(h3.NewLatLng(origin.Lat, origin.Lng), p.resolution)
	if err != nil {
		return "", fmt.Errorf("h3 cell at res %d: %w", p.resolution, err)
	}
	return fmt.Sprintf("places:%s:%d:%s", cell.String(), radiusMeters, normalize(query)), nil
}
