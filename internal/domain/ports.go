package domain

import "context"

// PlacesProvider is the external text-search collaborator.
type PlacesProvider interface {
	Available() bool
	TextSearch(ctx context.Context, origin Coords, radiusMeters int, query string) ([]RawPlace, error)
}

type CycleRepository interface {
	SaveCycle(ctx context.Context, c CycleRecord) error
	GetCycle(ctx context.Context, id string) (CycleRecord, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// Observer receives a cycle's updates in order, from a single goroutine.
type Observer interface {
	Observe(u Update)
}

type ObserverFunc func(u Update)

func (f ObserverFunc) Observe(u Update) { f(u) }
