package domain

import "strings"

type Coords struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DefaultOrigin is used when the caller has no location (central London).
var DefaultOrigin = Coords{Lat: 51.5074, Lng: -0.1278}

func (c Coords) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// RawPlace is one unfiltered provider search result. Optional fields may be nil.
type RawPlace struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Address  string   `json:"address,omitempty"`
	Types    []string `json:"types,omitempty"`
	Location *Coords  `json:"location,omitempty"`
	Rating   *float64 `json:"rating,omitempty"`
}

// Key is the dedupe identity. Records without a provider id fall back to name+address.
func (p RawPlace) Key() string {
	if p.ID != "" {
		return p.ID
	}
	return "~" + strings.ToLower(strings.TrimSpace(p.Name)) + "|" + strings.ToLower(strings.TrimSpace(p.Address))
}

type ScoredPlace struct {
	RawPlace
	MatchedTerm string `json:"matched_term"`
	Confidence  int    `json:"confidence"`
}

// Category selects a marker style in the presentation layer.
type Category string

const (
	CategoryRecycling  Category = "recycling"
	CategoryWaste      Category = "waste"
	CategoryBottleBank Category = "bottle-bank"
	CategoryCharity    Category = "charity"
	CategoryGeneric    Category = "generic"
)
