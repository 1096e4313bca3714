package app

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Weights are the additive score deltas. The values were hand tuned; keep them as is.
type Weights struct {
	High         int `yaml:"high"`
	Medium       int `yaml:"medium"`
	Low          int `yaml:"low"`
	Address      int `yaml:"address"`
	Disqualified int `yaml:"disqualified"`
	Charity      int `yaml:"charity"`
	Municipal    int `yaml:"municipal"`
}

type Terms struct {
	High              []string `yaml:"high"`
	Medium            []string `yaml:"medium"`
	Low               []string `yaml:"low"`
	Address           []string `yaml:"address"`
	DisqualifiedTypes []string `yaml:"disqualified_types"`
	CharityTriggers   []string `yaml:"charity_triggers"`
	CharityChains     []string `yaml:"charity_chains"`
	Municipal         []string `yaml:"municipal"`
	GenericStoreTypes []string `yaml:"generic_store_types"`
}

type Rules struct {
	Threshold int     `yaml:"threshold"`
	Weights   Weights `yaml:"weights"`
	Terms     Terms   `yaml:"terms"`
}

func DefaultRules() Rules {
	return Rules{
		Threshold: 30,
		Weights: Weights{
			High:         80,
			Medium:       50,
			Low:          30,
			Address:      40,
			Disqualified: -70,
			Charity:      60,
			Municipal:    40,
		},
		Terms: Terms{
			High:    []string{"recycl", "waste", "dispos", "environment", "bottle bank", "tip", "dump", "civic amenity"},
			Medium:  []string{"green", "eco", "bin", "scrap", "household"},
			Low:     []string{"community", "center", "centre", "collection"},
			Address: []string{"recycling", "waste", "environmental", "civic"},
			DisqualifiedTypes: []string{
				"restaurant", "cafe", "food", "meal_takeaway", "meal_delivery", "bakery",
				"bar", "night_club", "lodging", "hotel",
				"school", "primary_school", "secondary_school", "university",
				"pharmacy", "drugstore", "beauty_salon", "hair_care", "gym", "spa",
				"bank", "atm", "movie_theater", "dentist", "doctor",
			},
			CharityTriggers: []string{"charity", "donat"},
			CharityChains: []string{
				"oxfam", "salvation", "red cross", "cancer", "hospice", "heart", "age uk",
				"barnardo", "scope", "mind", "british heart", "charity", "thrift",
			},
			Municipal:         []string{"council", "municipal", "borough"},
			GenericStoreTypes: []string{"store"},
		},
	}
}

// normalize lower-cases, folds accents and trims, so "Déchetterie " matches "dechetterie".
func normalize(s string) string {
	s, _, _ = transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		strings.TrimSpace(strings.ToLower(s)),
	)
	return s
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func lowerSet(vals []string) map[string]struct{} {
	set := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		if v = normalize(v); v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

func normalizeAll(vals []string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if v = normalize(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
