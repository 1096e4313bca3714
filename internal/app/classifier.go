package app

import "binmaps/internal/domain"

// Classifier scores a raw place for recycling relevance. It is pure and safe
// for concurrent use once built.
type Classifier struct {
	threshold int
	w         Weights

	high, medium, low []string
	address           []string
	charityTriggers   []string
	charityChains     []string
	municipal         []string

	disqualified map[string]struct{}
	genericStore map[string]struct{}
}

func NewClassifier(r Rules) *Classifier {
	return &Classifier{
		threshold:       r.Threshold,
		w:               r.Weights,
		high:            normalizeAll(r.Terms.High),
		medium:          normalizeAll(r.Terms.Medium),
		low:             normalizeAll(r.Terms.Low),
		address:         normalizeAll(r.Terms.Address),
		charityTriggers: normalizeAll(r.Terms.CharityTriggers),
		charityChains:   normalizeAll(r.Terms.CharityChains),
		municipal:       normalizeAll(r.Terms.Municipal),
		disqualified:    lowerSet(r.Terms.DisqualifiedTypes),
		genericStore:    lowerSet(r.Terms.GenericStoreTypes),
	}
}

var defaultClassifier = NewClassifier(DefaultRules())

// Classify uses the default rules.
func Classify(p domain.RawPlace) (bool, int) { return defaultClassifier.Classify(p) }

func (c *Classifier) Threshold() int { return c.threshold }

// Classify returns whether p is recycling related and its confidence.
// Accepted means confidence is strictly above the threshold.
func (c *Classifier) Classify(p domain.RawPlace) (bool, int) {
	name := normalize(p.Name)
	addr := normalize(p.Address)
	score := 0

	// name tiers are exclusive, highest first
	switch {
	case containsAny(name, c.high):
		score += c.w.High
	case containsAny(name, c.medium):
		score += c.w.Medium
	case containsAny(name, c.low):
		score += c.w.Low
	}

	if containsAny(addr, c.address) {
		score += c.w.Address
	}

	disq := c.Disqualified(p)
	if disq {
		score += c.w.Disqualified
	}

	if containsAny(name, c.charityTriggers) || (!disq && c.hasType(p, c.genericStore)) {
		if containsAny(name, c.charityChains) {
			score += c.w.Charity
		}
	}

	if containsAny(name, c.municipal) {
		score += c.w.Municipal
	}

	return score > c.threshold, score
}

// Disqualified reports whether p carries a type that is never a recycling site.
func (c *Classifier) Disqualified(p domain.RawPlace) bool {
	return c.hasType(p, c.disqualified)
}

func (c *Classifier) hasType(p domain.RawPlace, set map[string]struct{}) bool {
	for _, t := range p.Types {
		if _, ok := set[normalize(t)]; ok {
			return true
		}
	}
	return false
}
