package app

import "binmaps/internal/domain"

var displayCategories = map[string]domain.Category{
	"recycling center":   domain.CategoryRecycling,
	"recycling point":    domain.CategoryRecycling,
	"recycling bin":      domain.CategoryRecycling,
	"recycling facility": domain.CategoryRecycling,
	"waste disposal":     domain.CategoryWaste,
	"household waste":    domain.CategoryWaste,
	"waste management":   domain.CategoryWaste,
	"tip":                domain.CategoryWaste,
	"dump":               domain.CategoryWaste,
	"civic amenity site": domain.CategoryWaste,
	"bottle bank":        domain.CategoryBottleBank,
	"charity shop":       domain.CategoryCharity,
}

// DisplayCategory maps the term a place was found under to its marker category.
func DisplayCategory(matchedTerm string) domain.Category {
	if c, ok := displayCategories[normalize(matchedTerm)]; ok {
		return c
	}
	return domain.CategoryGeneric
}
