package app

// Catalog is the ordered list of phrases probed once each per cycle. No single
// query surfaces every kind of site, so several synonyms are issued in parallel.
type Catalog []string

var DefaultCatalog = Catalog{
	"recycling center",
	"waste disposal",
	"bottle bank",
	"charity shop",
	"household waste",
	"recycling point",
	"recycling bin",
	"waste management",
	"tip",
	"dump",
	"recycling facility",
	"civic amenity site",
}

// Terms returns a copy, skipping blanks and duplicates.
func (c Catalog) Terms() []string {
	out := make([]string, 0, len(c))
	seen := make(map[string]struct{}, len(c))
	for _, t := range c {
		k := normalize(t)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, t)
	}
	return out
}
