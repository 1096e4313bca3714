package places

import (
	"strconv"
	"strings"

	"binmaps/internal/domain"
)

// Field aliases cover both the legacy Text Search payload and the Places v1
// shape, so a proxy returning either still decodes.
var placeAliases = map[string][]string{
	"id":      {"place_id", "id"},
	"name":    {"displayName.text", "name", "display_name"},
	"address": {"formatted_address", "vicinity", "formattedAddress", "shortFormattedAddress"},
	"lat":     {"geometry.location.lat", "location.latitude", "location.lat"},
	"lng":     {"geometry.location.lng", "location.longitude", "location.lng"},
	"rating":  {"rating"},
	"types":   {"types"},
}

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

func firstString(m map[string]any, key string) string {
	for _, p := range placeAliases[key] {
		if s, ok := lookupAny(m, p).(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// firstFloat accepts float64, int or numeric strings like "4,5".
func firstFloat(m map[string]any, key string) *float64 {
	for _, p := range placeAliases[key] {
		switch v := lookupAny(m, p).(type) {
		case float64:
			f := v
			return &f
		case int:
			f := float64(v)
			return &f
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

func firstStrings(m map[string]any, key string) []string {
	for _, p := range placeAliases[key] {
		raw, ok := lookupAny(m, p).([]any)
		if !ok {
			continue
		}
		out := make([]string, 0, len(raw))
		for _, it := range raw {
			if s, ok := it.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// mapPlace never fails: missing fields stay empty.
func mapPlace(m map[string]any) domain.RawPlace {
	p := domain.RawPlace{
		ID:      firstString(m, "id"),
		Name:    firstString(m, "name"),
		Address: firstString(m, "address"),
		Types:   firstStrings(m, "types"),
		Rating:  firstFloat(m, "rating"),
	}
	lat, lng := firstFloat(m, "lat"), firstFloat(m, "lng")
	if lat != nil && lng != nil {
		p.Location = &domain.Coords{Lat: *lat, Lng: *lng}
	}
	return p
}
