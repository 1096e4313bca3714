package app_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"binmaps/internal/app"
	"binmaps/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		place   domain.RawPlace
		related bool
		score   int
	}{
		{"high tier plus municipal", domain.RawPlace{Name: "Borough Tip"}, true, 120},
		{"charity chain store", domain.RawPlace{Name: "Oxfam Bookshop", Types: []string{"store"}}, true, 60},
		{"charity chain needs a store type", domain.RawPlace{Name: "Oxfam Bookshop"}, false, 0},
		{"disqualification dominates", domain.RawPlace{Name: "Recycling Centre", Types: []string{"restaurant"}}, false, 10},
		{"tag match ignores case", domain.RawPlace{Name: "Waste Not Diner", Types: []string{"Restaurant"}}, false, 10},
		{"low tier alone sits on the threshold", domain.RawPlace{Name: "Community Hall"}, false, 30},
		{"medium tier", domain.RawPlace{Name: "Green Street Yard"}, true, 50},
		{"tiers are exclusive", domain.RawPlace{Name: "Household Recycling Centre"}, true, 80},
		{"address indicator", domain.RawPlace{Name: "Acme Ltd", Address: "2 Waste Lane"}, true, 40},
		{"name and address add up", domain.RawPlace{Name: "Scrap Metal Yard", Address: "Civic Estate"}, true, 90},
		{"store with heart fragment", domain.RawPlace{Name: "British Heart Foundation", Types: []string{"store", "clothing_store"}}, true, 60},
		{"disqualified store loses charity bonus", domain.RawPlace{Name: "Cancer Research Cafe", Types: []string{"cafe", "store"}}, false, -70},
		{"charity name trigger ignores disqualification", domain.RawPlace{Name: "Charity Cafe", Types: []string{"cafe"}}, false, -10},
		{"donation trigger without a chain", domain.RawPlace{Name: "Donation Point"}, false, 0},
		{"council site", domain.RawPlace{Name: "City Council Depot"}, true, 40},
		{"accents fold before matching", domain.RawPlace{Name: "Écocentre"}, true, 50},
		{"empty record", domain.RawPlace{}, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			related, score := app.Classify(tt.place)
			assert.Equal(t, tt.score, score)
			assert.Equal(t, tt.related, related)
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	p := domain.RawPlace{Name: "Borough Council Recycling", Address: "Civic Centre", Types: []string{"store"}}
	related, score := app.Classify(p)
	for i := 0; i < 50; i++ {
		r, s := app.Classify(p)
		assert.Equal(t, related, r)
		assert.Equal(t, score, s)
	}
}

func TestClassify_ThresholdIsStrict(t *testing.T) {
	place := domain.RawPlace{Name: "Community Hall"}

	rules := app.DefaultRules()
	rules.Weights.Low = 31
	related, score := app.NewClassifier(rules).Classify(place)
	assert.Equal(t, 31, score)
	assert.True(t, related)

	rules.Weights.Low = 30
	related, score = app.NewClassifier(rules).Classify(place)
	assert.Equal(t, 30, score)
	assert.False(t, related)
}

func TestDisqualified(t *testing.T) {
	clf := app.NewClassifier(app.DefaultRules())
	assert.True(t, clf.Disqualified(domain.RawPlace{Types: []string{"point_of_interest", "lodging"}}))
	assert.False(t, clf.Disqualified(domain.RawPlace{Types: []string{"store"}}))
	assert.False(t, clf.Disqualified(domain.RawPlace{}))
}
