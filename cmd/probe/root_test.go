package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"binmaps/internal/domain"
)

func TestParseCoords(t *testing.T) {
	c, err := parseCoords(" 51.5, -0.12 ")
	require.NoError(t, err)
	assert.Equal(t, domain.Coords{Lat: 51.5, Lng: -0.12}, c)

	for _, bad := range []string{"51.5", "x,0", "0,y", "95,0"} {
		_, err := parseCoords(bad)
		assert.Error(t, err, bad)
	}
}

func TestPrintRecord(t *testing.T) {
	var buf bytes.Buffer
	rec := domain.CycleRecord{
		ID:               "c-1",
		Origin:           domain.DefaultOrigin,
		Reason:           "complete",
		QueriesTotal:     12,
		QueriesCompleted: 12,
		StartedAt:        time.Now(),
		Places: []domain.ScoredPlace{
			{RawPlace: domain.RawPlace{ID: "A", Name: "Borough Tip", Address: "1 High St"}, MatchedTerm: "tip", Confidence: 120},
		},
	}
	require.NoError(t, printRecord(&buf, rec))
	out := buf.String()
	assert.Contains(t, out, "cycle c-1")
	assert.Contains(t, out, "complete, 12/12 queries, 1 places")
	assert.Contains(t, out, "Borough Tip")
	assert.Contains(t, out, "waste")
}
