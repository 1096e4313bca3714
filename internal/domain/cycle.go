package domain

import "time"

type CompletionReason string

const (
	ReasonPending     CompletionReason = ""
	ReasonComplete    CompletionReason = "complete"
	ReasonTimeout     CompletionReason = "timeout"
	ReasonEmpty       CompletionReason = "empty"
	ReasonUnavailable CompletionReason = "unavailable"
	ReasonSuperseded  CompletionReason = "superseded"
)

type UpdateKind string

const (
	UpdatePlace    UpdateKind = "place"    // one accepted place appended
	UpdateRanked   UpdateKind = "ranked"   // running set replaced by the deduped, sorted view
	UpdateComplete UpdateKind = "complete" // search complete signal, once per cycle
)

type Update struct {
	CycleID string
	Kind    UpdateKind
	Place   *ScoredPlace
	Ranked  []ScoredPlace
	Reason  CompletionReason
}

// CycleRecord is a finished cycle as persisted for later lookup.
type CycleRecord struct {
	ID               string        `json:"id"`
	Origin           Coords        `json:"origin"`
	Reason           string        `json:"reason"`
	QueriesTotal     int           `json:"queries_total"`
	QueriesCompleted int           `json:"queries_completed"`
	StartedAt        time.Time     `json:"started_at"`
	FinishedAt       time.Time     `json:"finished_at"`
	Places           []ScoredPlace `json:"places"`
}
