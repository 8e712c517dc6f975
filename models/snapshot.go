package models

import (
	"time"

	"github.com/google/uuid"
)

// QuoteGroup holds all quotes fetched for one instrument in one cycle,
// degenerate ones included. Failed fetches contribute nothing.
type QuoteGroup map[Instrument][]Quote

// Snapshot is the full output of one polling cycle. It is owned by the
// cycle that produced it and handed to the reporting sinks as-is.
type Snapshot struct {
	ID            string                  `json:"id"`
	StartedAt     time.Time               `json:"started_at"`
	Duration      time.Duration           `json:"duration"`
	Quotes        QuoteGroup              `json:"quotes"`
	Instruments   []Instrument            `json:"instruments"`
	RawSpreads    map[Instrument]*float64 `json:"raw_spreads"`
	Opportunities []Opportunity           `json:"opportunities"`
}

// NewSnapshot creates an empty snapshot for a cycle starting now.
// Instruments carries the deterministic iteration order for reporting.
func NewSnapshot(instruments []Instrument) *Snapshot {
	return &Snapshot{
		ID:          uuid.New().String(),
		StartedAt:   time.Now().UTC(),
		Quotes:      make(QuoteGroup, len(instruments)),
		Instruments: instruments,
		RawSpreads:  make(map[Instrument]*float64, len(instruments)),
	}
}

// BestOpportunity returns the highest-ranked opportunity for an instrument,
// or nil when the cycle found none.
func (s *Snapshot) BestOpportunity(in Instrument) *Opportunity {
	for i := range s.Opportunities {
		if s.Opportunities[i].Instrument == in {
			return &s.Opportunities[i]
		}
	}
	return nil
}
