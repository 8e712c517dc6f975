package models

import (
	"fmt"
	"strings"
	"time"
)

// VenueID identifies a configured market-data source.
type VenueID string

func (v VenueID) String() string { return string(v) }

// Instrument is a tradable pair identified by base and quote currency.
type Instrument struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
}

// ParseInstrument parses the canonical "BASE/QUOTE" form.
func ParseInstrument(s string) (Instrument, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Instrument{}, fmt.Errorf("invalid instrument %q, expected BASE/QUOTE", s)
	}
	return Instrument{
		Base:  strings.ToUpper(parts[0]),
		Quote: strings.ToUpper(parts[1]),
	}, nil
}

// Symbol returns the canonical "BASE/QUOTE" form used as grouping key.
func (i Instrument) Symbol() string {
	return i.Base + "/" + i.Quote
}

func (i Instrument) String() string { return i.Symbol() }

// Quote is a normalized snapshot of one instrument on one venue.
type Quote struct {
	Venue      VenueID    `json:"venue"`
	Instrument Instrument `json:"instrument"`
	Bid        float64    `json:"bid"`
	Ask        float64    `json:"ask"`
	Volume     float64    `json:"volume"`
	FetchedAt  time.Time  `json:"fetched_at"`
}

// IsDegenerate reports whether the quote signals no liquidity or a fetch
// anomaly. Degenerate quotes are kept for display but excluded from profit
// computation.
func (q Quote) IsDegenerate() bool {
	return q.Bid <= 0 || q.Ask <= 0 || q.Volume <= 0
}
