// Package venue holds the market-data source integrations. Each venue
// client normalizes its exchange's ticker payload into a models.Quote and
// reports the instruments it can trade.
package venue

import (
	"context"

	"arbiscan/models"
)

// MarketDataSource is the capability the engine consumes from a venue.
// Any integration satisfying it is interchangeable.
type MarketDataSource interface {
	// ID returns the venue identifier used for fee lookup and grouping.
	ID() models.VenueID
	// Instruments returns the venue's tradable instrument set. Called once
	// during startup; a failure here is fatal to the scan loop.
	Instruments(ctx context.Context) ([]models.Instrument, error)
	// FetchTicker retrieves the current bid/ask/volume for one instrument.
	FetchTicker(ctx context.Context, in models.Instrument) (models.Quote, error)
	// Close releases the venue's connections.
	Close() error
}
