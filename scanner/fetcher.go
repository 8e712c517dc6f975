package scanner

import (
	"context"
	"time"

	"arbiscan/logger"
	"arbiscan/models"
	"arbiscan/venue"
)

// Fetcher wraps a single ticker request with a hard per-call timeout so a
// slow venue cannot stall a scan cycle.
type Fetcher struct {
	timeout time.Duration
	log     *logger.Log
}

// NewFetcher builds a fetcher enforcing the given timeout on every call.
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		timeout: timeout,
		log:     logger.GetLogger(),
	}
}

// Fetch retrieves one quote. Errors are returned to the caller, never
// propagated as panics; a failed fetch is counted and logged at warn level
// so one venue's outage leaves the rest of the cycle intact.
func (f *Fetcher) Fetch(ctx context.Context, src venue.MarketDataSource, in models.Instrument) (models.Quote, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	logger.IncrementQuoteFetch()

	quote, err := src.FetchTicker(fetchCtx, in)
	if err != nil {
		logger.IncrementFetchFailure()
		f.log.WithComponent("quote_fetcher").WithFields(logger.Fields{
			"venue":      src.ID(),
			"instrument": in.Symbol(),
		}).WithError(err).Warn("quote fetch failed")
		return models.Quote{}, err
	}
	return quote, nil
}
