package venue

import (
	"fmt"
	"time"

	"arbiscan/config"
	"arbiscan/logger"
	"arbiscan/models"
	"arbiscan/venue/binance"
	"arbiscan/venue/bybit"
	"arbiscan/venue/kucoin"
	"arbiscan/venue/okx"
)

// Registry holds the constructed market-data sources and the fee schedule
// derived from configuration. Sources keep config order so scan output stays
// deterministic across cycles.
type Registry struct {
	sources []MarketDataSource
	fees    models.FeeSchedule
	log     *logger.Log
}

// NewRegistry builds one client per enabled venue. The returned registry owns
// the clients and releases them via Close.
func NewRegistry(cfg *config.Config) (*Registry, error) {
	log := logger.GetLogger()

	enabled := cfg.EnabledVenues()
	if len(enabled) < 2 {
		return nil, fmt.Errorf("need at least two enabled venues, got %d", len(enabled))
	}

	timeout := cfg.Scanner.FetchTimeout
	sources := make([]MarketDataSource, 0, len(enabled))
	fees := make(models.FeeSchedule, len(enabled))

	for _, vc := range enabled {
		src, err := newSource(vc, timeout)
		if err != nil {
			for _, s := range sources {
				s.Close()
			}
			return nil, err
		}
		sources = append(sources, src)
		fees[models.VenueID(vc.Name)] = vc.Fee
	}

	log.WithComponent("venue_registry").WithFields(logger.Fields{
		"venues": len(sources),
	}).Info("venue registry initialized")

	return &Registry{sources: sources, fees: fees, log: log}, nil
}

func newSource(vc config.VenueConfig, timeout time.Duration) (MarketDataSource, error) {
	switch vc.Name {
	case "binance":
		return binance.New(vc, timeout), nil
	case "bybit":
		return bybit.New(vc, timeout), nil
	case "kucoin":
		return kucoin.New(vc, timeout), nil
	case "okx":
		return okx.New(vc, timeout), nil
	default:
		return nil, fmt.Errorf("unsupported venue %q", vc.Name)
	}
}

// Sources returns the clients in configuration order.
func (r *Registry) Sources() []MarketDataSource {
	return r.sources
}

// Fees returns the schedule keyed by venue identifier.
func (r *Registry) Fees() models.FeeSchedule {
	return r.fees
}

// Close shuts every client down, keeping the first error.
func (r *Registry) Close() error {
	var firstErr error
	for _, s := range r.sources {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
