package scanner

import (
	"context"
	"sync"
	"time"

	"arbiscan/logger"
	"arbiscan/models"
	"arbiscan/venue"
)

// Scanner fans one scan cycle out across every venue and instrument pair,
// then regroups the quotes per instrument once all fetches have settled.
type Scanner struct {
	fetcher *Fetcher
	log     *logger.Log
}

// NewScanner builds a scanner on top of the given fetcher.
func NewScanner(fetcher *Fetcher) *Scanner {
	return &Scanner{
		fetcher: fetcher,
		log:     logger.GetLogger(),
	}
}

// Scan queries every source for every instrument concurrently. Failed
// fetches contribute nothing; degenerate quotes are kept so the evaluator
// can count and skip them. Every requested instrument has an entry in the
// returned group, even when no venue produced a quote for it. Each group
// lists quotes in the sources' configuration order, never fetch-completion
// order, so downstream pairing and tie-breaking stay deterministic.
func (s *Scanner) Scan(ctx context.Context, sources []venue.MarketDataSource, instruments []models.Instrument) models.QuoteGroup {
	start := time.Now()

	type result struct {
		quote models.Quote
		ok    bool
	}

	// One cell per (source, instrument) pair; every goroutine writes only
	// its own cell, so no lock is needed.
	results := make([][]result, len(sources))
	for i := range results {
		results[i] = make([]result, len(instruments))
	}

	var wg sync.WaitGroup
	for si, src := range sources {
		for ii, in := range instruments {
			wg.Add(1)
			go func(si, ii int, src venue.MarketDataSource, in models.Instrument) {
				defer wg.Done()
				quote, err := s.fetcher.Fetch(ctx, src, in)
				if err != nil {
					return
				}
				results[si][ii] = result{quote: quote, ok: true}
			}(si, ii, src, in)
		}
	}
	wg.Wait()

	group := make(models.QuoteGroup, len(instruments))
	collected := 0
	for ii, in := range instruments {
		group[in] = nil
		for si := range sources {
			if r := results[si][ii]; r.ok {
				group[in] = append(group[in], r.quote)
				collected++
			}
		}
	}

	logger.LogPerformanceEntry(s.log.WithComponent("market_scanner"), "market_scanner", "scan", time.Since(start), logger.Fields{
		"venues":      len(sources),
		"instruments": len(instruments),
		"quotes":      collected,
	})

	return group
}
