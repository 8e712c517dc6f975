package scanner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"arbiscan/channel"
	appconfig "arbiscan/config"
	"arbiscan/logger"
	"arbiscan/models"
	"arbiscan/processor"
	"arbiscan/venue"
)

// State tracks the loop lifecycle. Transitions only move forward:
// Initializing -> Running -> ShuttingDown -> Stopped.
type State int32

const (
	StateInitializing State = iota
	StateRunning
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Loop drives the polling cycle: scan all venues, evaluate and rank the
// results, publish one snapshot per completed cycle. A cycle interrupted by
// shutdown is discarded, never published.
type Loop struct {
	config    *appconfig.Config
	sources   []venue.MarketDataSource
	scanner   *Scanner
	evaluator *processor.Evaluator
	channels  *channel.Channels
	ctx       context.Context
	wg        *sync.WaitGroup
	mu        sync.RWMutex
	state     State
	log       *logger.Log

	instruments []models.Instrument

	// Metrics
	cyclesRun   int64
	cycleErrors int64
}

// NewLoop wires a loop over the given sources. The fee schedule drives the
// evaluator; snapshots go out on channels.
func NewLoop(cfg *appconfig.Config, sources []venue.MarketDataSource, fees models.FeeSchedule, channels *channel.Channels) *Loop {
	fetcher := NewFetcher(cfg.Scanner.FetchTimeout)
	return &Loop{
		config:    cfg,
		sources:   sources,
		scanner:   NewScanner(fetcher),
		evaluator: processor.NewEvaluator(fees),
		channels:  channels,
		wg:        &sync.WaitGroup{},
		state:     StateInitializing,
		log:       logger.GetLogger(),
	}
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Instruments returns the instrument universe resolved at startup.
func (l *Loop) Instruments() []models.Instrument {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.instruments
}

// Start resolves the tradable instrument universe and begins polling. Any
// venue failing its instrument listing aborts startup; a half-known universe
// would make cross-venue comparison meaningless.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.state != StateInitializing {
		l.mu.Unlock()
		return fmt.Errorf("scan loop already started (state %s)", l.state)
	}
	l.ctx = ctx
	l.mu.Unlock()

	log := l.log.WithComponent("scan_loop").WithFields(logger.Fields{"operation": "start"})

	instruments, err := l.resolveInstruments(ctx)
	if err != nil {
		l.mu.Lock()
		l.state = StateStopped
		l.mu.Unlock()
		return err
	}
	if len(instruments) == 0 {
		l.mu.Lock()
		l.state = StateStopped
		l.mu.Unlock()
		return fmt.Errorf("no common instruments across %d venues", len(l.sources))
	}

	l.mu.Lock()
	l.instruments = instruments
	l.state = StateRunning
	l.mu.Unlock()

	log.WithFields(logger.Fields{
		"venues":      len(l.sources),
		"instruments": len(instruments),
		"interval":    l.config.Scanner.Interval,
	}).Info("scan loop started")

	l.wg.Add(1)
	go l.run()
	return nil
}

// Stop requests shutdown and blocks until the in-flight cycle has been
// abandoned and the loop goroutine has exited.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.state != StateRunning {
		l.mu.Unlock()
		return
	}
	l.state = StateShuttingDown
	l.mu.Unlock()

	l.log.WithComponent("scan_loop").Info("stopping scan loop")
	l.wg.Wait()

	l.mu.Lock()
	l.state = StateStopped
	l.mu.Unlock()
	l.log.WithComponent("scan_loop").Info("scan loop stopped")
}

func (l *Loop) stopping() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state != StateRunning
}

// resolveInstruments intersects the instrument lists of every venue and
// keeps the pairs quoted in an allowed quote currency, sorted by symbol so
// cycles iterate deterministically.
func (l *Loop) resolveInstruments(ctx context.Context) ([]models.Instrument, error) {
	allowed := make(map[string]struct{}, len(l.config.Scanner.QuoteCurrencies))
	for _, q := range l.config.Scanner.QuoteCurrencies {
		allowed[q] = struct{}{}
	}

	seen := make(map[models.Instrument]int)
	for _, src := range l.sources {
		listed, err := src.Instruments(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing instruments on %s: %w", src.ID(), err)
		}
		l.log.WithComponent("scan_loop").WithFields(logger.Fields{
			"venue":       src.ID(),
			"instruments": len(listed),
		}).Info("fetched instrument list")

		unique := make(map[models.Instrument]struct{}, len(listed))
		for _, in := range listed {
			unique[in] = struct{}{}
		}
		for in := range unique {
			seen[in]++
		}
	}

	var common []models.Instrument
	for in, count := range seen {
		if count != len(l.sources) {
			continue
		}
		if len(allowed) > 0 {
			if _, ok := allowed[in.Quote]; !ok {
				continue
			}
		}
		common = append(common, in)
	}

	sort.Slice(common, func(i, j int) bool {
		return common[i].Symbol() < common[j].Symbol()
	})

	if max := l.config.Scanner.MaxInstruments; max > 0 && len(common) > max {
		common = common[:max]
	}
	return common, nil
}

// run executes cycles on the configured cadence until shutdown.
func (l *Loop) run() {
	defer l.wg.Done()

	interval := l.config.Scanner.Interval
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-timer.C:
		}
		if l.stopping() {
			return
		}

		l.cycle()
		timer.Reset(interval)
	}
}

// cycle performs one scan, evaluates every instrument and publishes the
// ranked snapshot. Evaluation errors skip the instrument and the cycle
// carries on; only shutdown discards the whole snapshot.
func (l *Loop) cycle() {
	log := l.log.WithComponent("scan_loop").WithFields(logger.Fields{"operation": "cycle"})

	instruments := l.Instruments()
	snapshot := models.NewSnapshot(instruments)

	snapshot.Quotes = l.scanner.Scan(l.ctx, l.sources, instruments)

	for _, in := range instruments {
		spread, opportunities, err := l.evaluator.Evaluate(in, snapshot.Quotes[in])
		if err != nil {
			l.mu.Lock()
			l.cycleErrors++
			l.mu.Unlock()
			log.WithFields(logger.Fields{"instrument": in.Symbol()}).WithError(err).Error("evaluation failed")
			continue
		}
		snapshot.RawSpreads[in] = spread
		snapshot.Opportunities = append(snapshot.Opportunities, opportunities...)
	}

	processor.Rank(snapshot.Opportunities)
	snapshot.Duration = time.Since(snapshot.StartedAt)

	// A cycle cut short by shutdown is never reported.
	if l.ctx.Err() != nil || l.stopping() {
		log.WithFields(logger.Fields{"snapshot": snapshot.ID}).Info("discarding partial cycle on shutdown")
		return
	}

	l.mu.Lock()
	l.cyclesRun++
	l.mu.Unlock()
	logger.IncrementCycle(len(snapshot.Opportunities))

	if !l.channels.SendSnapshot(l.ctx, snapshot) {
		log.WithFields(logger.Fields{"snapshot": snapshot.ID}).Warn("snapshot dropped, reporting backlogged")
		return
	}

	log.WithFields(logger.Fields{
		"snapshot":      snapshot.ID,
		"duration":      snapshot.Duration,
		"opportunities": len(snapshot.Opportunities),
	}).Info("cycle completed")
}

// GetMetrics reports loop counters for the periodic status report.
func (l *Loop) GetMetrics() map[string]int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return map[string]int64{
		"cycles_run":   l.cyclesRun,
		"cycle_errors": l.cycleErrors,
	}
}
