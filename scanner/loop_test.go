package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"arbiscan/channel"
	appconfig "arbiscan/config"
	"arbiscan/models"
	"arbiscan/venue"
)

func loopConfig() *appconfig.Config {
	cfg := &appconfig.Config{}
	cfg.Scanner.Interval = 20 * time.Millisecond
	cfg.Scanner.FetchTimeout = time.Second
	cfg.Scanner.QuoteCurrencies = []string{"USDT"}
	return cfg
}

func waitForSnapshot(t *testing.T, ch *channel.Channels) *models.Snapshot {
	t.Helper()
	select {
	case s := <-ch.Snapshots:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestLoopStartupAbortsOnInstrumentFailure(t *testing.T) {
	good := &fakeSource{id: "binance", instruments: []models.Instrument{btcUSDT}}
	bad := &fakeSource{id: "kucoin", instErr: errors.New("listing down")}

	loop := NewLoop(loopConfig(), []venue.MarketDataSource{good, bad}, models.FeeSchedule{}, channel.NewChannels(1))
	if err := loop.Start(context.Background()); err == nil {
		t.Fatal("expected startup to abort when a venue cannot list instruments")
	}
	if loop.State() != StateStopped {
		t.Fatalf("expected stopped state after failed start, got %s", loop.State())
	}
}

func TestLoopResolvesCommonInstruments(t *testing.T) {
	ethBTC := models.Instrument{Base: "ETH", Quote: "BTC"}
	solUSDT := models.Instrument{Base: "SOL", Quote: "USDT"}

	a := &fakeSource{
		id:          "binance",
		instruments: []models.Instrument{btcUSDT, ethUSDT, ethBTC, solUSDT},
		quotes: map[models.Instrument]models.Quote{
			btcUSDT: {Bid: 100, Ask: 101, Volume: 10},
			ethUSDT: {Bid: 10, Ask: 10.1, Volume: 50},
		},
	}
	b := &fakeSource{
		id:          "kucoin",
		instruments: []models.Instrument{btcUSDT, ethUSDT, ethBTC},
		quotes: map[models.Instrument]models.Quote{
			btcUSDT: {Bid: 105, Ask: 106, Volume: 5},
			ethUSDT: {Bid: 10, Ask: 10.2, Volume: 40},
		},
	}

	fees := models.FeeSchedule{"binance": 0.001, "kucoin": 0.001}
	channels := channel.NewChannels(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loop := NewLoop(loopConfig(), []venue.MarketDataSource{a, b}, fees, channels)
	if err := loop.Start(ctx); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer loop.Stop()

	instruments := loop.Instruments()
	// ETH/BTC fails the quote allow-list, SOL/USDT is not on kucoin.
	want := []models.Instrument{btcUSDT, ethUSDT}
	if len(instruments) != len(want) {
		t.Fatalf("expected %d instruments, got %v", len(want), instruments)
	}
	for i, in := range want {
		if instruments[i] != in {
			t.Fatalf("instrument %d = %v, want %v", i, instruments[i], in)
		}
	}
	if loop.State() != StateRunning {
		t.Fatalf("expected running state, got %s", loop.State())
	}
}

func TestLoopPublishesRankedSnapshot(t *testing.T) {
	a := &fakeSource{
		id:          "binance",
		instruments: []models.Instrument{btcUSDT},
		quotes: map[models.Instrument]models.Quote{
			btcUSDT: {Bid: 100, Ask: 101, Volume: 10},
		},
	}
	b := &fakeSource{
		id:          "kucoin",
		instruments: []models.Instrument{btcUSDT},
		quotes: map[models.Instrument]models.Quote{
			btcUSDT: {Bid: 105, Ask: 106, Volume: 5},
		},
	}

	fees := models.FeeSchedule{"binance": 0.001, "kucoin": 0.004}
	channels := channel.NewChannels(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loop := NewLoop(loopConfig(), []venue.MarketDataSource{a, b}, fees, channels)
	if err := loop.Start(ctx); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer loop.Stop()

	snapshot := waitForSnapshot(t, channels)
	if snapshot.ID == "" || snapshot.StartedAt.IsZero() {
		t.Fatalf("snapshot missing identity: %+v", snapshot)
	}
	if len(snapshot.Quotes[btcUSDT]) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(snapshot.Quotes[btcUSDT]))
	}
	if spread := snapshot.RawSpreads[btcUSDT]; spread == nil || *spread != 4 {
		t.Fatalf("expected raw spread 4, got %v", spread)
	}
	if len(snapshot.Opportunities) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(snapshot.Opportunities))
	}
	best := snapshot.BestOpportunity(btcUSDT)
	if best == nil || best.BuyVenue != "binance" || best.SellVenue != "kucoin" {
		t.Fatalf("unexpected best opportunity: %+v", best)
	}
}

func TestLoopContinuesAfterEvaluationError(t *testing.T) {
	a := &fakeSource{
		id:          "binance",
		instruments: []models.Instrument{btcUSDT, ethUSDT},
		quotes: map[models.Instrument]models.Quote{
			btcUSDT: {Bid: 100, Ask: 101, Volume: 10},
			ethUSDT: {Bid: 10, Ask: 10.1, Volume: 50},
		},
	}
	b := &fakeSource{
		id:          "mystery",
		instruments: []models.Instrument{btcUSDT, ethUSDT},
		quotes: map[models.Instrument]models.Quote{
			btcUSDT: {Bid: 105, Ask: 106, Volume: 5},
			ethUSDT: {Bid: 9.9, Ask: 10.05, Volume: 40},
		},
	}

	// "mystery" is absent from the schedule: BTC/USDT evaluation errors out
	// because its quotes cross, but the cycle still publishes.
	fees := models.FeeSchedule{"binance": 0.001}
	channels := channel.NewChannels(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loop := NewLoop(loopConfig(), []venue.MarketDataSource{a, b}, fees, channels)
	if err := loop.Start(ctx); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer loop.Stop()

	snapshot := waitForSnapshot(t, channels)
	if len(snapshot.Opportunities) != 0 {
		t.Fatalf("expected no opportunities from failed instrument, got %d", len(snapshot.Opportunities))
	}
	if _, ok := snapshot.RawSpreads[ethUSDT]; !ok {
		t.Fatal("expected ETH/USDT entry despite BTC/USDT failure")
	}
	if _, ok := snapshot.RawSpreads[btcUSDT]; ok {
		t.Fatal("failed instrument should have no spread entry")
	}
}

func TestLoopGracefulStop(t *testing.T) {
	a := &fakeSource{
		id:          "binance",
		instruments: []models.Instrument{btcUSDT},
		quotes: map[models.Instrument]models.Quote{
			btcUSDT: {Bid: 100, Ask: 101, Volume: 10},
		},
	}
	b := &fakeSource{
		id:          "kucoin",
		instruments: []models.Instrument{btcUSDT},
		quotes: map[models.Instrument]models.Quote{
			btcUSDT: {Bid: 100, Ask: 101, Volume: 10},
		},
	}

	fees := models.FeeSchedule{"binance": 0.001, "kucoin": 0.001}
	channels := channel.NewChannels(4)
	ctx, cancel := context.WithCancel(context.Background())

	loop := NewLoop(loopConfig(), []venue.MarketDataSource{a, b}, fees, channels)
	if err := loop.Start(ctx); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	waitForSnapshot(t, channels)

	cancel()
	loop.Stop()

	if loop.State() != StateStopped {
		t.Fatalf("expected stopped state, got %s", loop.State())
	}
	if err := loop.Start(context.Background()); err == nil {
		t.Fatal("expected error restarting a stopped loop")
	}
}

func TestLoopDoubleStart(t *testing.T) {
	a := &fakeSource{id: "binance", instruments: []models.Instrument{btcUSDT},
		quotes: map[models.Instrument]models.Quote{btcUSDT: {Bid: 100, Ask: 101, Volume: 10}}}
	b := &fakeSource{id: "kucoin", instruments: []models.Instrument{btcUSDT},
		quotes: map[models.Instrument]models.Quote{btcUSDT: {Bid: 100, Ask: 101, Volume: 10}}}

	fees := models.FeeSchedule{"binance": 0.001, "kucoin": 0.001}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loop := NewLoop(loopConfig(), []venue.MarketDataSource{a, b}, fees, channel.NewChannels(1))
	if err := loop.Start(ctx); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer loop.Stop()

	if err := loop.Start(ctx); err == nil {
		t.Fatal("expected error on second Start")
	}
}
