package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"arbiscan/models"
	"arbiscan/processor"
	"arbiscan/venue"
)

type fakeSource struct {
	id          models.VenueID
	instruments []models.Instrument
	instErr     error
	quotes      map[models.Instrument]models.Quote
	fetchErr    error
	delay       time.Duration
}

func (f *fakeSource) ID() models.VenueID { return f.id }

func (f *fakeSource) Instruments(ctx context.Context) ([]models.Instrument, error) {
	if f.instErr != nil {
		return nil, f.instErr
	}
	return f.instruments, nil
}

func (f *fakeSource) FetchTicker(ctx context.Context, in models.Instrument) (models.Quote, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return models.Quote{}, ctx.Err()
		}
	}
	if f.fetchErr != nil {
		return models.Quote{}, f.fetchErr
	}
	q, ok := f.quotes[in]
	if !ok {
		return models.Quote{}, errors.New("no such instrument")
	}
	q.Venue = f.id
	q.Instrument = in
	q.FetchedAt = time.Now().UTC()
	return q, nil
}

func (f *fakeSource) Close() error { return nil }

var (
	btcUSDT = models.Instrument{Base: "BTC", Quote: "USDT"}
	ethUSDT = models.Instrument{Base: "ETH", Quote: "USDT"}
)

func TestScanGroupsByInstrument(t *testing.T) {
	a := &fakeSource{id: "binance", quotes: map[models.Instrument]models.Quote{
		btcUSDT: {Bid: 100, Ask: 101, Volume: 10},
		ethUSDT: {Bid: 10, Ask: 10.1, Volume: 50},
	}}
	b := &fakeSource{id: "kucoin", quotes: map[models.Instrument]models.Quote{
		btcUSDT: {Bid: 105, Ask: 106, Volume: 5},
	}}

	s := NewScanner(NewFetcher(time.Second))
	sources := []venue.MarketDataSource{a, b}
	group := s.Scan(context.Background(), sources, []models.Instrument{btcUSDT, ethUSDT})

	if len(group) != 2 {
		t.Fatalf("expected 2 instrument groups, got %d", len(group))
	}
	if len(group[btcUSDT]) != 2 {
		t.Fatalf("expected 2 BTC/USDT quotes, got %d", len(group[btcUSDT]))
	}
	// kucoin does not serve ETH/USDT; the failed fetch contributes nothing.
	if len(group[ethUSDT]) != 1 {
		t.Fatalf("expected 1 ETH/USDT quote, got %d", len(group[ethUSDT]))
	}
}

func TestScanKeepsDegenerateQuotes(t *testing.T) {
	a := &fakeSource{id: "binance", quotes: map[models.Instrument]models.Quote{
		btcUSDT: {Bid: 0, Ask: 101, Volume: 0},
	}}

	s := NewScanner(NewFetcher(time.Second))
	group := s.Scan(context.Background(), []venue.MarketDataSource{a}, []models.Instrument{btcUSDT})

	if len(group[btcUSDT]) != 1 {
		t.Fatalf("degenerate quote should be retained, got %d quotes", len(group[btcUSDT]))
	}
	if !group[btcUSDT][0].IsDegenerate() {
		t.Fatal("expected quote to report degenerate")
	}
}

func TestScanEmptyGroupForFailedInstrument(t *testing.T) {
	a := &fakeSource{id: "binance", fetchErr: errors.New("boom")}

	s := NewScanner(NewFetcher(time.Second))
	group := s.Scan(context.Background(), []venue.MarketDataSource{a}, []models.Instrument{btcUSDT})

	quotes, ok := group[btcUSDT]
	if !ok {
		t.Fatal("instrument missing from group map")
	}
	if len(quotes) != 0 {
		t.Fatalf("expected empty group, got %d quotes", len(quotes))
	}
}

func TestScanOrderIgnoresCompletionOrder(t *testing.T) {
	quotes := map[models.Instrument]models.Quote{
		btcUSDT: {Bid: 100, Ask: 101, Volume: 10},
	}
	venueOrder := func(slow models.VenueID) []models.VenueID {
		a := &fakeSource{id: "binance", quotes: quotes}
		b := &fakeSource{id: "kucoin", quotes: quotes}
		c := &fakeSource{id: "okx", quotes: quotes}
		for _, src := range []*fakeSource{a, b, c} {
			if src.id == slow {
				src.delay = 50 * time.Millisecond
			}
		}

		s := NewScanner(NewFetcher(time.Second))
		group := s.Scan(context.Background(), []venue.MarketDataSource{a, b, c}, []models.Instrument{btcUSDT})

		var order []models.VenueID
		for _, q := range group[btcUSDT] {
			order = append(order, q.Venue)
		}
		return order
	}

	// Whichever venue answers last, groups follow source order.
	first := venueOrder("okx")
	second := venueOrder("kucoin")
	want := []models.VenueID{"binance", "kucoin", "okx"}
	for i := range want {
		if first[i] != want[i] || second[i] != want[i] {
			t.Fatalf("group order depends on completion order: %v vs %v, want %v", first, second, want)
		}
	}
}

func TestRankedTieOrderStable(t *testing.T) {
	fees := models.FeeSchedule{"binance": 0.001, "kucoin": 0.001, "okx": 0.001}

	// kucoin and okx quote identical books, so selling on either yields the
	// same profit and the two routes tie in the ranking.
	sellVenues := func(slow models.VenueID) []models.VenueID {
		a := &fakeSource{id: "binance", quotes: map[models.Instrument]models.Quote{
			btcUSDT: {Bid: 100, Ask: 101, Volume: 10},
		}}
		b := &fakeSource{id: "kucoin", quotes: map[models.Instrument]models.Quote{
			btcUSDT: {Bid: 105, Ask: 106, Volume: 5},
		}}
		c := &fakeSource{id: "okx", quotes: map[models.Instrument]models.Quote{
			btcUSDT: {Bid: 105, Ask: 106, Volume: 5},
		}}
		for _, src := range []*fakeSource{a, b, c} {
			if src.id == slow {
				src.delay = 50 * time.Millisecond
			}
		}

		s := NewScanner(NewFetcher(time.Second))
		group := s.Scan(context.Background(), []venue.MarketDataSource{a, b, c}, []models.Instrument{btcUSDT})

		_, opps, err := processor.NewEvaluator(fees).Evaluate(btcUSDT, group[btcUSDT])
		if err != nil {
			t.Fatalf("Evaluate returned error: %v", err)
		}
		processor.Rank(opps)

		var sellers []models.VenueID
		for _, o := range opps {
			sellers = append(sellers, o.SellVenue)
		}
		return sellers
	}

	first := sellVenues("okx")
	second := sellVenues("kucoin")
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected 2 tied opportunities, got %v and %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("ranked tie order changed with completion order: %v vs %v", first, second)
		}
	}
}

func TestFetchTimeout(t *testing.T) {
	a := &fakeSource{id: "binance", delay: 200 * time.Millisecond, quotes: map[models.Instrument]models.Quote{
		btcUSDT: {Bid: 100, Ask: 101, Volume: 10},
	}}

	f := NewFetcher(20 * time.Millisecond)
	start := time.Now()
	_, err := f.Fetch(context.Background(), a, btcUSDT)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Fatalf("fetch did not respect timeout, took %v", elapsed)
	}
}
