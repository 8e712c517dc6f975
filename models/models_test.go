package models

import (
	"testing"
	"time"
)

func TestParseInstrument(t *testing.T) {
	in, err := ParseInstrument("btc/usdt")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if in.Base != "BTC" || in.Quote != "USDT" {
		t.Fatalf("unexpected instrument: %+v", in)
	}
	if in.Symbol() != "BTC/USDT" {
		t.Fatalf("unexpected symbol: %s", in.Symbol())
	}
	for _, bad := range []string{"", "BTC", "BTC/", "/USDT", "BTC/USDT/X"} {
		if _, err := ParseInstrument(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestQuoteIsDegenerate(t *testing.T) {
	in := Instrument{Base: "BTC", Quote: "USDT"}
	base := Quote{Venue: "binance", Instrument: in, Bid: 100, Ask: 101, Volume: 10, FetchedAt: time.Now()}
	if base.IsDegenerate() {
		t.Fatalf("healthy quote flagged degenerate: %+v", base)
	}

	cases := []Quote{
		{Venue: "binance", Instrument: in, Bid: 0, Ask: 101, Volume: 10},
		{Venue: "binance", Instrument: in, Bid: 100, Ask: 0, Volume: 10},
		{Venue: "binance", Instrument: in, Bid: 100, Ask: 101, Volume: 0},
	}
	for _, q := range cases {
		if !q.IsDegenerate() {
			t.Fatalf("expected degenerate: %+v", q)
		}
	}
}

func TestFeeScheduleRate(t *testing.T) {
	fees := FeeSchedule{"binance": 0.001}
	rate, err := fees.Rate("binance")
	if err != nil || rate != 0.001 {
		t.Fatalf("rate: %v %v", rate, err)
	}
	if _, err := fees.Rate("kraken"); err == nil {
		t.Fatalf("expected error for unknown venue")
	}
}

func TestSnapshotBestOpportunity(t *testing.T) {
	btc := Instrument{Base: "BTC", Quote: "USDT"}
	eth := Instrument{Base: "ETH", Quote: "USDT"}
	s := NewSnapshot([]Instrument{btc, eth})
	if s.ID == "" {
		t.Fatalf("snapshot id missing")
	}
	if s.BestOpportunity(btc) != nil {
		t.Fatalf("expected no opportunity yet")
	}
	s.Opportunities = []Opportunity{
		{Instrument: btc, ProfitPercentage: 3.4, BuyVenue: "binance", SellVenue: "bybit"},
		{Instrument: btc, ProfitPercentage: 1.1, BuyVenue: "okx", SellVenue: "bybit"},
	}
	best := s.BestOpportunity(btc)
	if best == nil || best.ProfitPercentage != 3.4 {
		t.Fatalf("unexpected best: %+v", best)
	}
	if s.BestOpportunity(eth) != nil {
		t.Fatalf("eth should have no opportunity")
	}
}
