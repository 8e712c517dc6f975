package binance

import (
	"testing"
	"time"

	"arbiscan/config"
	"arbiscan/models"
)

func TestNativeSymbol(t *testing.T) {
	in := models.Instrument{Base: "BTC", Quote: "USDT"}
	if got := nativeSymbol(in); got != "BTCUSDT" {
		t.Fatalf("expected BTCUSDT, got %s", got)
	}
}

func TestNewUsesVenueName(t *testing.T) {
	vc := config.VenueConfig{Name: "binance", Enabled: true, Fee: 0.001}
	client := New(vc, 2*time.Second)
	defer client.Close()

	if client.ID() != models.VenueID("binance") {
		t.Fatalf("unexpected venue id %s", client.ID())
	}
}
