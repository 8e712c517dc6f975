package kucoin

import (
	"testing"

	"arbiscan/models"
)

func TestNativeSymbol(t *testing.T) {
	in := models.Instrument{Base: "BTC", Quote: "USDT"}
	if got := nativeSymbol(in); got != "BTC-USDT" {
		t.Fatalf("expected BTC-USDT, got %s", got)
	}
}

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"64000.1", 64000.1, true},
		{"", 0, true},
		{"0", 0, true},
		{"abc", 0, false},
	}
	for _, tc := range cases {
		got, err := parsePrice(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("parsePrice(%q) returned error: %v", tc.in, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("parsePrice(%q) expected error", tc.in)
		}
		if tc.ok && got != tc.want {
			t.Fatalf("parsePrice(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
