package models

import (
	"math"
	"testing"
)

func TestHoldingValidate(t *testing.T) {
	tests := []struct {
		name    string
		holding Holding
		wantErr bool
	}{
		{"valid", Holding{Symbol: "AAPL", Quantity: 10, AverageCost: 150}, false},
		{"zero quantity ok", Holding{Symbol: "AAPL", Quantity: 0, AverageCost: 150}, false},
		{"empty symbol", Holding{Symbol: "", Quantity: 10, AverageCost: 150}, true},
		{"whitespace symbol", Holding{Symbol: "   ", Quantity: 10, AverageCost: 150}, true},
		{"negative quantity", Holding{Symbol: "AAPL", Quantity: -1, AverageCost: 150}, true},
		{"negative cost", Holding{Symbol: "AAPL", Quantity: 10, AverageCost: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.holding.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

func TestHoldingNormalize(t *testing.T) {
	h := Holding{Symbol: " aapl ", Currency: " usd "}
	h.Normalize()
	if h.Symbol != "AAPL" {
		t.Errorf("Symbol = %q, want AAPL", h.Symbol)
	}
	if h.Currency != "USD" {
		t.Errorf("Currency = %q, want USD", h.Currency)
	}
}

func TestHoldingCurrentValue(t *testing.T) {
	// Last price known and positive: market value
	h := Holding{Symbol: "AAPL", Quantity: 10, AverageCost: 100, LastPrice: 150}
	if got := h.CurrentValue(); got != 1500 {
		t.Errorf("CurrentValue() = %v, want 1500", got)
	}

	// Last price unknown: cost basis
	h.LastPrice = 0
	if got := h.CurrentValue(); got != 1000 {
		t.Errorf("CurrentValue() with no last price = %v, want 1000", got)
	}
}

func TestHoldingCostValue(t *testing.T) {
	h := Holding{Symbol: "AAPL", Quantity: 7, AverageCost: 12.5}
	if got := h.CostValue(); math.Abs(got-87.5) > 1e-9 {
		t.Errorf("CostValue() = %v, want 87.5", got)
	}
}

func TestHoldingCurrencyOr(t *testing.T) {
	h := Holding{Currency: "USD"}
	if got := h.CurrencyOr("GBP"); got != "USD" {
		t.Errorf("CurrencyOr = %q, want USD", got)
	}
	h.Currency = ""
	if got := h.CurrencyOr("GBP"); got != "GBP" {
		t.Errorf("CurrencyOr fallback = %q, want GBP", got)
	}
}

func TestRateTableLookup(t *testing.T) {
	table := RateTable{"USD": 1.27, "GBP": 1}

	if v, ok := table.Lookup("usd"); !ok || v != 1.27 {
		t.Errorf("Lookup(usd) = %v, %v", v, ok)
	}
	if _, ok := table.Lookup("JPY"); ok {
		t.Error("Lookup(JPY) should miss")
	}

	var nilTable RateTable
	if _, ok := nilTable.Lookup("USD"); ok {
		t.Error("nil table lookup should miss")
	}
}

func TestParseResolution(t *testing.T) {
	tests := []struct {
		in   string
		want Resolution
	}{
		{"daily", ResolutionDaily},
		{"weekly", ResolutionWeekly},
		{"w", ResolutionWeekly},
		{"Monthly", ResolutionMonthly},
		{"m", ResolutionMonthly},
		{"", ResolutionDaily},
		{"garbage", ResolutionDaily},
	}
	for _, tt := range tests {
		if got := ParseResolution(tt.in); got != tt.want {
			t.Errorf("ParseResolution(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
