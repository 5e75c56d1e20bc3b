package fx

import (
	"math"
	"testing"

	"github.com/dstanton/folio/internal/models"
)

func approxEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestConvertSameCurrency(t *testing.T) {
	rates := models.RateTable{"GBP": 1, "USD": 1.27}
	if got := Convert(100, "USD", "USD", rates); got != 100 {
		t.Errorf("Convert same currency = %v, want 100", got)
	}
}

func TestConvertEmptyTable(t *testing.T) {
	if got := Convert(100, "USD", "GBP", nil); got != 100 {
		t.Errorf("Convert nil table = %v, want 100", got)
	}
	if got := Convert(100, "USD", "GBP", models.RateTable{}); got != 100 {
		t.Errorf("Convert empty table = %v, want 100", got)
	}
}

func TestConvertRatioForm(t *testing.T) {
	// Table fetched for base GBP: rate[GBP]=1, rate[USD]=1.27
	rates := models.RateTable{"GBP": 1, "USD": 1.27}

	// 127 USD -> GBP: 127 * (1 / 1.27) = 100
	if got := Convert(127, "USD", "GBP", rates); !approxEqual(got, 100, 1e-9) {
		t.Errorf("127 USD -> GBP = %v, want 100", got)
	}

	// 100 GBP -> USD: 100 * (1.27 / 1) = 127
	if got := Convert(100, "GBP", "USD", rates); !approxEqual(got, 127, 1e-9) {
		t.Errorf("100 GBP -> USD = %v, want 127", got)
	}
}

func TestConvertRatioFormNonBasePair(t *testing.T) {
	// Neither side is the fetch base; the ratio form still resolves.
	rates := models.RateTable{"GBP": 1, "USD": 1.27, "EUR": 1.17}

	got := Convert(117, "EUR", "USD", rates)
	want := 117 * (1.27 / 1.17)
	if !approxEqual(got, want, 1e-9) {
		t.Errorf("117 EUR -> USD = %v, want %v", got, want)
	}
}

func TestConvertRoundTrip(t *testing.T) {
	rates := models.RateTable{"GBP": 1, "USD": 1.27, "EUR": 1.17, "AUD": 1.91}

	for _, pair := range [][2]string{{"USD", "GBP"}, {"EUR", "AUD"}, {"GBP", "EUR"}} {
		amount := 250.0
		there := Convert(amount, pair[0], pair[1], rates)
		back := Convert(there, pair[1], pair[0], rates)
		if !approxEqual(back, amount, 1e-9) {
			t.Errorf("round trip %s<->%s: %v -> %v -> %v", pair[0], pair[1], amount, there, back)
		}
	}
}

func TestConvertUnknownCurrencyNoOp(t *testing.T) {
	rates := models.RateTable{"GBP": 1, "USD": 1.27}

	if got := Convert(100, "JPY", "GBP", rates); got != 100 {
		t.Errorf("unknown from = %v, want 100", got)
	}
	if got := Convert(100, "GBP", "JPY", rates); got != 100 {
		t.Errorf("unknown to = %v, want 100", got)
	}
	if got := Convert(100, "JPY", "KRW", rates); got != 100 {
		t.Errorf("both unknown = %v, want 100", got)
	}
}

func TestConvertZeroFromRateNoOp(t *testing.T) {
	rates := models.RateTable{"GBP": 1, "XXX": 0}
	if got := Convert(100, "XXX", "GBP", rates); got != 100 {
		t.Errorf("zero from rate = %v, want 100 (no-op)", got)
	}
}

func TestConvertCaseInsensitive(t *testing.T) {
	rates := models.RateTable{"GBP": 1, "USD": 1.27}
	if got := Convert(127, "usd", "gbp", rates); !approxEqual(got, 100, 1e-9) {
		t.Errorf("lowercase codes = %v, want 100", got)
	}
}
