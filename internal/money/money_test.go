package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestQuantizeDownNeverRoundsUp(t *testing.T) {
	cases := []struct{ qty, step, want string }{
		{"0.002001", "0.001", "0.002"},
		{"0.1", "0.01", "0.1"},
		{"0.0000002", "0.001", "0"},
		{"10", "0.001", "10"},
	}
	for _, c := range cases {
		got := QuantizeDown(d(c.qty), d(c.step))
		if !got.Equal(d(c.want)) {
			t.Errorf("QuantizeDown(%s, %s) = %s, want %s", c.qty, c.step, got, c.want)
		}
		if got.GreaterThan(d(c.qty)) {
			t.Errorf("QuantizeDown(%s, %s) = %s, exceeds input", c.qty, c.step, got)
		}
	}
}

func TestQuantizeDownIsMultipleOfStep(t *testing.T) {
	got := QuantizeDown(d("1.23456"), d("0.01"))
	if !got.Mod(d("0.01")).IsZero() {
		t.Errorf("quantized %s is not a multiple of step", got)
	}
}

func TestCheckMinNotionalBoundary(t *testing.T) {
	if CheckMinNotional(d("0.0002"), d("50000"), d("10")) != NotionalOK {
		t.Error("exactly min_notional should be accepted")
	}
	if CheckMinNotional(d("0.00019999"), d("50000"), d("10")) != NotionalBelowMin {
		t.Error("min_notional - epsilon should be rejected")
	}
}

func TestCheckLotSizeStepRejection(t *testing.T) {
	if CheckLotSize(d("0.0015"), d("0.001"), d("1000"), d("0.001")) != LotBadStep {
		t.Error("qty not aligned to step should be rejected")
	}
	if CheckLotSize(d("0.002"), d("0.001"), d("1000"), d("0.001")) != LotOK {
		t.Error("qty aligned to step should be accepted")
	}
}

func TestWeightedAverage(t *testing.T) {
	avg := WeightedAverage([]decimal.Decimal{d("1"), d("1")}, []decimal.Decimal{d("100"), d("200")})
	if !avg.Equal(d("150")) {
		t.Errorf("WeightedAverage = %s, want 150", avg)
	}
}

func TestFilterCacheConcurrentAccess(t *testing.T) {
	c := NewFilterCache()
	c.Set("binance", "BTCUSDT", SymbolFilters{StepSize: d("0.001")})
	f, ok := c.Get("binance", "BTCUSDT")
	if !ok || !f.StepSize.Equal(d("0.001")) {
		t.Fatal("expected cached filters to round-trip")
	}
	if _, ok := c.Get("binance", "ETHUSDT"); ok {
		t.Fatal("expected miss for uncached symbol")
	}
}
