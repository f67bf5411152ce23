package position

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/pantheonelite/counciltrader/internal/store"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestDirectionalPnLLongProfit(t *testing.T) {
	got := directionalPnL(store.PositionSideLong, d("50000"), d("51000"), d("0.1"), d("0.1"))
	if !got.Equal(d("100")) {
		t.Errorf("long pnl = %s, want 100", got)
	}
}

func TestDirectionalPnLShortProfit(t *testing.T) {
	got := directionalPnL(store.PositionSideShort, d("50000"), d("49000"), d("0.1"), d("-0.1"))
	if !got.Equal(d("100")) {
		t.Errorf("short pnl = %s, want 100", got)
	}
}

func TestDirectionalPnLLongLoss(t *testing.T) {
	got := directionalPnL(store.PositionSideLong, d("50000"), d("49000"), d("0.1"), d("0.1"))
	if !got.Equal(d("-100")) {
		t.Errorf("long loss pnl = %s, want -100", got)
	}
}

func TestDirectionalPnLShortLoss(t *testing.T) {
	got := directionalPnL(store.PositionSideShort, d("50000"), d("51000"), d("0.1"), d("-0.1"))
	if !got.Equal(d("-100")) {
		t.Errorf("short loss pnl = %s, want -100", got)
	}
}

func TestDirectionalPnLBothModeUsesAmountSign(t *testing.T) {
	longLeg := directionalPnL(store.PositionSideBoth, d("50000"), d("51000"), d("0.1"), d("0.1"))
	if !longLeg.Equal(d("100")) {
		t.Errorf("BOTH long-leg pnl = %s, want 100", longLeg)
	}
	shortLeg := directionalPnL(store.PositionSideBoth, d("50000"), d("51000"), d("0.1"), d("-0.1"))
	if !shortLeg.Equal(d("-100")) {
		t.Errorf("BOTH short-leg pnl = %s, want -100", shortLeg)
	}
}
