package metrics

import (
	"testing"
	"time"

	"github.com/pantheonelite/counciltrader/internal/store"
)

func TestRecordHelpersDoNotPanic(t *testing.T) {
	RecordTradeExecuted("BTCUSDT", "BUY")
	RecordOrderRejected("Throttled")
	if Handler() == nil {
		t.Error("expected non-nil metrics handler")
	}
}

func TestMustRegisterIdempotentDoesNotPanicOnRepeat(t *testing.T) {
	mustRegisterIdempotent(tradesExecuted, ordersRejected, openPositionsGauge, rateLimiterUtilization)
	mustRegisterIdempotent(tradesExecuted, ordersRejected, openPositionsGauge, rateLimiterUtilization)
}

func TestMergedDurationCollapsesOverlappingSameSideIntervals(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	windowStart := base
	windowEnd := base.Add(time.Hour)

	ivs := []interval{
		{start: base, end: base.Add(40 * time.Minute)},
		{start: base.Add(20 * time.Minute), end: base.Add(time.Hour)},
	}
	got := mergedDuration(ivs, windowStart, windowEnd)
	if got != time.Hour {
		t.Errorf("mergedDuration = %v, want %v (overlapping union should collapse to the full window)", got, time.Hour)
	}
}

func TestMergedDurationClipsToWindow(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	windowStart := base.Add(10 * time.Minute)
	windowEnd := base.Add(30 * time.Minute)

	ivs := []interval{{start: base, end: base.Add(time.Hour)}}
	got := mergedDuration(ivs, windowStart, windowEnd)
	want := 20 * time.Minute
	if got != want {
		t.Errorf("mergedDuration = %v, want %v (clipped to window)", got, want)
	}
}

func TestHoldTimePercentagesNeverExceedsHundredWithConcurrentSymbols(t *testing.T) {
	now := time.Now()
	opened := now.Add(-time.Hour)

	positions := []store.FuturesPosition{
		{Symbol: "BTCUSDT", PositionSide: store.PositionSideLong, OpenedAt: opened},
		{Symbol: "ETHUSDT", PositionSide: store.PositionSideLong, OpenedAt: opened},
		{Symbol: "SOLUSDT", PositionSide: store.PositionSideShort, OpenedAt: opened},
	}

	var longIvs, shortIvs []interval
	for _, p := range positions {
		iv := interval{start: p.OpenedAt, end: now}
		if short(p) {
			shortIvs = append(shortIvs, iv)
		} else {
			longIvs = append(longIvs, iv)
		}
	}
	totalWindow := now.Sub(opened)
	longDuration := mergedDuration(longIvs, opened, now)
	shortDuration := mergedDuration(shortIvs, opened, now)
	longPct := 100 * float64(longDuration) / float64(totalWindow)
	shortPct := 100 * float64(shortDuration) / float64(totalWindow)
	if sum := longPct + shortPct; sum > 100 {
		longPct = longPct * 100 / sum
		shortPct = shortPct * 100 / sum
	}
	flatPct := 100 - longPct - shortPct
	if flatPct < 0 {
		flatPct = 0
	}

	total := longPct + shortPct + flatPct
	if total < 99.999 || total > 100.001 {
		t.Errorf("long+short+flat = %v, want 100 (a LONG and a SHORT held at once on different symbols must not push the sum over)", total)
	}
}

func TestShortDerivesFromAmountSignWhenBoth(t *testing.T) {
	if short(store.FuturesPosition{PositionSide: store.PositionSideBoth, PositionAmt: "0.5"}) {
		t.Error("positive-amount BOTH row should not count as short")
	}
	if !short(store.FuturesPosition{PositionSide: store.PositionSideBoth, PositionAmt: "-0.5"}) {
		t.Error("negative-amount BOTH row should count as short")
	}
}
