package agent

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDefaultExitLevelsEmptyWhenNoTableConfigured(t *testing.T) {
	a := &Adapter{}
	if got := a.defaultExitLevels(); got != nil {
		t.Errorf("expected nil levels, got %v", got)
	}
}

func TestDefaultExitLevelsBuildsConfiguredSlots(t *testing.T) {
	a := &Adapter{defaults: DefaultExitLevels{
		StopLossPct:   decimal.NewFromFloat(0.02),
		TakeProfitMid: decimal.NewFromFloat(0.05),
	}}
	levels := a.defaultExitLevels()
	if len(levels) != 2 {
		t.Fatalf("expected 2 levels, got %d", len(levels))
	}
}

func TestExecuteRejectsInvalidSide(t *testing.T) {
	a := &Adapter{}
	_, err := a.Execute(context.Background(), Decision{
		Symbol:     "BTCUSDT",
		Side:       "HOLD",
		DesiredUSD: decimal.NewFromInt(100),
		Confidence: 0.7,
	})
	if err == nil {
		t.Fatal("expected validation error for invalid side")
	}
}

func TestExecuteRejectsNonPositiveDesiredUSD(t *testing.T) {
	a := &Adapter{}
	_, err := a.Execute(context.Background(), Decision{
		Symbol:     "BTCUSDT",
		Side:       "BUY",
		DesiredUSD: decimal.Zero,
		Confidence: 0.7,
	})
	if err == nil {
		t.Fatal("expected validation error for non-positive desired_usd")
	}
}
