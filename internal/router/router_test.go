package router

import (
	"testing"

	"github.com/pantheonelite/counciltrader/internal/exchange"
	"github.com/pantheonelite/counciltrader/internal/store"
)

func TestDeriveLeverageBands(t *testing.T) {
	cases := []struct {
		confidence float64
		want       int
	}{
		{0.5, 5},
		{0.65, 9},
		{0.75, 15},
		{0.9, 20},
		{0.99, 20},
	}
	for _, c := range cases {
		got := deriveLeverage(c.confidence)
		if got != c.want {
			t.Errorf("deriveLeverage(%v) = %d, want %d", c.confidence, got, c.want)
		}
	}
}

func TestDeriveLeverageFloorsNotCeilings(t *testing.T) {
	// just below the first band boundary (0.6) still floors down, never rounds up
	got := deriveLeverage(0.59)
	if got != 5 {
		t.Errorf("deriveLeverage(0.59) = %d, want 5 (floor of 5.9)", got)
	}
}

func TestApiPositionSideTestnetAlwaysStoresBoth(t *testing.T) {
	xcBuy, storeBuy := apiPositionSide(exchange.SideBuy, true)
	xcSell, storeSell := apiPositionSide(exchange.SideSell, true)
	if xcBuy != exchange.PositionSideBoth || xcSell != exchange.PositionSideBoth {
		t.Fatalf("testnet exchange side = %v/%v, want BOTH/BOTH", xcBuy, xcSell)
	}
	if storeBuy != store.PositionSideBoth || storeSell != store.PositionSideBoth {
		t.Fatalf("testnet stored side = %v/%v, want BOTH/BOTH (one-way mode has one net position per symbol)", storeBuy, storeSell)
	}
}

func TestApiPositionSideLiveDerivesHedgeSide(t *testing.T) {
	xcSide, storeSide := apiPositionSide(exchange.SideBuy, false)
	if xcSide != exchange.PositionSideLong || storeSide != store.PositionSideLong {
		t.Fatalf("live BUY = %v/%v, want LONG/LONG", xcSide, storeSide)
	}
	xcSide, storeSide = apiPositionSide(exchange.SideSell, false)
	if xcSide != exchange.PositionSideShort || storeSide != store.PositionSideShort {
		t.Fatalf("live SELL = %v/%v, want SHORT/SHORT", xcSide, storeSide)
	}
}

func TestApiSideForCloseDerivesFromAmountSignWhenBoth(t *testing.T) {
	longBoth := &store.FuturesPosition{PositionSide: store.PositionSideBoth, PositionAmt: "0.5"}
	if got, err := apiSideForClose(longBoth); err != nil || got != exchange.PositionSideLong {
		t.Fatalf("apiSideForClose(long BOTH) = %v, %v, want LONG, nil", got, err)
	}
	shortBoth := &store.FuturesPosition{PositionSide: store.PositionSideBoth, PositionAmt: "-0.5"}
	if got, err := apiSideForClose(shortBoth); err != nil || got != exchange.PositionSideShort {
		t.Fatalf("apiSideForClose(short BOTH) = %v, %v, want SHORT, nil", got, err)
	}
	hedgeShort := &store.FuturesPosition{PositionSide: store.PositionSideShort, PositionAmt: "-0.5"}
	if got, err := apiSideForClose(hedgeShort); err != nil || got != exchange.PositionSideShort {
		t.Fatalf("apiSideForClose(hedge SHORT) = %v, %v, want SHORT, nil", got, err)
	}
}
