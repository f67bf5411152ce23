// Package agent implements the Agent Adapter (AA): validates an inbound
// council-decision payload and translates it into a single TR.ExecuteTrade
// call, defaulting exit-plan levels when the caller omits them.
//
// Grounded on the teacher's SafetyConfig-style percentage-of-entry
// defaulting (predator_engine.go's stop-loss/take-profit percentage
// tables), carried over in spirit rather than value: this system's
// defaults are expressed as a DefaultExitLevels config rather than the
// teacher's hardcoded constants.
package agent

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/pantheonelite/counciltrader/internal/errs"
	"github.com/pantheonelite/counciltrader/internal/exchange"
	"github.com/pantheonelite/counciltrader/internal/router"
	"github.com/pantheonelite/counciltrader/internal/store"
)

// DefaultExitLevels is the percentage-of-entry-price table used when a
// decision payload omits explicit stop-loss/take-profit levels.
type DefaultExitLevels struct {
	StopLossPct      decimal.Decimal // e.g. 0.02 for 2% below/above entry
	TakeProfitShort  decimal.Decimal
	TakeProfitMid    decimal.Decimal
	TakeProfitLong   decimal.Decimal
}

// Decision is the inbound council-decision payload AA validates.
type Decision struct {
	CouncilID      uint
	Symbol         string
	Side           string // "BUY" or "SELL"
	DesiredUSD     decimal.Decimal
	Confidence     float64
	Leverage       int
	ExitLevels     []router.ExitLevel // optional; explicit values win over defaults
	AgentReasoning string
}

type Adapter struct {
	tr       *router.Router
	repo     councilReader
	defaults DefaultExitLevels
}

type councilReader interface {
	GetCouncil(ctx context.Context, id uint) (*store.Council, error)
}

func New(tr *router.Router, repo councilReader, defaults DefaultExitLevels) *Adapter {
	return &Adapter{tr: tr, repo: repo, defaults: defaults}
}

// Execute validates decision and, if valid, loads the council row through
// its councilReader and calls TR.ExecuteTrade. Apart from that council
// lookup AA never talks to PS/XC/OL directly — TR places the trade.
func (a *Adapter) Execute(ctx context.Context, d Decision) (*store.FuturesPosition, error) {
	if d.Symbol == "" {
		return nil, errs.NewValidation("symbol", "required")
	}
	if d.Side != "BUY" && d.Side != "SELL" {
		return nil, errs.NewValidation("side", "must_be_buy_or_sell")
	}
	if !d.DesiredUSD.IsPositive() {
		return nil, errs.NewValidation("desired_usd", "must_be_positive")
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return nil, errs.NewValidation("confidence", "out_of_range")
	}

	council, err := a.repo.GetCouncil(ctx, d.CouncilID)
	if err != nil {
		return nil, err
	}

	exitLevels := d.ExitLevels
	if len(exitLevels) == 0 {
		exitLevels = a.defaultExitLevels()
	}

	req := router.TradeRequest{
		CouncilID:      d.CouncilID,
		Symbol:         d.Symbol,
		Side:           exchange.Side(d.Side),
		DesiredUSD:     d.DesiredUSD,
		Confidence:     d.Confidence,
		Leverage:       d.Leverage,
		ExitLevels:     exitLevels,
		AgentReasoning: d.AgentReasoning,
	}
	return a.tr.ExecuteTrade(ctx, council, req)
}

// defaultExitLevels builds percentage-offset levels from the configured
// table; TR resolves them against the position's entry price, the ticker
// price it reads before placing the entry order (ExitLevel.resolvePrice),
// since AA never reads a ticker itself.
func (a *Adapter) defaultExitLevels() []router.ExitLevel {
	if a.defaults.StopLossPct.IsZero() && a.defaults.TakeProfitMid.IsZero() {
		return nil
	}
	var levels []router.ExitLevel
	if !a.defaults.StopLossPct.IsZero() {
		levels = append(levels, router.ExitLevel{Kind: "SL", Pct: a.defaults.StopLossPct})
	}
	if !a.defaults.TakeProfitShort.IsZero() {
		levels = append(levels, router.ExitLevel{Kind: "TP_SHORT", Pct: a.defaults.TakeProfitShort})
	}
	if !a.defaults.TakeProfitMid.IsZero() {
		levels = append(levels, router.ExitLevel{Kind: "TP_MID", Pct: a.defaults.TakeProfitMid})
	}
	if !a.defaults.TakeProfitLong.IsZero() {
		levels = append(levels, router.ExitLevel{Kind: "TP_LONG", Pct: a.defaults.TakeProfitLong})
	}
	return levels
}
