// Package money implements fixed-point decimal arithmetic for order sizing
// and exchange precision rules (step size, tick size, minimum notional).
// All monetary values in this codebase flow through decimal.Decimal; binary
// floats only appear at the venue JSON boundary (see internal/exchange).
package money

import (
	"sync"

	"github.com/shopspring/decimal"
)

// LotResult is the outcome of a lot-size check.
type LotResult int

const (
	LotOK LotResult = iota
	LotTooSmall
	LotTooLarge
	LotBadStep
)

// NotionalResult is the outcome of a minimum-notional check.
type NotionalResult int

const (
	NotionalOK NotionalResult = iota
	NotionalBelowMin
)

// SymbolFilters are the venue-declared precision constraints for one symbol.
type SymbolFilters struct {
	TickSize    decimal.Decimal
	StepSize    decimal.Decimal
	MinQty      decimal.Decimal
	MaxQty      decimal.Decimal
	MinNotional decimal.Decimal
}

// QuantizeDown truncates qty to the nearest multiple of step at or below qty,
// using ROUND_DOWN so the venue never rejects an order for exceeding its
// declared size. A zero or negative step returns qty unchanged.
func QuantizeDown(qty, step decimal.Decimal) decimal.Decimal {
	if step.IsZero() || step.IsNegative() {
		return qty
	}
	multiples := qty.DivRound(step, 0).Truncate(0)
	quantized := multiples.Mul(step)
	// DivRound rounds to nearest; ensure we never round UP past qty.
	if quantized.GreaterThan(qty) {
		quantized = quantized.Sub(step)
	}
	if quantized.IsNegative() {
		return decimal.Zero
	}
	return quantized
}

// CheckLotSize validates qty against the symbol's declared quantity bounds.
func CheckLotSize(qty, minQty, maxQty, step decimal.Decimal) LotResult {
	if qty.LessThan(minQty) {
		return LotTooSmall
	}
	if !maxQty.IsZero() && qty.GreaterThan(maxQty) {
		return LotTooLarge
	}
	if !step.IsZero() {
		rem := qty.Mod(step)
		if !rem.IsZero() {
			return LotBadStep
		}
	}
	return LotOK
}

// CheckMinNotional validates that qty*price clears the symbol's minimum
// order value.
func CheckMinNotional(qty, price, minNotional decimal.Decimal) NotionalResult {
	notional := qty.Mul(price)
	if notional.LessThan(minNotional) {
		return NotionalBelowMin
	}
	return NotionalOK
}

// WeightedAverage computes (Σ qty_i·price_i) / Σ qty_i for consolidating
// entries at different prices into one average cost/entry price.
func WeightedAverage(qtys, prices []decimal.Decimal) decimal.Decimal {
	totalQty := decimal.Zero
	totalCost := decimal.Zero
	for i, q := range qtys {
		totalQty = totalQty.Add(q)
		totalCost = totalCost.Add(q.Mul(prices[i]))
	}
	if totalQty.IsZero() {
		return decimal.Zero
	}
	return totalCost.Div(totalQty)
}

// FilterCache caches SymbolFilters keyed by (platform, symbol), shared by
// the exchange client and the router. Safe for concurrent use.
type FilterCache struct {
	mu    sync.RWMutex
	store map[string]SymbolFilters
}

// NewFilterCache returns an empty, ready-to-use cache.
func NewFilterCache() *FilterCache {
	return &FilterCache{store: make(map[string]SymbolFilters)}
}

func key(platform, symbol string) string { return platform + ":" + symbol }

func (c *FilterCache) Get(platform, symbol string) (SymbolFilters, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.store[key(platform, symbol)]
	return f, ok
}

func (c *FilterCache) Set(platform, symbol string, f SymbolFilters) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key(platform, symbol)] = f
}
