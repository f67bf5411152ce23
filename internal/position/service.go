// Package position implements the Position Service (PSV): open/close/mark
// operations and PnL math for futures positions, plus spot holding upsert.
//
// Grounded on futures_position_service.py (aopen_position/aclose_position/
// aupdate_mark_price), carrying its PnL formulas and monotonic
// max_notional tracking verbatim in semantics.
package position

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pantheonelite/counciltrader/internal/errs"
	"github.com/pantheonelite/counciltrader/internal/store"
)

// Service wraps a *store.Repo with the position/holding lifecycle
// operations SPEC_FULL §4.6 names.
type Service struct {
	repo *store.Repo
}

func New(repo *store.Repo) *Service {
	return &Service{repo: repo}
}

// OpenParams carries everything needed to insert an OPEN position row.
type OpenParams struct {
	CouncilID      uint
	Symbol         string
	PositionSide   store.PositionSide
	PositionAmt    decimal.Decimal
	EntryPrice     decimal.Decimal
	Leverage       int
	MarginType     store.MarginType
	Platform       string
	TradingMode    store.TradingMode
	Confidence     float64
	AgentReasoning string
}

// OpenPosition creates an OPEN row with mark_price=entry_price,
// unrealized_profit=0, notional=|amt|*entry_price, and stamps
// council.last_executed_at, all inside tx so the caller can also insert the
// entry Order row in the same unit of work (TR step 10).
func (s *Service) OpenPosition(tx *gorm.DB, p OpenParams) (*store.FuturesPosition, error) {
	if p.Leverage < 1 || p.Leverage > 125 {
		return nil, errs.NewValidation("leverage", "out_of_range")
	}
	if p.PositionAmt.IsZero() {
		return nil, errs.NewValidation("position_amt", "zero_on_open")
	}

	notional := p.PositionAmt.Abs().Mul(p.EntryPrice)
	now := time.Now()

	pos := store.FuturesPosition{
		CouncilID:        p.CouncilID,
		Symbol:           p.Symbol,
		PositionSide:     p.PositionSide,
		Platform:         p.Platform,
		PositionAmt:      p.PositionAmt.String(),
		EntryPrice:       p.EntryPrice.String(),
		MarkPrice:        p.EntryPrice.String(),
		Leverage:         p.Leverage,
		MarginType:       p.MarginType,
		Notional:         notional.String(),
		MaxNotional:      notional.String(),
		UnrealizedProfit: "0",
		TradingMode:      p.TradingMode,
		Status:           store.PositionOpen,
		OpenedAt:         now,
		Confidence:       p.Confidence,
		AgentReasoning:   p.AgentReasoning,
	}
	if err := tx.Create(&pos).Error; err != nil {
		return nil, fmt.Errorf("open position: %w", err)
	}
	if err := tx.Model(&store.Council{}).Where("id = ?", p.CouncilID).
		Update("last_executed_at", now).Error; err != nil {
		return nil, fmt.Errorf("stamp council last_executed_at: %w", err)
	}
	return &pos, nil
}

// directionalPnL implements LONG -> (exit-entry)*amt, SHORT -> (entry-exit)*amt.
// amt must already be unsigned (|amt|); direction comes from side, except
// for a one-way-mode (BOTH) row, which carries no side of its own and
// whose direction instead comes from the sign of signedAmt.
func directionalPnL(side store.PositionSide, entry, exit, amt, signedAmt decimal.Decimal) decimal.Decimal {
	short := side == store.PositionSideShort || (side == store.PositionSideBoth && signedAmt.IsNegative())
	if short {
		return entry.Sub(exit).Mul(amt)
	}
	return exit.Sub(entry).Mul(amt)
}

// ClosePosition transitions an OPEN row to CLOSED, computing realized_pnl =
// directional_pnl - fees - funding_fees.
func (s *Service) ClosePosition(ctx context.Context, id uint, exitPrice, fees, fundingFees decimal.Decimal) (*store.FuturesPosition, error) {
	var result *store.FuturesPosition
	err := s.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pos store.FuturesPosition
		if err := tx.Set("gorm:query_option", "FOR UPDATE").First(&pos, id).Error; err != nil {
			return fmt.Errorf("load position: %w", err)
		}
		if pos.Status != store.PositionOpen {
			return errs.New(errs.Validation, "position is not OPEN")
		}

		entry, err := decimal.NewFromString(pos.EntryPrice)
		if err != nil {
			return fmt.Errorf("parse entry price: %w", err)
		}
		amt, err := decimal.NewFromString(pos.PositionAmt)
		if err != nil {
			return fmt.Errorf("parse position amt: %w", err)
		}

		pnl := directionalPnL(pos.PositionSide, entry, exitPrice, amt.Abs(), amt)
		realized := pnl.Sub(fees).Sub(fundingFees)
		now := time.Now()
		realizedStr := realized.String()

		pos.MarkPrice = exitPrice.String()
		pos.RealizedPnL = &realizedStr
		pos.FeesPaid = fees.String()
		pos.FundingFees = fundingFees.String()
		pos.Status = store.PositionClosed
		pos.ClosedAt = &now

		if err := tx.Save(&pos).Error; err != nil {
			return fmt.Errorf("close position: %w", err)
		}
		result = &pos
		return nil
	})
	return result, err
}

// UpdateMarkPrice is a no-op if the position isn't OPEN; otherwise it
// recomputes unrealized_profit and notional, and bumps max_notional
// monotonically — applying it N times with the final price P converges to
// the same state as applying it once with P.
func (s *Service) UpdateMarkPrice(ctx context.Context, id uint, markPrice decimal.Decimal, liquidationPrice *decimal.Decimal) (*store.FuturesPosition, error) {
	var result *store.FuturesPosition
	err := s.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pos store.FuturesPosition
		if err := tx.First(&pos, id).Error; err != nil {
			return fmt.Errorf("load position: %w", err)
		}
		if pos.Status != store.PositionOpen {
			result = &pos
			return nil
		}

		entry, _ := decimal.NewFromString(pos.EntryPrice)
		amt, _ := decimal.NewFromString(pos.PositionAmt)
		unrealized := directionalPnL(pos.PositionSide, entry, markPrice, amt.Abs(), amt)
		notional := amt.Abs().Mul(markPrice)

		maxNotional, _ := decimal.NewFromString(pos.MaxNotional)
		if notional.GreaterThan(maxNotional) {
			maxNotional = notional
		}

		pos.MarkPrice = markPrice.String()
		pos.UnrealizedProfit = unrealized.String()
		pos.Notional = notional.String()
		pos.MaxNotional = maxNotional.String()
		if liquidationPrice != nil {
			lp := liquidationPrice.String()
			pos.LiquidationPrice = lp
		}

		if err := tx.Save(&pos).Error; err != nil {
			return fmt.Errorf("update mark price: %w", err)
		}
		result = &pos
		return nil
	})
	return result, err
}

// ExitPlan is the set of exit-plan fields UpdateExitPlan may upsert.
// Nil fields are left untouched, making the call idempotent per slot.
type ExitPlan struct {
	StopLossPrice     *decimal.Decimal
	StopLossOrderID   *int64
	TakeProfitShort   *decimal.Decimal
	TakeProfitShortID *int64
	TakeProfitMid     *decimal.Decimal
	TakeProfitMidID   *int64
	TakeProfitLong    *decimal.Decimal
	TakeProfitLongID  *int64
}

func (s *Service) UpdateExitPlan(ctx context.Context, id uint, plan ExitPlan) error {
	updates := map[string]any{}
	if plan.StopLossPrice != nil {
		v := plan.StopLossPrice.String()
		updates["stop_loss_price"] = &v
	}
	if plan.StopLossOrderID != nil {
		updates["stop_loss_order_id"] = plan.StopLossOrderID
	}
	if plan.TakeProfitShort != nil {
		v := plan.TakeProfitShort.String()
		updates["take_profit_short"] = &v
	}
	if plan.TakeProfitShortID != nil {
		updates["take_profit_short_id"] = plan.TakeProfitShortID
	}
	if plan.TakeProfitMid != nil {
		v := plan.TakeProfitMid.String()
		updates["take_profit_mid"] = &v
	}
	if plan.TakeProfitMidID != nil {
		updates["take_profit_mid_id"] = plan.TakeProfitMidID
	}
	if plan.TakeProfitLong != nil {
		v := plan.TakeProfitLong.String()
		updates["take_profit_long"] = &v
	}
	if plan.TakeProfitLongID != nil {
		updates["take_profit_long_id"] = plan.TakeProfitLongID
	}
	if len(updates) == 0 {
		return nil
	}
	if err := s.repo.DB().WithContext(ctx).Model(&store.FuturesPosition{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("update exit plan: %w", err)
	}
	return nil
}

// HoldingDelta carries one spot fill to merge into a holding.
type HoldingDelta struct {
	CouncilID   uint
	Symbol      string
	BaseAsset   string
	QuoteAsset  string
	QtyDelta    decimal.Decimal // positive = BUY, negative = SELL
	Price       decimal.Decimal
	Platform    string
	TradingMode store.TradingMode
}

// UpdateHolding upserts a SpotHolding. BUY (positive delta) recomputes
// average_cost as a weighted mean; SELL (negative delta) holds cost basis
// and closes the holding once total reaches zero.
func (s *Service) UpdateHolding(ctx context.Context, d HoldingDelta) (*store.SpotHolding, error) {
	var result *store.SpotHolding
	err := s.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var h store.SpotHolding
		err := tx.Where("council_id = ? AND symbol = ? AND platform = ? AND trading_mode = ?",
			d.CouncilID, d.Symbol, d.Platform, d.TradingMode).First(&h).Error
		now := time.Now()
		if err == gorm.ErrRecordNotFound {
			h = store.SpotHolding{
				CouncilID:       d.CouncilID,
				Symbol:          d.Symbol,
				BaseAsset:       d.BaseAsset,
				QuoteAsset:      d.QuoteAsset,
				Platform:        d.Platform,
				TradingMode:     d.TradingMode,
				Free:            "0",
				Total:           "0",
				AverageCost:     "0",
				TotalCost:       "0",
				Status:          store.HoldingActive,
				FirstAcquiredAt: now,
			}
		} else if err != nil {
			return fmt.Errorf("load holding: %w", err)
		}

		oldQty, _ := decimal.NewFromString(h.Total)
		oldCost, _ := decimal.NewFromString(h.TotalCost)
		newQty := oldQty.Add(d.QtyDelta)

		if newQty.IsNegative() {
			return errs.New(errs.Validation, "sell exceeds holding quantity")
		}

		if d.QtyDelta.IsPositive() {
			newCost := oldCost.Add(d.QtyDelta.Mul(d.Price))
			h.TotalCost = newCost.String()
			if !newQty.IsZero() {
				h.AverageCost = newCost.Div(newQty).String()
			}
		}
		// SELL: cost basis held, TotalCost unchanged.

		h.Total = newQty.String()
		h.Free = newQty.String()
		h.CurrentPrice = d.Price.String()
		h.CurrentValue = newQty.Mul(d.Price).String()
		h.LastUpdatedAt = now

		if newQty.IsZero() {
			h.Status = store.HoldingClosed
			h.ClosedAt = &now
		} else {
			h.Status = store.HoldingActive
		}

		if h.ID == 0 {
			err = tx.Create(&h).Error
		} else {
			err = tx.Save(&h).Error
		}
		if err != nil {
			return fmt.Errorf("upsert holding: %w", err)
		}
		result = &h
		return nil
	})
	return result, err
}
