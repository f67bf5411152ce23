// Package router implements the Trading Router (TR): the critical path
// that turns a sized trade intent into exchange orders plus a persisted
// position, enforcing the open-then-close policy along the way.
//
// Grounded on unified_trading_service.py's execute_trade/close_position
// orchestration, combined with execution_service.go's ExecuteTrade for the
// Go-side margin/leverage/order-placement call sequence.
package router

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pantheonelite/counciltrader/internal/errs"
	"github.com/pantheonelite/counciltrader/internal/exchange"
	"github.com/pantheonelite/counciltrader/internal/logx"
	"github.com/pantheonelite/counciltrader/internal/metrics"
	"github.com/pantheonelite/counciltrader/internal/money"
	"github.com/pantheonelite/counciltrader/internal/position"
	"github.com/pantheonelite/counciltrader/internal/store"
)

var log = logx.New("ROUTER")

// ClientSet is the pair of exchange clients the router selects between, one
// per venue (paper=testnet, real=live), grounded on step 1's client
// selection rule.
type ClientSet struct {
	Paper *exchange.Client
	Real  *exchange.Client
}

func (cs ClientSet) forMode(mode store.TradingMode) *exchange.Client {
	if mode == store.ModeReal {
		return cs.Real
	}
	return cs.Paper
}

// Notifier is the narrow slice of the Metrics Aggregator and Event
// Broadcaster the router invokes after a commit. Defined here (rather than
// importing those packages back) to avoid a dependency cycle; concrete
// implementations are wired in cmd/trader.
type Notifier interface {
	OnPositionOpened(ctx context.Context, councilID uint, pos *store.FuturesPosition)
	OnPositionClosed(ctx context.Context, councilID uint, pos *store.FuturesPosition)
}

type Router struct {
	clients  ClientSet
	repo     *store.Repo
	psv      *position.Service
	notifier Notifier
}

func New(clients ClientSet, repo *store.Repo, psv *position.Service, notifier Notifier) *Router {
	return &Router{clients: clients, repo: repo, psv: psv, notifier: notifier}
}

// ExitLevel is one stop-loss or take-profit target supplied by the caller.
// Either Price (an absolute level) or Pct (an offset from the position's
// entry price, i.e. the ticker price read before the entry order) must be
// set; Price wins if both are given.
type ExitLevel struct {
	Kind  string // "SL", "TP_SHORT", "TP_MID", "TP_LONG"
	Price decimal.Decimal
	Pct   decimal.Decimal
}

// resolvePrice turns a percentage-offset level into an absolute price
// relative to entryPrice, honoring direction: a stop-loss sits on the
// losing side of entry, a take-profit on the winning side.
func (l ExitLevel) resolvePrice(entryPrice decimal.Decimal, side exchange.Side) decimal.Decimal {
	if !l.Price.IsZero() {
		return l.Price
	}
	long := side == exchange.SideBuy
	isStopLoss := l.Kind == "SL"
	below := isStopLoss == long // SL+long or TP+short sit below entry
	if below {
		return entryPrice.Mul(decimal.NewFromInt(1).Sub(l.Pct))
	}
	return entryPrice.Mul(decimal.NewFromInt(1).Add(l.Pct))
}

// TradeRequest is the normalized intent ExecuteTrade consumes, already
// validated by the Agent Adapter.
type TradeRequest struct {
	CouncilID      uint
	Symbol         string
	Side           exchange.Side // BUY opens LONG, SELL opens SHORT
	DesiredUSD     decimal.Decimal
	Confidence     float64
	Leverage       int // 0 => derive from confidence
	ExitLevels     []ExitLevel
	AgentReasoning string
}

// deriveLeverage implements step 3's confidence bands.
func deriveLeverage(confidence float64) int {
	switch {
	case confidence < 0.6:
		return int(math.Max(1, math.Floor(confidence*10)))
	case confidence < 0.7:
		return int(math.Max(5, math.Floor(confidence*15)))
	case confidence < 0.8:
		return int(math.Max(10, math.Floor(confidence*20)))
	default:
		return int(math.Min(20, math.Max(15, math.Floor(confidence*25))))
	}
}

// apiPositionSide derives both the exchange-facing position side and the
// side persisted on the stored row. Testnet accounts run in one-way mode:
// the exchange tracks a single net position per symbol (api side "BOTH"),
// so the stored row must also use store.PositionSideBoth rather than a
// derived LONG/SHORT — otherwise a BUY and a later SELL on the same testnet
// symbol would be bookkept as two independently-OPEN rows (one stored
// LONG, one stored SHORT) even though the real account can only ever hold
// one net position there. Live accounts run in hedge mode, where LONG and
// SHORT are genuinely independent positions the exchange tracks side by
// side, so those are stored as such.
func apiPositionSide(side exchange.Side, testnet bool) (exchange.PositionSide, store.PositionSide) {
	if testnet {
		return exchange.PositionSideBoth, store.PositionSideBoth
	}
	if side == exchange.SideBuy {
		return exchange.PositionSideLong, store.PositionSideLong
	}
	return exchange.PositionSideShort, store.PositionSideShort
}

// ExecuteTrade runs the full §4.7 protocol.
func (r *Router) ExecuteTrade(ctx context.Context, council *store.Council, req TradeRequest) (pos *store.FuturesPosition, err error) {
	defer func() {
		if err != nil {
			recordRejection(err)
		}
	}()

	// Step 1: client selection by trading mode. The clients in the ClientSet
	// are built once at startup from environment credentials; council
	// wallets are not consulted.
	client := r.clients.forMode(council.TradingMode)
	if client == nil {
		return nil, errs.New(errs.Validation, "no exchange client configured for trading mode")
	}
	testnet := council.TradingMode == store.ModePaper

	// Step 2: pre-fetch.
	account, err := client.GetAccount(ctx)
	if err != nil {
		return nil, err
	}
	ticker, err := client.GetTicker(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}

	// Step 3: leverage.
	leverage := req.Leverage
	if leverage <= 0 {
		leverage = deriveLeverage(req.Confidence)
	}

	// Step 4: size.
	leverageDec := decimal.NewFromInt(int64(leverage))
	desiredMargin := req.DesiredUSD.Div(leverageDec)
	actualMargin := desiredMargin
	if desiredMargin.GreaterThan(account.AvailableBalance) {
		actualMargin = account.AvailableBalance.Mul(decimal.NewFromFloat(0.95))
	}
	qty := actualMargin.Mul(leverageDec).Div(ticker.Price)

	// Step 5: precision.
	info, err := client.GetSymbolInfo(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}
	qty = money.QuantizeDown(qty, info.StepSize)
	if !qty.IsPositive() {
		return nil, errs.NewValidation("quantity", "insufficient_for_step")
	}
	if lr := money.CheckMinNotional(qty, ticker.Price, info.MinNotional); lr != money.NotionalOK {
		return nil, errs.NewValidation("quantity", "below_min_notional")
	}

	xcPositionSide, storePositionSide := apiPositionSide(req.Side, testnet)

	// Step 6: policy (open-then-close), checked again inside the
	// persistence transaction (step 10) to close the TOCTOU window; this
	// pre-check exists purely to fail fast without touching the exchange.
	existing, err := r.repo.FindBySymbolAndSide(ctx, req.CouncilID, req.Symbol, storePositionSide, store.PositionOpen)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errs.NewPolicyViolation("updates_forbidden")
	}

	// Step 7: leverage & margin setup.
	if err := client.SetMarginType(ctx, req.Symbol, exchange.MarginTypeCrossed); err != nil {
		return nil, err
	}
	if err := client.SetLeverage(ctx, req.Symbol, leverage); err != nil {
		return nil, err
	}

	// Step 8: place entry order.
	entryOrder, err := client.PlaceOrder(ctx, exchange.OrderRequest{
		Symbol:       req.Symbol,
		Side:         req.Side,
		PositionSide: xcPositionSide,
		Type:         exchange.OrderTypeMarket,
		Quantity:     qty,
	})
	if err != nil {
		return nil, err
	}

	// Step 9: read back liquidation/isolated margin, best-effort.
	var liqPrice *decimal.Decimal
	positions, err := client.GetPositions(ctx, req.Symbol)
	if err == nil {
		for _, p := range positions {
			if p.PositionSide == xcPositionSide || xcPositionSide == exchange.PositionSideBoth {
				lp := p.LiquidationPrice
				liqPrice = &lp
				break
			}
		}
	} else {
		log.Warnf("could not read back liquidation price for %s: %v", req.Symbol, err)
	}

	// Step 10: persist atomically. The entry order already exists on the
	// exchange, so this runs with context.Background(): a cancelled caller
	// must not stop the order id from being recorded.
	err = r.repo.WithinTransaction(context.Background(), func(tx *gorm.DB) error {
		// Re-check under the transaction to close the race window between
		// step 6 and here.
		again, err := store.FindOpenPositionBySymbolAndSide(tx, req.CouncilID, req.Symbol, storePositionSide, string(platformFor(testnet)))
		if err != nil {
			return err
		}
		if again != nil {
			return errs.NewPolicyViolation("updates_forbidden")
		}

		entryAmt := qty
		if req.Side == exchange.SideSell {
			entryAmt = qty.Neg()
		}

		created, err := r.psv.OpenPosition(tx, position.OpenParams{
			CouncilID:      req.CouncilID,
			Symbol:         req.Symbol,
			PositionSide:   storePositionSide,
			PositionAmt:    entryAmt,
			EntryPrice:     ticker.Price,
			Leverage:       leverage,
			MarginType:     store.MarginCrossed,
			Platform:       string(platformFor(testnet)),
			TradingMode:    council.TradingMode,
			Confidence:     req.Confidence,
			AgentReasoning: req.AgentReasoning,
		})
		if err != nil {
			return err
		}
		if liqPrice != nil {
			lp := liqPrice.String()
			created.LiquidationPrice = lp
			if err := tx.Model(created).Update("liquidation_price", lp).Error; err != nil {
				return fmt.Errorf("persist liquidation price: %w", err)
			}
		}

		order := &store.Order{
			CouncilID:         req.CouncilID,
			Symbol:            req.Symbol,
			FuturesPositionID: &created.ID,
			ClientOrderID:     entryOrder.ClientOrderID,
			ExchangeOrderID:   entryOrder.OrderID,
			Side:              store.OrderSide(entryOrder.Side),
			Type:              store.OrderType(entryOrder.Type),
			PositionSide:      string(entryOrder.PositionSide),
			OrigQty:           entryOrder.OrigQty.String(),
			ExecutedQty:       entryOrder.ExecutedQty.String(),
			AvgPrice:          entryOrder.AvgPrice.String(),
			Status:            store.OrderStatus(entryOrder.Status),
			Platform:          string(platformFor(testnet)),
			TradingMode:       council.TradingMode,
			TradingType:       "futures",
			Confidence:        req.Confidence,
		}
		if err := r.repo.AppendOrder(tx, order); err != nil {
			return err
		}
		pos = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Step 11: exit plan. Non-fatal per-level failures.
	r.placeExitPlan(ctx, client, pos, req, xcPositionSide, qty, ticker.Price)

	// Step 12: metrics + events.
	if r.notifier != nil {
		r.notifier.OnPositionOpened(ctx, req.CouncilID, pos)
	}

	return pos, nil
}

// recordRejection feeds ExecuteTrade's terminal error into MA's
// orders-rejected counter, keyed by taxonomy kind.
func recordRejection(err error) {
	if te, ok := err.(*errs.TradingError); ok {
		metrics.RecordOrderRejected(te.Kind.String())
		return
	}
	metrics.RecordOrderRejected("unknown")
}

func platformFor(testnet bool) exchange.Platform {
	if testnet {
		return exchange.PlatformBinanceTestnet
	}
	return exchange.PlatformBinanceLive
}

func (r *Router) placeExitPlan(ctx context.Context, client *exchange.Client, pos *store.FuturesPosition, req TradeRequest, posSide exchange.PositionSide, totalQty, entryPrice decimal.Decimal) {
	if len(req.ExitLevels) == 0 {
		return
	}

	tpLevels := 0
	for _, lvl := range req.ExitLevels {
		if lvl.Kind != "SL" {
			tpLevels++
		}
	}

	closeSide := exchange.SideSell
	if req.Side == exchange.SideSell {
		closeSide = exchange.SideBuy
	}

	plan := position.ExitPlan{}
	for _, lvl := range req.ExitLevels {
		var qty decimal.Decimal
		var orderType exchange.OrderType
		if lvl.Kind == "SL" {
			qty = totalQty
			orderType = exchange.OrderTypeStopMarket
		} else {
			if tpLevels == 0 {
				continue
			}
			qty = totalQty.Div(decimal.NewFromInt(int64(tpLevels)))
			orderType = exchange.OrderTypeTakeProfitMkt
		}
		price := lvl.resolvePrice(entryPrice, req.Side)

		res, err := client.PlaceOrder(ctx, exchange.OrderRequest{
			Symbol:       req.Symbol,
			Side:         closeSide,
			PositionSide: posSide,
			Type:         orderType,
			Quantity:     qty,
			StopPrice:    price,
			ReduceOnly:   true,
		})
		if err != nil {
			log.Warnf("exit plan leg %s for position %d failed, storing null slot: %v", lvl.Kind, pos.ID, err)
			continue
		}

		id := res.OrderID
		switch lvl.Kind {
		case "SL":
			plan.StopLossPrice = &price
			plan.StopLossOrderID = &id
		case "TP_SHORT":
			plan.TakeProfitShort = &price
			plan.TakeProfitShortID = &id
		case "TP_MID":
			plan.TakeProfitMid = &price
			plan.TakeProfitMidID = &id
		case "TP_LONG":
			plan.TakeProfitLong = &price
			plan.TakeProfitLongID = &id
		}
	}

	if err := r.psv.UpdateExitPlan(ctx, pos.ID, plan); err != nil {
		log.Warnf("failed to persist exit plan for position %d: %v", pos.ID, err)
	}
}

// apiSideForClose derives the exchange position side to close. A stored
// LONG/SHORT row (hedge mode, live) maps directly; a stored BOTH row
// (one-way mode, testnet) has no side of its own, so direction comes from
// the sign of the persisted position amount.
func apiSideForClose(pos *store.FuturesPosition) (exchange.PositionSide, error) {
	switch pos.PositionSide {
	case store.PositionSideLong:
		return exchange.PositionSideLong, nil
	case store.PositionSideShort:
		return exchange.PositionSideShort, nil
	case store.PositionSideBoth:
		amt, err := decimal.NewFromString(pos.PositionAmt)
		if err != nil {
			return "", fmt.Errorf("parse position amount: %w", err)
		}
		if amt.IsNegative() {
			return exchange.PositionSideShort, nil
		}
		return exchange.PositionSideLong, nil
	default:
		return "", errs.New(errs.Validation, "unknown stored position side")
	}
}

// CloseExistingPosition locates the OPEN row for (symbol[, side]), closes it
// on the exchange, and transitions it to CLOSED via PSV.
func (r *Router) CloseExistingPosition(ctx context.Context, council *store.Council, symbol string, side *store.PositionSide) (closedPos *store.FuturesPosition, err error) {
	defer func() {
		if err != nil {
			recordRejection(err)
		}
	}()

	client := r.clients.forMode(council.TradingMode)
	if client == nil {
		return nil, errs.New(errs.Validation, "no exchange client configured for trading mode")
	}

	var toClose *store.FuturesPosition
	if side != nil {
		toClose, err = r.repo.FindBySymbolAndSide(ctx, council.ID, symbol, *side, store.PositionOpen)
	} else {
		opens, ferr := r.repo.FindOpenPositions(ctx, council.ID, symbol)
		if ferr != nil {
			return nil, ferr
		}
		if len(opens) > 0 {
			toClose = &opens[0]
		}
	}
	if err != nil {
		return nil, err
	}
	if toClose == nil {
		return nil, errs.New(errs.NotFound, "no open position for symbol")
	}

	xcSide, err := apiSideForClose(toClose)
	if err != nil {
		return nil, err
	}
	if _, err := client.ClosePosition(ctx, symbol, xcSide); err != nil {
		return nil, err
	}

	ticker, err := client.GetTicker(ctx, symbol)
	if err != nil {
		return nil, err
	}

	closed, err := r.psv.ClosePosition(ctx, toClose.ID, ticker.Price, decimal.Zero, decimal.Zero)
	if err != nil {
		return nil, err
	}

	if r.notifier != nil {
		r.notifier.OnPositionClosed(ctx, council.ID, closed)
	}
	return closed, nil
}
