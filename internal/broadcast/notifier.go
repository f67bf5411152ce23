package broadcast

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/pantheonelite/counciltrader/internal/metrics"
	"github.com/pantheonelite/counciltrader/internal/store"
)

// RouterNotifier implements router.Notifier, the step-12 "metrics + events"
// fan-out: recompute council aggregates via MA, then publish a trade event
// via EB. Both are best-effort: a notifier failure must never surface back
// to the trading path, so every error here is logged, not returned.
type RouterNotifier struct {
	aggregator *metrics.Aggregator
	eb         *EventBroadcaster
}

func NewRouterNotifier(aggregator *metrics.Aggregator, eb *EventBroadcaster) *RouterNotifier {
	return &RouterNotifier{aggregator: aggregator, eb: eb}
}

func (n *RouterNotifier) OnPositionOpened(ctx context.Context, councilID uint, pos *store.FuturesPosition) {
	side := "BUY"
	if closingSide(pos) == "BUY" {
		side = "SELL"
	}
	n.recomputeAndPublish(ctx, councilID, pos, side)
}

func (n *RouterNotifier) OnPositionClosed(ctx context.Context, councilID uint, pos *store.FuturesPosition) {
	n.recomputeAndPublish(ctx, councilID, pos, closingSide(pos))
}

// closingSide reports the side of the order that would close pos: the
// opposite of its held direction. A stored BOTH row (one-way mode) has no
// side of its own, so direction comes from the sign of the position amount.
func closingSide(pos *store.FuturesPosition) string {
	short := pos.PositionSide == store.PositionSideShort
	if pos.PositionSide == store.PositionSideBoth {
		amt, _ := decimal.NewFromString(pos.PositionAmt)
		short = amt.IsNegative()
	}
	if short {
		return "BUY"
	}
	return "SELL"
}

func (n *RouterNotifier) recomputeAndPublish(ctx context.Context, councilID uint, pos *store.FuturesPosition, side string) {
	if err := n.aggregator.Recompute(ctx, councilID); err != nil {
		log.Warnf("metrics recompute failed for council %d, swallowed: %v", councilID, err)
	}
	metrics.RecordTradeExecuted(pos.Symbol, side)

	n.eb.BroadcastTrade(TradeEvent{
		CouncilID: councilID,
		Symbol:    pos.Symbol,
		Side:      side,
		Quantity:  pos.PositionAmt,
		Price:     pos.MarkPrice,
	})
}
