// Package metrics implements the Metrics Aggregator (MA): council-row
// aggregate recomputation plus process-level Prometheus instrumentation.
//
// The council recomputation is grounded on futures_position_service.py's
// aggregate-update pass; the Prometheus gauges/counters are grounded on
// chidi150c-coinbase's metrics.go (CounterVec/GaugeVec registered in
// init(), exposed at /metrics via promhttp).
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pantheonelite/counciltrader/internal/logx"
	"github.com/pantheonelite/counciltrader/internal/ratelimit"
	"github.com/pantheonelite/counciltrader/internal/store"
)

var log = logx.New("METRICS")

var (
	tradesExecuted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_trades_executed_total",
			Help: "Trades executed, split by symbol and side.",
		},
		[]string{"symbol", "side"},
	)

	ordersRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_orders_rejected_total",
			Help: "Orders rejected, split by error kind.",
		},
		[]string{"kind"},
	)

	openPositionsGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trader_open_positions",
			Help: "Current count of OPEN futures positions per council.",
		},
		[]string{"council_id"},
	)

	rateLimiterUtilization = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trader_rate_limiter_utilization_ratio",
			Help: "Fraction of the request-weight bucket currently consumed, per venue.",
		},
		[]string{"platform"},
	)
)

func init() {
	mustRegisterIdempotent(tradesExecuted, ordersRejected, openPositionsGauge, rateLimiterUtilization)
}

// mustRegisterIdempotent registers cs with the default registry, tolerating
// collectors that are already registered there instead of panicking — so
// re-running this package's registration (as a test exercising the
// invariant does) is safe.
func mustRegisterIdempotent(cs ...prometheus.Collector) {
	for _, c := range cs {
		if err := prometheus.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			panic(err)
		}
	}
}

// RecordTradeExecuted increments the trades-executed counter.
func RecordTradeExecuted(symbol, side string) { tradesExecuted.WithLabelValues(symbol, side).Inc() }

// RecordOrderRejected increments the orders-rejected counter for kind.
func RecordOrderRejected(kind string) { ordersRejected.WithLabelValues(kind).Inc() }

// RecordRateLimiterUtilization reports the current bucket utilization for platform.
func RecordRateLimiterUtilization(platform string, limiter *ratelimit.RequestLimiter) {
	util, _ := limiter.Utilization()
	rateLimiterUtilization.WithLabelValues(platform).Set(util)
}

// Handler returns the promhttp handler to mount at /metrics.
func Handler() http.Handler { return promhttp.Handler() }

// Aggregator recomputes council-level aggregate fields from authoritative
// rows and keeps the open-positions gauge current.
type Aggregator struct {
	repo *store.Repo
}

func New(repo *store.Repo) *Aggregator {
	return &Aggregator{repo: repo}
}

// Recompute implements §4.8: sums, counts, fee/pnl rollups, and hold-time
// percentages, written in one transaction. Idempotent — re-running against
// the same committed rows always produces the same council row.
func (a *Aggregator) Recompute(ctx context.Context, councilID uint) error {
	return a.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var openPositions []store.FuturesPosition
		if err := tx.Where("council_id = ? AND status = ?", councilID, store.PositionOpen).Find(&openPositions).Error; err != nil {
			return fmt.Errorf("load open positions: %w", err)
		}
		var closedPositions []store.FuturesPosition
		if err := tx.Where("council_id = ? AND status = ?", councilID, store.PositionClosed).Find(&closedPositions).Error; err != nil {
			return fmt.Errorf("load closed positions: %w", err)
		}
		var activeHoldings int64
		if err := tx.Model(&store.SpotHolding{}).Where("council_id = ? AND status = ?", councilID, store.HoldingActive).Count(&activeHoldings).Error; err != nil {
			return fmt.Errorf("count active holdings: %w", err)
		}

		unrealized := decimal.Zero
		totalLeverage := 0
		totalConfidence := 0.0
		allPositions := append(append([]store.FuturesPosition{}, openPositions...), closedPositions...)

		for _, p := range openPositions {
			u, _ := decimal.NewFromString(p.UnrealizedProfit)
			unrealized = unrealized.Add(u)
			totalLeverage += p.Leverage
		}
		for _, p := range allPositions {
			totalConfidence += p.Confidence
		}

		realized := decimal.Zero
		fees := decimal.Zero
		funding := decimal.Zero
		biggestWin := decimal.Zero
		biggestLoss := decimal.Zero
		for _, p := range closedPositions {
			if p.RealizedPnL != nil {
				r, _ := decimal.NewFromString(*p.RealizedPnL)
				realized = realized.Add(r)
				if r.GreaterThan(biggestWin) {
					biggestWin = r
				}
				if r.LessThan(biggestLoss) {
					biggestLoss = r
				}
			}
			f, _ := decimal.NewFromString(p.FeesPaid)
			fees = fees.Add(f)
			ff, _ := decimal.NewFromString(p.FundingFees)
			funding = funding.Add(ff)
		}
		for _, p := range openPositions {
			f, _ := decimal.NewFromString(p.FeesPaid)
			fees = fees.Add(f)
			ff, _ := decimal.NewFromString(p.FundingFees)
			funding = funding.Add(ff)
		}

		netPnL := realized.Add(unrealized).Sub(fees).Sub(funding)

		avgLeverage := 0.0
		if len(openPositions) > 0 {
			avgLeverage = float64(totalLeverage) / float64(len(openPositions))
		}
		avgConfidence := 0.0
		if len(allPositions) > 0 {
			avgConfidence = totalConfidence / float64(len(allPositions))
		}

		longPct, shortPct, flatPct, err := a.holdTimePercentages(tx, councilID)
		if err != nil {
			return err
		}

		updates := map[string]any{
			"total_unrealized_profit": unrealized.String(),
			"total_realized_pnl":      realized.String(),
			"net_pnl":                 netPnL.String(),
			"total_fees":              fees.String(),
			"total_funding_fees":      funding.String(),
			"open_futures_count":      len(openPositions),
			"closed_futures_count":    len(closedPositions),
			"active_spot_holdings":    activeHoldings,
			"average_leverage":        avgLeverage,
			"average_confidence":      avgConfidence,
			"biggest_win":             biggestWin.String(),
			"biggest_loss":            biggestLoss.String(),
			"long_hold_pct":           longPct,
			"short_hold_pct":          shortPct,
			"flat_hold_pct":           flatPct,
		}
		if err := tx.Model(&store.Council{}).Where("id = ?", councilID).Updates(updates).Error; err != nil {
			return fmt.Errorf("update council aggregates: %w", err)
		}

		openPositionsGauge.WithLabelValues(fmt.Sprint(councilID)).Set(float64(len(openPositions)))
		return nil
	})
}

// holdTimePercentages computes the rolling-window LONG/SHORT/flat hold-time
// split since council creation, per §4.8: positions still OPEN are treated
// as held through "now", and a council with no position history reports
// 0/0/100 (the Open Question decision in DESIGN.md).
func (a *Aggregator) holdTimePercentages(tx *gorm.DB, councilID uint) (longPct, shortPct, flatPct float64, err error) {
	var council store.Council
	if err := tx.First(&council, councilID).Error; err != nil {
		return 0, 0, 100, fmt.Errorf("load council for hold-time window: %w", err)
	}
	windowStart := council.CreatedAt
	now := time.Now()
	totalWindow := now.Sub(windowStart)
	if totalWindow <= 0 {
		return 0, 0, 100, nil
	}

	var positions []store.FuturesPosition
	if err := tx.Where("council_id = ?", councilID).Find(&positions).Error; err != nil {
		return 0, 0, 100, fmt.Errorf("load positions for hold-time window: %w", err)
	}

	var longIvs, shortIvs []interval
	for _, p := range positions {
		end := now
		if p.ClosedAt != nil {
			end = *p.ClosedAt
		}
		if !end.After(p.OpenedAt) {
			continue
		}
		iv := interval{start: p.OpenedAt, end: end}
		if short(p) {
			shortIvs = append(shortIvs, iv)
		} else {
			longIvs = append(longIvs, iv)
		}
	}

	longDuration := mergedDuration(longIvs, windowStart, now)
	shortDuration := mergedDuration(shortIvs, windowStart, now)

	longPct = 100 * float64(longDuration) / float64(totalWindow)
	shortPct = 100 * float64(shortDuration) / float64(totalWindow)
	// Two different symbols can be held LONG and SHORT at the same instant;
	// merging per side only removes same-side double counting, so the two
	// can still together exceed the window. Scale both down proportionally
	// so long+short never exceeds 100, keeping long_hold_pct + short_hold_pct
	// + flat_hold_pct = 100 exactly.
	if sum := longPct + shortPct; sum > 100 {
		longPct = longPct * 100 / sum
		shortPct = shortPct * 100 / sum
	}
	flatPct = 100 - longPct - shortPct
	if flatPct < 0 {
		flatPct = 0
	}
	return longPct, shortPct, flatPct, nil
}

// short reports whether p counts toward short hold-time: a hedge-mode SHORT
// row directly, or a one-way-mode BOTH row whose signed position amount is
// negative.
func short(p store.FuturesPosition) bool {
	if p.PositionSide == store.PositionSideShort {
		return true
	}
	if p.PositionSide == store.PositionSideBoth {
		amt, _ := decimal.NewFromString(p.PositionAmt)
		return amt.IsNegative()
	}
	return false
}

type interval struct{ start, end time.Time }

// mergedDuration unions overlapping same-side intervals, clips the union to
// [windowStart, windowEnd), and returns its total duration — so a council
// holding two concurrent same-side positions is never counted twice.
func mergedDuration(ivs []interval, windowStart, windowEnd time.Time) time.Duration {
	clipped := make([]interval, 0, len(ivs))
	for _, iv := range ivs {
		start, end := iv.start, iv.end
		if start.Before(windowStart) {
			start = windowStart
		}
		if end.After(windowEnd) {
			end = windowEnd
		}
		if end.After(start) {
			clipped = append(clipped, interval{start: start, end: end})
		}
	}
	sort.Slice(clipped, func(i, j int) bool { return clipped[i].start.Before(clipped[j].start) })

	var total time.Duration
	var cur *interval
	for i := range clipped {
		iv := clipped[i]
		if cur == nil {
			c := iv
			cur = &c
			continue
		}
		if iv.start.After(cur.end) {
			total += cur.end.Sub(cur.start)
			c := iv
			cur = &c
			continue
		}
		if iv.end.After(cur.end) {
			cur.end = iv.end
		}
	}
	if cur != nil {
		total += cur.end.Sub(cur.start)
	}
	return total
}
