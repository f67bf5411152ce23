package exchange

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"

	"github.com/pantheonelite/counciltrader/internal/errs"
	"github.com/pantheonelite/counciltrader/internal/logx"
	"github.com/pantheonelite/counciltrader/internal/money"
	"github.com/pantheonelite/counciltrader/internal/ratelimit"
)

// Client is the signed REST client to one venue (testnet or live),
// grounded on execution_service.go's ExecutionService (which keeps a bare
// *futures.Client behind its own methods) generalized to the full
// operation set SPEC_FULL §4.4 names.
type Client struct {
	Platform Platform
	raw      *futures.Client
	reqLim   *ratelimit.RequestLimiter
	ordLim   *ratelimit.OrderLimiter
	filters  *money.FilterCache
	log      *logx.Logger

	maxRetries int
}

// Config is the per-venue dial configuration.
type Config struct {
	Platform       Platform
	APIKey         string
	APISecret      string
	UseTestnet     bool
	RequestsPerMin int
	OrdersPer10s   int
	OrdersPerDay   int
}

// New dials a futures client for one venue. UseTestnet flips the
// package-level futures.UseTestnet switch exactly as
// ExecutionService.Start does before constructing the client.
func New(cfg Config) *Client {
	futures.UseTestnet = cfg.UseTestnet
	raw := futures.NewClient(cfg.APIKey, cfg.APISecret)

	rpm := cfg.RequestsPerMin
	if rpm <= 0 {
		rpm = 1200
	}
	per10s := cfg.OrdersPer10s
	if per10s <= 0 {
		per10s = 100
	}
	perDay := cfg.OrdersPerDay
	if perDay <= 0 {
		perDay = 200000
	}

	return &Client{
		Platform:   cfg.Platform,
		raw:        raw,
		reqLim:     ratelimit.NewRequestLimiter(rpm),
		ordLim:     ratelimit.NewOrderLimiter(per10s, perDay),
		filters:    money.NewFilterCache(),
		log:        logx.New("XC:" + string(cfg.Platform)),
		maxRetries: 3,
	}
}

// RequestLimiter exposes the client's request-limiter bucket so MA can
// report its utilization as a gauge.
func (c *Client) RequestLimiter() *ratelimit.RequestLimiter { return c.reqLim }

// withRetry executes fn, retrying per the E taxonomy's retryable kinds with
// exponential backoff; on Throttled the sleep is retryAfter*2^attempt.
func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		te, ok := err.(*errs.TradingError)
		if !ok || !te.Kind.Retryable() {
			return err
		}
		if attempt == c.maxRetries {
			break
		}

		base := time.Second
		if te.Kind == errs.Throttled && te.RetryAfterS > 0 {
			base = time.Duration(te.RetryAfterS * float64(time.Second))
		}
		wait := base * time.Duration(1<<attempt)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if apiErr, ok := err.(*futures.APIError); ok {
		return errs.FromVenueCode(int(apiErr.Code), 400, apiErr.Message)
	}
	msg := err.Error()
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") {
		return &errs.TradingError{Kind: errs.Transport, Message: msg, Wrapped: err}
	}
	return &errs.TradingError{Kind: errs.ServerError, Message: msg, Wrapped: err}
}

// GetTicker fetches the current mark price for symbol.
func (c *Client) GetTicker(ctx context.Context, symbol string) (Ticker, error) {
	if err := c.reqLim.Acquire(ctx, 1); err != nil {
		return Ticker{}, err
	}
	var out Ticker
	err := c.withRetry(ctx, func() error {
		prices, err := c.raw.NewListPricesService().Symbol(symbol).Do(ctx)
		if err != nil {
			return mapErr(err)
		}
		if len(prices) == 0 {
			return errs.New(errs.InvalidSymbol, "no price returned for "+symbol)
		}
		price, perr := decimal.NewFromString(prices[0].Price)
		if perr != nil {
			return errs.Wrap(errs.ServerError, 0, "bad price payload", perr)
		}
		out = Ticker{Symbol: symbol, Price: price}
		return nil
	})
	return out, err
}

// GetKlines fetches up to limit OHLCV candles for symbol at interval,
// grounded on trend_analyzer.go's NewKlinesService().Symbol().Interval().
// Limit().Do(ctx) call shape.
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	if err := c.reqLim.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	var out []Kline
	err := c.withRetry(ctx, func() error {
		raw, err := c.raw.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
		if err != nil {
			return mapErr(err)
		}
		out = make([]Kline, 0, len(raw))
		for _, k := range raw {
			open, _ := decimal.NewFromString(k.Open)
			high, _ := decimal.NewFromString(k.High)
			low, _ := decimal.NewFromString(k.Low)
			cls, _ := decimal.NewFromString(k.Close)
			vol, _ := decimal.NewFromString(k.Volume)
			out = append(out, Kline{
				OpenTime:  time.UnixMilli(k.OpenTime),
				Open:      open,
				High:      high,
				Low:       low,
				Close:     cls,
				Volume:    vol,
				CloseTime: time.UnixMilli(k.CloseTime),
			})
		}
		return nil
	})
	return out, err
}

// GetSymbolInfo returns cached filters for symbol, populating the cache
// from the exchange-info endpoint on first use (see FetchExchangeInfo).
func (c *Client) GetSymbolInfo(ctx context.Context, symbol string) (SymbolInfo, error) {
	if f, ok := c.filters.Get(string(c.Platform), symbol); ok {
		return toSymbolInfo(symbol, f), nil
	}
	if err := c.FetchExchangeInfo(ctx); err != nil {
		return SymbolInfo{}, err
	}
	f, ok := c.filters.Get(string(c.Platform), symbol)
	if !ok {
		return SymbolInfo{}, errs.New(errs.InvalidSymbol, "unknown symbol: "+symbol)
	}
	return toSymbolInfo(symbol, f), nil
}

func toSymbolInfo(symbol string, f money.SymbolFilters) SymbolInfo {
	return SymbolInfo{Symbol: symbol, TickSize: f.TickSize, StepSize: f.StepSize, MinQty: f.MinQty, MaxQty: f.MaxQty, MinNotional: f.MinNotional}
}

// FetchExchangeInfo caches TickSize/StepSize/MinQty/MaxQty/MinNotional per
// symbol, the same data execution_service.go's FetchExchangeInfo caches to
// avoid -1111 "precision" rejections.
func (c *Client) FetchExchangeInfo(ctx context.Context) error {
	if err := c.reqLim.Acquire(ctx, 1); err != nil {
		return err
	}
	info, err := c.raw.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return mapErr(err)
	}
	for _, s := range info.Symbols {
		f := money.SymbolFilters{
			TickSize:    decimal.NewFromInt(1).Div(decimal.NewFromInt(100)),
			StepSize:    decimal.NewFromInt(1).Div(decimal.NewFromInt(1000)),
			MinNotional: decimal.NewFromInt(5),
		}
		for _, flt := range s.Filters {
			switch flt["filterType"] {
			case "PRICE_FILTER":
				if v, ok := flt["tickSize"].(string); ok {
					if d, e := decimal.NewFromString(v); e == nil {
						f.TickSize = d
					}
				}
			case "LOT_SIZE":
				if v, ok := flt["minQty"].(string); ok {
					if d, e := decimal.NewFromString(v); e == nil {
						f.MinQty = d
					}
				}
				if v, ok := flt["maxQty"].(string); ok {
					if d, e := decimal.NewFromString(v); e == nil {
						f.MaxQty = d
					}
				}
				if v, ok := flt["stepSize"].(string); ok {
					if d, e := decimal.NewFromString(v); e == nil {
						f.StepSize = d
					}
				}
			case "MIN_NOTIONAL":
				if v, ok := flt["notional"].(string); ok {
					if d, e := decimal.NewFromString(v); e == nil {
						f.MinNotional = d
					}
				}
			}
		}
		c.filters.Set(string(c.Platform), s.Symbol, f)
	}
	c.log.Infof("exchange info loaded, %d symbols cached", len(info.Symbols))
	return nil
}

// GetAccount returns available balance and margin usage.
func (c *Client) GetAccount(ctx context.Context) (AccountInfo, error) {
	if err := c.reqLim.Acquire(ctx, 5); err != nil {
		return AccountInfo{}, err
	}
	var out AccountInfo
	err := c.withRetry(ctx, func() error {
		acct, err := c.raw.NewGetAccountService().Do(ctx)
		if err != nil {
			return mapErr(err)
		}
		avail, _ := decimal.NewFromString(acct.AvailableBalance)
		used, _ := decimal.NewFromString(acct.TotalPositionInitialMargin)
		out = AccountInfo{AvailableBalance: avail, TotalMarginUsed: used}
		return nil
	})
	return out, err
}

// GetPositions lists open positions, optionally filtered by symbol.
func (c *Client) GetPositions(ctx context.Context, symbol string) ([]Position, error) {
	if err := c.reqLim.Acquire(ctx, 5); err != nil {
		return nil, err
	}
	var out []Position
	err := c.withRetry(ctx, func() error {
		svc := c.raw.NewGetPositionRiskService()
		if symbol != "" {
			svc = svc.Symbol(symbol)
		}
		rows, err := svc.Do(ctx)
		if err != nil {
			return mapErr(err)
		}
		out = out[:0]
		for _, r := range rows {
			amt, _ := decimal.NewFromString(r.PositionAmt)
			if amt.IsZero() {
				continue
			}
			entry, _ := decimal.NewFromString(r.EntryPrice)
			mark, _ := decimal.NewFromString(r.MarkPrice)
			liq, _ := decimal.NewFromString(r.LiquidationPrice)
			iso, _ := decimal.NewFromString(r.IsolatedMargin)
			lev, _ := strconv.Atoi(r.Leverage)
			out = append(out, Position{
				Symbol:           r.Symbol,
				PositionSide:     PositionSide(r.PositionSide),
				PositionAmt:      amt,
				EntryPrice:       entry,
				MarkPrice:        mark,
				LiquidationPrice: liq,
				IsolatedMargin:   iso,
				Leverage:         lev,
				MarginType:       MarginType(strings.ToUpper(string(r.MarginType))),
			})
		}
		return nil
	})
	return out, err
}

// SetLeverage sets the symbol's leverage bracket.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if err := c.reqLim.Acquire(ctx, 1); err != nil {
		return err
	}
	return c.withRetry(ctx, func() error {
		_, err := c.raw.NewChangeLeverageService().Symbol(symbol).Leverage(leverage).Do(ctx)
		return mapErr(err)
	})
}

// SetMarginType sets the symbol's margin type. Idempotent: the venue
// rejects a no-op change with "No need to change margin type", which this
// method swallows, mirroring execution_service.go's setMarginType.
func (c *Client) SetMarginType(ctx context.Context, symbol string, mt MarginType) error {
	if err := c.reqLim.Acquire(ctx, 1); err != nil {
		return err
	}
	err := c.withRetry(ctx, func() error {
		vendorType := futures.MarginTypeCrossed
		if mt == MarginTypeIsolated {
			vendorType = futures.MarginTypeIsolated
		}
		return mapErr(c.raw.NewChangeMarginTypeService().Symbol(symbol).MarginType(vendorType).Do(ctx))
	})
	if err != nil && strings.Contains(err.Error(), "No need to change margin type") {
		return nil
	}
	return err
}

// PlaceOrder submits req, acquiring the order-placement window before the
// general request weight as required by the RL ordering rule.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	if err := c.ordLim.AcquireOrder(ctx); err != nil {
		return OrderResult{}, err
	}
	if err := c.reqLim.Acquire(ctx, 1); err != nil {
		return OrderResult{}, err
	}

	var out OrderResult
	err := c.withRetry(ctx, func() error {
		svc := c.raw.NewCreateOrderService().
			Symbol(req.Symbol).
			Side(futures.SideType(req.Side)).
			PositionSide(futures.PositionSideType(req.PositionSide)).
			Type(futures.OrderType(req.Type))

		if !req.Quantity.IsZero() {
			svc = svc.Quantity(req.Quantity.String())
		}
		if req.Type == OrderTypeLimit {
			svc = svc.Price(req.Price.String()).TimeInForce(futures.TimeInForceType(req.TimeInForce))
		}
		if req.Type == OrderTypeStopMarket || req.Type == OrderTypeTakeProfitMkt {
			svc = svc.StopPrice(req.StopPrice.String()).WorkingType(futures.WorkingTypeMarkPrice)
		}
		if req.ReduceOnly {
			svc = svc.ReduceOnly(true)
		}
		if req.ClosePosition {
			svc = svc.ClosePosition(true)
		}
		if req.ClientOrderID != "" {
			svc = svc.NewClientOrderID(req.ClientOrderID)
		}

		res, err := svc.Do(ctx)
		if err != nil {
			return mapErr(err)
		}
		out = fromCreateOrderResponse(res)
		return nil
	})
	return out, err
}

func fromCreateOrderResponse(res *futures.CreateOrderResponse) OrderResult {
	orig, _ := decimal.NewFromString(res.OrigQuantity)
	exec, _ := decimal.NewFromString(res.ExecutedQuantity)
	price, _ := decimal.NewFromString(res.Price)
	stop, _ := decimal.NewFromString(res.StopPrice)
	avg, _ := decimal.NewFromString(res.AvgPrice)
	return OrderResult{
		OrderID:       res.OrderID,
		ClientOrderID: res.ClientOrderID,
		Symbol:        res.Symbol,
		Side:          Side(res.Side),
		PositionSide:  PositionSide(res.PositionSide),
		Type:          OrderType(res.Type),
		Status:        OrderStatus(res.Status),
		OrigQty:       orig,
		ExecutedQty:   exec,
		Price:         price,
		StopPrice:     stop,
		AvgPrice:      avg,
		UpdateTime:    time.UnixMilli(res.UpdateTime),
	}
}

// ModifyOrder cancels and re-places the order with new quantity/price, the
// portable approach across venues that don't expose a native amend
// endpoint for every order type this system uses.
func (c *Client) ModifyOrder(ctx context.Context, symbol string, orderID int64, newReq OrderRequest) (OrderResult, error) {
	if err := c.CancelOrder(ctx, symbol, orderID); err != nil {
		return OrderResult{}, err
	}
	return c.PlaceOrder(ctx, newReq)
}

// CancelOrder cancels a single open order.
func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	if err := c.reqLim.Acquire(ctx, 1); err != nil {
		return err
	}
	return c.withRetry(ctx, func() error {
		_, err := c.raw.NewCancelOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
		return mapErr(err)
	})
}

// CancelAllOrders cancels every open order for symbol.
func (c *Client) CancelAllOrders(ctx context.Context, symbol string) error {
	if err := c.reqLim.Acquire(ctx, 1); err != nil {
		return err
	}
	return c.withRetry(ctx, func() error {
		_, err := c.raw.NewCancelAllOpenOrdersService().Symbol(symbol).Do(ctx)
		return mapErr(err)
	})
}

// PlaceBatchOrders places up to 5 orders, one PlaceOrder request each, so
// every order counts once against the order-placement window (§4.4). No
// single batch request is sent to the venue. It stops at the first failure
// and returns the results placed so far together with that error.
func (c *Client) PlaceBatchOrders(ctx context.Context, reqs []OrderRequest) ([]OrderResult, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	if len(reqs) > 5 {
		return nil, errs.NewValidation("orders", "batch_limit_exceeded")
	}
	results := make([]OrderResult, 0, len(reqs))
	for _, r := range reqs {
		res, err := c.PlaceOrder(ctx, r)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// GetOpenOrders lists open orders, optionally filtered by symbol.
func (c *Client) GetOpenOrders(ctx context.Context, symbol string) ([]OrderResult, error) {
	if err := c.reqLim.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	var out []OrderResult
	err := c.withRetry(ctx, func() error {
		svc := c.raw.NewListOpenOrdersService()
		if symbol != "" {
			svc = svc.Symbol(symbol)
		}
		rows, err := svc.Do(ctx)
		if err != nil {
			return mapErr(err)
		}
		out = out[:0]
		for _, o := range rows {
			out = append(out, fromOrder(o))
		}
		return nil
	})
	return out, err
}

// GetAllOrders returns historical orders for symbol (order-history query,
// filters reserved for future paging parameters).
func (c *Client) GetAllOrders(ctx context.Context, symbol string) ([]OrderResult, error) {
	if err := c.reqLim.Acquire(ctx, 5); err != nil {
		return nil, err
	}
	var out []OrderResult
	err := c.withRetry(ctx, func() error {
		rows, err := c.raw.NewListOrdersService().Symbol(symbol).Do(ctx)
		if err != nil {
			return mapErr(err)
		}
		out = out[:0]
		for _, o := range rows {
			out = append(out, fromOrder(o))
		}
		return nil
	})
	return out, err
}

func fromOrder(o *futures.Order) OrderResult {
	orig, _ := decimal.NewFromString(o.OrigQuantity)
	exec, _ := decimal.NewFromString(o.ExecutedQuantity)
	price, _ := decimal.NewFromString(o.Price)
	stop, _ := decimal.NewFromString(o.StopPrice)
	avg, _ := decimal.NewFromString(o.AvgPrice)
	return OrderResult{
		OrderID:       o.OrderID,
		ClientOrderID: o.ClientOrderID,
		Symbol:        o.Symbol,
		Side:          Side(o.Side),
		PositionSide:  PositionSide(o.PositionSide),
		Type:          OrderType(o.Type),
		Status:        OrderStatus(o.Status),
		OrigQty:       orig,
		ExecutedQty:   exec,
		Price:         price,
		StopPrice:     stop,
		AvgPrice:      avg,
		UpdateTime:    time.UnixMilli(o.UpdateTime),
	}
}

// ClosePosition implements the BOTH-vs-specific-side semantics of §4.4: for
// BOTH (or an empty side) it closes every open position on symbol, each
// with an order opposite to the sign of its amount; for an explicit
// LONG/SHORT it closes the positions on that side (a LONG/SHORT row, or a
// BOTH row whose amount has the matching sign). Returns the last order placed, or nil if nothing
// matched.
func (c *Client) ClosePosition(ctx context.Context, symbol string, side PositionSide) (*OrderResult, error) {
	positions, err := c.GetPositions(ctx, symbol)
	if err != nil {
		return nil, err
	}

	var last *OrderResult
	for _, p := range positions {
		matches := false
		var orderSide Side
		switch side {
		case PositionSideBoth, "":
			matches = true
			if p.PositionAmt.IsPositive() {
				orderSide = SideSell
			} else {
				orderSide = SideBuy
			}
		case PositionSideLong:
			matches = (p.PositionSide == PositionSideLong) || (p.PositionSide == PositionSideBoth && p.PositionAmt.IsPositive())
			orderSide = SideSell
		case PositionSideShort:
			matches = (p.PositionSide == PositionSideShort) || (p.PositionSide == PositionSideBoth && p.PositionAmt.IsNegative())
			orderSide = SideBuy
		}
		if !matches {
			continue
		}

		res, err := c.PlaceOrder(ctx, OrderRequest{
			Symbol:       symbol,
			Side:         orderSide,
			PositionSide: p.PositionSide,
			Type:         OrderTypeMarket,
			Quantity:     p.PositionAmt.Abs(),
			ReduceOnly:   true,
		})
		if err != nil {
			return last, err
		}
		last = &res
	}
	return last, nil
}

// SetOneWayMode forces one-way (non-hedge) position mode, matching
// execution_service.go's Start sequence.
func (c *Client) SetOneWayMode(ctx context.Context) error {
	if err := c.reqLim.Acquire(ctx, 1); err != nil {
		return err
	}
	err := c.raw.NewChangePositionModeService().DualSide(false).Do(ctx)
	if err != nil && strings.Contains(err.Error(), "No need to change position side") {
		return nil
	}
	return mapErr(err)
}
