// Package exchange is the signed REST client to the perpetual-futures
// venue. It wraps github.com/adshao/go-binance/v2's futures client behind
// typed DTOs so the rest of the system never imports the vendor SDK
// directly, mirroring how execution_service.go keeps *futures.Client behind
// ExecutionService's own method set.
package exchange

import (
	"time"

	"github.com/shopspring/decimal"
)

// Platform names a venue the router may select.
type Platform string

const (
	PlatformBinanceTestnet Platform = "binance-testnet"
	PlatformBinanceLive    Platform = "binance-live"
)

// Side mirrors the venue's BUY/SELL order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType is the closed set this system ever submits.
type OrderType string

const (
	OrderTypeMarket          OrderType = "MARKET"
	OrderTypeLimit           OrderType = "LIMIT"
	OrderTypeStopMarket      OrderType = "STOP_MARKET"
	OrderTypeTakeProfitMkt   OrderType = "TAKE_PROFIT_MARKET"
)

// PositionSide is BOTH in one-way mode, LONG/SHORT in hedge mode.
type PositionSide string

const (
	PositionSideBoth  PositionSide = "BOTH"
	PositionSideLong  PositionSide = "LONG"
	PositionSideShort PositionSide = "SHORT"
)

type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC"
	TimeInForceIOC TimeInForce = "IOC"
	TimeInForceFOK TimeInForce = "FOK"
)

type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
)

type MarginType string

const (
	MarginTypeIsolated MarginType = "ISOLATED"
	MarginTypeCrossed  MarginType = "CROSSED"
)

// Ticker is a single-symbol price quote.
type Ticker struct {
	Symbol string
	Price  decimal.Decimal
}

// SymbolInfo carries the precision/limit filters the venue declares for one
// symbol, as cached by money.FilterCache.
type SymbolInfo struct {
	Symbol      string
	TickSize    decimal.Decimal
	StepSize    decimal.Decimal
	MinQty      decimal.Decimal
	MaxQty      decimal.Decimal
	MinNotional decimal.Decimal
}

// AccountInfo is the subset of the venue account endpoint this system reads.
type AccountInfo struct {
	AvailableBalance decimal.Decimal
	TotalMarginUsed  decimal.Decimal
}

// Position is one row from the venue's position-risk endpoint.
type Position struct {
	Symbol           string
	PositionSide     PositionSide
	PositionAmt      decimal.Decimal // signed
	EntryPrice       decimal.Decimal
	MarkPrice        decimal.Decimal
	LiquidationPrice decimal.Decimal
	IsolatedMargin   decimal.Decimal
	Leverage         int
	MarginType       MarginType
}

// OrderRequest is the normalized shape for every order this system submits.
type OrderRequest struct {
	Symbol       string
	Side         Side
	PositionSide PositionSide
	Type         OrderType
	Quantity     decimal.Decimal
	Price        decimal.Decimal // LIMIT only
	StopPrice    decimal.Decimal // STOP_MARKET / TAKE_PROFIT_MARKET
	TimeInForce  TimeInForce     // LIMIT only
	ReduceOnly   bool
	ClosePosition bool
	ClientOrderID string
}

// Kline is one OHLCV candle.
type Kline struct {
	OpenTime  time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	CloseTime time.Time
}

// OrderResult is the normalized response for a placed/queried order.
type OrderResult struct {
	OrderID       int64
	ClientOrderID string
	Symbol        string
	Side          Side
	PositionSide  PositionSide
	Type          OrderType
	Status        OrderStatus
	OrigQty       decimal.Decimal
	ExecutedQty   decimal.Decimal
	Price         decimal.Decimal
	StopPrice     decimal.Decimal
	AvgPrice      decimal.Decimal
	UpdateTime    time.Time
}
