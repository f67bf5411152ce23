// Package store implements the Position Store (PS) and Order Log (OL):
// persistent GORM models for futures positions, spot holdings, orders, and
// PnL snapshots, plus the repository methods the router and position
// service use.
//
// Grounded on ChoSanghyuk-blackholedex's internal/db/transaction_recorder.go
// (gorm.Open+AutoMigrate, repository-wraps-*gorm.DB shape, TableName()
// overrides) — the teacher itself has no persistence layer at all.
package store

import "time"

type PositionStatus string

const (
	PositionOpen       PositionStatus = "OPEN"
	PositionClosed     PositionStatus = "CLOSED"
	PositionLiquidated PositionStatus = "LIQUIDATED"
)

type PositionSide string

const (
	PositionSideLong  PositionSide = "LONG"
	PositionSideShort PositionSide = "SHORT"
	PositionSideBoth  PositionSide = "BOTH"
)

type MarginType string

const (
	MarginIsolated MarginType = "ISOLATED"
	MarginCrossed  MarginType = "CROSSED"
)

type TradingMode string

const (
	ModePaper TradingMode = "paper"
	ModeReal  TradingMode = "real"
)

// FuturesPosition is the §3 FuturesPosition entity. Decimal fields are
// stored as strings (DECIMAL(20,8) in a real schema) to avoid float drift;
// conversion to/from decimal.Decimal happens in the position/router layers.
type FuturesPosition struct {
	ID                 uint   `gorm:"primaryKey;autoIncrement"`
	CouncilID          uint   `gorm:"index:idx_open_lookup,priority:1;not null"`
	Symbol             string `gorm:"index:idx_open_lookup,priority:2;size:32;not null"`
	PositionSide       PositionSide `gorm:"index:idx_open_lookup,priority:3;size:8;not null"`
	Platform           string `gorm:"index:idx_open_lookup,priority:4;size:32;not null"`
	PositionAmt        string `gorm:"size:40;not null"`
	EntryPrice         string `gorm:"size:40;not null"`
	MarkPrice          string `gorm:"size:40;not null"`
	Leverage           int    `gorm:"not null"`
	MarginType         MarginType `gorm:"size:16;not null"`
	IsolatedMargin     string `gorm:"size:40"`
	Notional           string `gorm:"size:40;not null"`
	MaxNotional        string `gorm:"size:40;not null"`
	LiquidationPrice   string `gorm:"size:40"`
	UnrealizedProfit   string `gorm:"size:40;not null"`
	RealizedPnL        *string `gorm:"size:40"`
	FeesPaid           string `gorm:"size:40;not null;default:'0'"`
	FundingFees        string `gorm:"size:40;not null;default:'0'"`
	TradingMode        TradingMode `gorm:"size:8;not null"`
	Status             PositionStatus `gorm:"index:idx_open_lookup,priority:5;size:16;not null"`
	OpenedAt           time.Time
	ClosedAt           *time.Time
	Confidence         float64
	AgentReasoning     string `gorm:"type:text"`
	ExternalPositionID string `gorm:"size:64"`

	StopLossPrice      *string
	StopLossOrderID    *int64
	TakeProfitShort    *string
	TakeProfitShortID  *int64
	TakeProfitMid      *string
	TakeProfitMidID    *int64
	TakeProfitLong     *string
	TakeProfitLongID   *int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (FuturesPosition) TableName() string { return "futures_positions" }

type HoldingStatus string

const (
	HoldingActive HoldingStatus = "ACTIVE"
	HoldingClosed HoldingStatus = "CLOSED"
)

// SpotHolding is the §3 SpotHolding entity.
type SpotHolding struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	CouncilID       uint   `gorm:"uniqueIndex:idx_holding_unique,priority:1;not null"`
	Symbol          string `gorm:"uniqueIndex:idx_holding_unique,priority:2;size:32;not null"`
	Platform        string `gorm:"uniqueIndex:idx_holding_unique,priority:3;size:32;not null"`
	TradingMode     TradingMode `gorm:"uniqueIndex:idx_holding_unique,priority:4;size:8;not null"`
	BaseAsset       string `gorm:"size:16;not null"`
	QuoteAsset      string `gorm:"size:16;not null"`
	Free            string `gorm:"size:40;not null;default:'0'"`
	Locked          string `gorm:"size:40;not null;default:'0'"`
	Total           string `gorm:"size:40;not null;default:'0'"`
	AverageCost     string `gorm:"size:40;not null;default:'0'"`
	TotalCost       string `gorm:"size:40;not null;default:'0'"`
	CurrentPrice    string `gorm:"size:40;not null;default:'0'"`
	CurrentValue    string `gorm:"size:40;not null;default:'0'"`
	UnrealizedPnL   string `gorm:"size:40;not null;default:'0'"`
	Status          HoldingStatus `gorm:"size:16;not null"`
	FirstAcquiredAt time.Time
	LastUpdatedAt   time.Time
	ClosedAt        *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (SpotHolding) TableName() string { return "spot_holdings" }

type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

type OrderType string

const (
	OrderTypeMarket        OrderType = "MARKET"
	OrderTypeLimit         OrderType = "LIMIT"
	OrderTypeStopMarket    OrderType = "STOP_MARKET"
	OrderTypeTakeProfitMkt OrderType = "TAKE_PROFIT_MARKET"
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

// Order is the §3 append-only Order entity (OL).
type Order struct {
	ID                uint  `gorm:"primaryKey;autoIncrement"`
	CouncilID         uint  `gorm:"index;not null"`
	Symbol            string `gorm:"size:32;not null"`
	FuturesPositionID *uint `gorm:"index"`
	SpotHoldingID     *uint `gorm:"index"`
	ClientOrderID     string `gorm:"size:64;index"`
	ExchangeOrderID   int64  `gorm:"index"`
	Side              OrderSide `gorm:"size:8;not null"`
	Type              OrderType `gorm:"size:24;not null"`
	PositionSide      string `gorm:"size:8"`
	OrigQty           string `gorm:"size:40;not null"`
	ExecutedQty       string `gorm:"size:40;not null;default:'0'"`
	Price             string `gorm:"size:40"`
	StopPrice         string `gorm:"size:40"`
	AvgPrice          string `gorm:"size:40"`
	TimeInForce       string `gorm:"size:8"`
	ReduceOnly        bool
	ClosePosition     bool
	Status            OrderStatus `gorm:"size:24;not null"`
	Platform          string `gorm:"size:32;not null"`
	TradingMode       TradingMode `gorm:"size:8;not null"`
	TradingType       string `gorm:"size:16;not null"`
	Commission        string `gorm:"size:40;not null;default:'0'"`
	CommissionAsset   string `gorm:"size:16"`
	Confidence        float64
	PlacedAt          time.Time
	UpdatedAt         time.Time
	CreatedAt         time.Time
}

func (Order) TableName() string { return "orders" }

// PnLSnapshot is the §3 append-only reporting row.
type PnLSnapshot struct {
	ID                    uint   `gorm:"primaryKey;autoIncrement"`
	CouncilID             uint   `gorm:"index;not null"`
	FuturesPositionID     *uint  `gorm:"index"`
	SpotHoldingID         *uint  `gorm:"index"`
	SnapshotTime          time.Time `gorm:"index;not null"`
	MarkPrice             string `gorm:"size:40;not null"`
	NotionalValue         string `gorm:"size:40;not null"`
	UnrealizedPnL         string `gorm:"size:40;not null"`
	PnLPercentage         float64
	LiquidationDistancePct *float64
	MarginRatio           *float64

	CreatedAt time.Time
}

func (PnLSnapshot) TableName() string { return "pnl_snapshots" }

// Council is the §3 Council entity: configuration plus running aggregates,
// mutated only by MA and PSV per the spec.
type Council struct {
	ID                   uint   `gorm:"primaryKey;autoIncrement"`
	TradingMode          TradingMode `gorm:"size:8;not null"`
	TradingType          string `gorm:"size:16;not null"`
	InitialCapital       string `gorm:"size:40;not null"`
	TotalAccountValue    string `gorm:"size:40;not null;default:'0'"`
	AvailableBalance     string `gorm:"size:40;not null;default:'0'"`
	UsedBalance          string `gorm:"size:40;not null;default:'0'"`
	TotalMarginUsed      string `gorm:"size:40;not null;default:'0'"`
	TotalUnrealizedProfit string `gorm:"size:40;not null;default:'0'"`
	TotalRealizedPnL     string `gorm:"size:40;not null;default:'0'"`
	NetPnL               string `gorm:"size:40;not null;default:'0'"`
	TotalFees            string `gorm:"size:40;not null;default:'0'"`
	TotalFundingFees     string `gorm:"size:40;not null;default:'0'"`
	OpenFuturesCount     int
	ClosedFuturesCount   int
	ActiveSpotHoldings   int
	AverageLeverage      float64
	AverageConfidence    float64
	BiggestWin           string `gorm:"size:40;not null;default:'0'"`
	BiggestLoss          string `gorm:"size:40;not null;default:'0'"`
	LongHoldPct          float64
	ShortHoldPct         float64
	FlatHoldPct          float64 `gorm:"default:100"`
	WalletID             *uint
	LastExecutedAt       *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Council) TableName() string { return "councils" }

// Wallet is the §3 Wallet entity.
type Wallet struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	APIKey    string `gorm:"size:128;not null"`
	SecretKey string `gorm:"size:128;not null"`
	Exchange  string `gorm:"size:32;not null"`
	IsActive  bool   `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Wallet) TableName() string { return "wallets" }
