package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Repo bundles the PS/OL repository methods over one *gorm.DB, grounded on
// ChoSanghyuk-blackholedex's MySQLRecorder (wraps *gorm.DB, AutoMigrate on
// construction, fmt.Errorf("...: %w") wrapping on every query).
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) (*Repo, error) {
	if err := db.AutoMigrate(
		&Council{}, &Wallet{}, &FuturesPosition{}, &SpotHolding{}, &Order{}, &PnLSnapshot{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &Repo{db: db}, nil
}

// DB exposes the underlying *gorm.DB for callers (e.g. the position
// service) that need to run their own transaction via WithinTransaction.
func (r *Repo) DB() *gorm.DB { return r.db }

// WithinTransaction is the unit-of-work primitive TR/PSV use so a position
// row and its order-log entries commit atomically.
func (r *Repo) WithinTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// FindOpenPositionBySymbolAndSide is the authoritative open-then-close
// guard lookup used by TR's re-check inside the step 10 persistence
// transaction (step 6's fail-fast pre-check uses FindBySymbolAndSide).
// It must be called inside the same
// transaction that subsequently inserts the new position row, so the two
// operations serialize against the unique-open index.
func FindOpenPositionBySymbolAndSide(tx *gorm.DB, councilID uint, symbol string, side PositionSide, platform string) (*FuturesPosition, error) {
	var pos FuturesPosition
	err := tx.Where("council_id = ? AND symbol = ? AND position_side = ? AND platform = ? AND status = ?",
		councilID, symbol, side, platform, PositionOpen).First(&pos).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find open position: %w", err)
	}
	return &pos, nil
}

func (r *Repo) FindByID(ctx context.Context, id uint) (*FuturesPosition, error) {
	var pos FuturesPosition
	err := r.db.WithContext(ctx).First(&pos, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find position by id: %w", err)
	}
	return &pos, nil
}

func (r *Repo) FindOpenPositions(ctx context.Context, councilID uint, symbol string) ([]FuturesPosition, error) {
	q := r.db.WithContext(ctx).Where("council_id = ? AND status = ?", councilID, PositionOpen)
	if symbol != "" {
		q = q.Where("symbol = ?", symbol)
	}
	var rows []FuturesPosition
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find open positions: %w", err)
	}
	return rows, nil
}

func (r *Repo) FindClosedPositions(ctx context.Context, councilID uint, limit int) ([]FuturesPosition, error) {
	var rows []FuturesPosition
	q := r.db.WithContext(ctx).Where("council_id = ? AND status = ?", councilID, PositionClosed).Order("closed_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find closed positions: %w", err)
	}
	return rows, nil
}

func (r *Repo) FindBySymbolAndSide(ctx context.Context, councilID uint, symbol string, side PositionSide, status PositionStatus) (*FuturesPosition, error) {
	var pos FuturesPosition
	err := r.db.WithContext(ctx).Where("council_id = ? AND symbol = ? AND position_side = ? AND status = ?",
		councilID, symbol, side, status).First(&pos).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find position by symbol and side: %w", err)
	}
	return &pos, nil
}

func (r *Repo) FindHolding(ctx context.Context, councilID uint, symbol, platform string, mode TradingMode) (*SpotHolding, error) {
	var h SpotHolding
	err := r.db.WithContext(ctx).Where("council_id = ? AND symbol = ? AND platform = ? AND trading_mode = ?",
		councilID, symbol, platform, mode).First(&h).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find holding: %w", err)
	}
	return &h, nil
}

func (r *Repo) AppendOrder(tx *gorm.DB, o *Order) error {
	if err := tx.Create(o).Error; err != nil {
		return fmt.Errorf("append order: %w", err)
	}
	return nil
}

func (r *Repo) AppendSnapshot(ctx context.Context, s *PnLSnapshot) error {
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}
	return nil
}

func (r *Repo) GetCouncil(ctx context.Context, id uint) (*Council, error) {
	var c Council
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, fmt.Errorf("get council: %w", err)
	}
	return &c, nil
}

func (r *Repo) GetWallet(ctx context.Context, id uint) (*Wallet, error) {
	var w Wallet
	if err := r.db.WithContext(ctx).First(&w, id).Error; err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return &w, nil
}
