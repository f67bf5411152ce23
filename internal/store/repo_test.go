package store

import (
	"context"
	"errors"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	repo, err := NewRepo(db)
	if err != nil {
		t.Fatalf("NewRepo: %v", err)
	}
	return repo
}

func TestWithinTransactionRollsBackOnError(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := repo.WithinTransaction(ctx, func(tx *gorm.DB) error {
		pos := FuturesPosition{
			CouncilID:        1,
			Symbol:           "BTCUSDT",
			PositionSide:     PositionSideLong,
			Platform:         "binance_testnet",
			PositionAmt:      "0.5",
			EntryPrice:       "50000",
			MarkPrice:        "50000",
			Leverage:         5,
			MarginType:       MarginIsolated,
			Notional:         "25000",
			MaxNotional:      "25000",
			UnrealizedProfit: "0",
			TradingMode:      ModePaper,
			Status:           PositionOpen,
		}
		if err := tx.Create(&pos).Error; err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithinTransaction error = %v, want %v", err, boom)
	}

	var count int64
	if err := repo.DB().Model(&FuturesPosition{}).Where("symbol = ?", "BTCUSDT").Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("row count = %d, want 0 (the insert inside the errored transaction must be rolled back)", count)
	}
}

func TestWithinTransactionCommitsOnSuccess(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	err := repo.WithinTransaction(ctx, func(tx *gorm.DB) error {
		pos := FuturesPosition{
			CouncilID:        1,
			Symbol:           "ETHUSDT",
			PositionSide:     PositionSideShort,
			Platform:         "binance_testnet",
			PositionAmt:      "-0.5",
			EntryPrice:       "3000",
			MarkPrice:        "3000",
			Leverage:         5,
			MarginType:       MarginIsolated,
			Notional:         "1500",
			MaxNotional:      "1500",
			UnrealizedProfit: "0",
			TradingMode:      ModePaper,
			Status:           PositionOpen,
		}
		return tx.Create(&pos).Error
	})
	if err != nil {
		t.Fatalf("WithinTransaction: %v", err)
	}

	var count int64
	if err := repo.DB().Model(&FuturesPosition{}).Where("symbol = ?", "ETHUSDT").Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("row count = %d, want 1 (a successful transaction must commit)", count)
	}
}
