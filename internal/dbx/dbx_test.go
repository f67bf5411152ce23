package dbx

import (
	"testing"

	"gorm.io/gorm"

	"github.com/pantheonelite/counciltrader/internal/store"
)

func openMemoryDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(Config{Driver: DriverSQLite, DSN: "file::memory:?cache=shared"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.AutoMigrate(&store.FuturesPosition{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestEnsureOpenPositionUniqueIndexRejectsDuplicateOpenRow(t *testing.T) {
	db := openMemoryDB(t)
	if err := EnsureOpenPositionUniqueIndex(db, DriverSQLite); err != nil {
		t.Fatalf("EnsureOpenPositionUniqueIndex: %v", err)
	}

	row := store.FuturesPosition{
		CouncilID:        1,
		Symbol:           "BTCUSDT",
		PositionSide:     store.PositionSideLong,
		Platform:         "binance_testnet",
		PositionAmt:      "0.5",
		EntryPrice:       "50000",
		MarkPrice:        "50000",
		Leverage:         5,
		MarginType:       store.MarginIsolated,
		Notional:         "25000",
		MaxNotional:      "25000",
		UnrealizedProfit: "0",
		TradingMode:      store.ModePaper,
		Status:           store.PositionOpen,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create first open row: %v", err)
	}

	dup := row
	dup.ID = 0
	if err := db.Create(&dup).Error; err == nil {
		t.Fatal("expected unique constraint violation creating a second OPEN row for the same council/symbol/side/platform, got nil")
	}

	closed := row
	closed.ID = 0
	closed.Status = store.PositionClosed
	if err := db.Create(&closed).Error; err != nil {
		t.Errorf("creating a CLOSED row for the same key should not violate the partial index: %v", err)
	}
}

func TestEnsureOpenPositionUniqueIndexIsNoOpOnMySQL(t *testing.T) {
	db := openMemoryDB(t)
	if err := EnsureOpenPositionUniqueIndex(db, DriverMySQL); err != nil {
		t.Fatalf("EnsureOpenPositionUniqueIndex(mysql) should be a documented no-op, got err: %v", err)
	}
}
