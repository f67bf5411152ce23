// Command trader wires the full autonomous-trading pipeline: configuration,
// persistence, the testnet/live exchange clients, the position service,
// trading router, metrics aggregator, event broadcaster, and agent adapter,
// then serves /healthz and /metrics.
//
// Grounded on main.go's wiring idiom (banner log lines, godotenv.Load,
// construct-then-start-each-service, http.HandleFunc + goroutine
// http.ListenAndServe) generalized from the whale-signal pipeline to this
// system's components.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/pantheonelite/counciltrader/config"
	"github.com/pantheonelite/counciltrader/internal/agent"
	"github.com/pantheonelite/counciltrader/internal/broadcast"
	"github.com/pantheonelite/counciltrader/internal/dbx"
	"github.com/pantheonelite/counciltrader/internal/exchange"
	"github.com/pantheonelite/counciltrader/internal/metrics"
	"github.com/pantheonelite/counciltrader/internal/position"
	"github.com/pantheonelite/counciltrader/internal/router"
	"github.com/pantheonelite/counciltrader/internal/store"

	"github.com/shopspring/decimal"
)

func main() {
	log.Println("🛡️  COUNCIL TRADER ACTIVE")
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	cfg := config.LoadConfig()

	dbDriver := dbx.DriverSQLite
	if cfg.DB.Driver == "mysql" {
		dbDriver = dbx.DriverMySQL
	}
	db, err := dbx.Open(dbx.Config{
		Driver:          dbDriver,
		DSN:             cfg.DB.DSN,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
		LogSQL:          cfg.DB.LogSQL,
	})
	if err != nil {
		log.Fatalf("🚨 failed to open database: %v", err)
	}
	if err := dbx.EnsureOpenPositionUniqueIndex(db, dbDriver); err != nil {
		log.Printf("⚠️  could not create open-position unique index: %v", err)
	}

	repo, err := store.NewRepo(db)
	if err != nil {
		log.Fatalf("🚨 failed to initialize repository: %v", err)
	}

	paperClient := exchange.New(exchange.Config{
		Platform:       exchange.PlatformBinanceTestnet,
		APIKey:         cfg.Paper.APIKey,
		APISecret:      cfg.Paper.APISecret,
		UseTestnet:     true,
		RequestsPerMin: cfg.PaperRateLimit.RequestsPerMinute,
		OrdersPer10s:   cfg.PaperRateLimit.OrdersPer10Sec,
		OrdersPerDay:   cfg.PaperRateLimit.OrdersPerDay,
	})
	// Force one-way mode on the testnet account; router.apiPositionSide
	// assumes it. Global, not per symbol. Log but don't fail startup, it
	// may already be set.
	if err := paperClient.SetOneWayMode(context.Background()); err != nil {
		log.Printf("ℹ️  position mode: %v", err)
	}
	realClient := exchange.New(exchange.Config{
		Platform:       exchange.PlatformBinanceLive,
		APIKey:         cfg.Real.APIKey,
		APISecret:      cfg.Real.APISecret,
		UseTestnet:     false,
		RequestsPerMin: cfg.RealRateLimit.RequestsPerMinute,
		OrdersPer10s:   cfg.RealRateLimit.OrdersPer10Sec,
		OrdersPerDay:   cfg.RealRateLimit.OrdersPerDay,
	})

	psv := position.New(repo)
	aggregator := metrics.New(repo)
	hub := broadcast.NewHub()
	eb := broadcast.NewEventBroadcaster(hub)
	notifier := broadcast.NewRouterNotifier(aggregator, eb)

	tr := router.New(router.ClientSet{Paper: paperClient, Real: realClient}, repo, psv, notifier)

	go reportRateLimiterUtilization(paperClient, realClient)

	aa := agent.New(tr, repo, agent.DefaultExitLevels{
		StopLossPct:     decimal.NewFromFloat(cfg.DefaultStopLossPct),
		TakeProfitShort: decimal.NewFromFloat(cfg.DefaultTakeProfitShort),
		TakeProfitMid:   decimal.NewFromFloat(cfg.DefaultTakeProfitMid),
		TakeProfitLong:  decimal.NewFromFloat(cfg.DefaultTakeProfitLong),
	})
	_ = aa // wired for inbound decision handlers; HTTP ingress is out of scope here

	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	http.Handle("/metrics", metrics.Handler())

	log.Printf("📡 serving /healthz and /metrics on %s", cfg.MetricsAddr)
	if err := http.ListenAndServe(cfg.MetricsAddr, nil); err != nil {
		log.Fatal("ListenAndServe: ", err)
	}
}

// reportRateLimiterUtilization samples each venue's request-bucket
// utilization into the MA gauge every few seconds.
func reportRateLimiterUtilization(paper, real *exchange.Client) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		metrics.RecordRateLimiterUtilization(string(exchange.PlatformBinanceTestnet), paper.RequestLimiter())
		metrics.RecordRateLimiterUtilization(string(exchange.PlatformBinanceLive), real.RequestLimiter())
	}
}
