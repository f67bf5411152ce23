// Package config implements the Configuration component (CFG): a flat
// Config struct populated by LoadConfig from .env + environment variables,
// the same godotenv.Load + os.Getenv + typed-parsing-with-defaults idiom
// the original single-exchange loader used, widened to the testnet/live
// venue pair, the database layer, and the rate limiter knobs SPEC_FULL §6
// requires.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// VenueCredentials is one exchange account's API key/secret/connection
// settings.
type VenueCredentials struct {
	APIKey       string
	APISecret    string
	UseTestnet   bool
	BaseURL      string
	TimeoutMS    int
	RecvWindowMS int
	Leverage     int
}

// DBConfig describes the persistence runtime connection.
type DBConfig struct {
	Driver          string // "mysql" or "sqlite"
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogSQL          bool
}

// RateLimitConfig describes the rate-limiter knobs for one venue.
type RateLimitConfig struct {
	RequestsPerMinute int
	OrdersPer10Sec    int
	OrdersPerDay      int
}

// Config holds the full application configuration.
type Config struct {
	Paper VenueCredentials
	Real  VenueCredentials

	PaperRateLimit RateLimitConfig
	RealRateLimit  RateLimitConfig

	DB DBConfig

	MaxExposure        float64
	MaxConcurrent      int
	TotalNotionalLimit float64
	MaxPositionFrac    float64
	MinOrderUSD        float64
	MaxOrderUSD        float64

	DefaultStopLossPct     float64
	DefaultTakeProfitShort float64
	DefaultTakeProfitMid   float64
	DefaultTakeProfitLong  float64

	MetricsAddr string
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// LoadConfig loads variables from .env and returns a Config struct.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  Warning: .env file not found. Relying on system environment variables.")
	}

	paper := VenueCredentials{
		APIKey:       os.Getenv("BINANCE_TESTNET_API_KEY"),
		APISecret:    os.Getenv("BINANCE_TESTNET_API_SECRET"),
		UseTestnet:   true,
		BaseURL:      getString("BINANCE_TESTNET_BASE_URL", "https://testnet.binancefuture.com"),
		TimeoutMS:    getInt("BINANCE_TESTNET_TIMEOUT_MS", 10000),
		RecvWindowMS: getInt("BINANCE_TESTNET_RECV_WINDOW_MS", 5000),
		Leverage:     getInt("BINANCE_TESTNET_LEVERAGE", 10),
	}

	real := VenueCredentials{
		APIKey:       os.Getenv("BINANCE_API_KEY"),
		APISecret:    firstNonEmpty(os.Getenv("BINANCE_API_SECRET"), os.Getenv("BINANCE_SECRET_KEY")),
		UseTestnet:   false,
		BaseURL:      getString("BINANCE_LIVE_BASE_URL", "https://fapi.binance.com"),
		TimeoutMS:    getInt("BINANCE_LIVE_TIMEOUT_MS", 10000),
		RecvWindowMS: getInt("BINANCE_LIVE_RECV_WINDOW_MS", 5000),
		Leverage:     getInt("LEVERAGE", 20),
	}

	if real.APIKey == "" || real.APISecret == "" {
		log.Println("⚠️  CRITICAL: Live Binance credentials missing — real-mode trading will fail fast.")
	}

	paperRL := RateLimitConfig{
		RequestsPerMinute: getInt("PAPER_RATE_LIMIT_RPM", 1200),
		OrdersPer10Sec:    getInt("PAPER_ORDERS_PER_10S", 100),
		OrdersPerDay:      getInt("PAPER_ORDERS_PER_DAY", 200000),
	}
	realRL := RateLimitConfig{
		RequestsPerMinute: getInt("REAL_RATE_LIMIT_RPM", 1200),
		OrdersPer10Sec:    getInt("REAL_ORDERS_PER_10S", 100),
		OrdersPerDay:      getInt("REAL_ORDERS_PER_DAY", 200000),
	}

	db := DBConfig{
		Driver:          getString("DB_DRIVER", "sqlite"),
		DSN:             getString("DB_DSN", "trader.db"),
		MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: time.Duration(getInt("DB_CONN_MAX_LIFETIME_MIN", 60)) * time.Minute,
		LogSQL:          getBool("DB_LOG_SQL", false),
	}

	return &Config{
		Paper:          paper,
		Real:           real,
		PaperRateLimit: paperRL,
		RealRateLimit:  realRL,
		DB:             db,

		MaxExposure:        getFloat("MAX_EXPOSURE", 0.20),
		MaxConcurrent:      getInt("MAX_CONCURRENT_TRADES", 3),
		TotalNotionalLimit: getFloat("TOTAL_NOTIONAL_LIMIT", 2000.0),
		MaxPositionFrac:    getFloat("MAX_POSITION_FRACTION", 0.25),
		MinOrderUSD:        getFloat("MIN_ORDER_USD", 10.0),
		MaxOrderUSD:        getFloat("MAX_ORDER_USD", 10000.0),

		DefaultStopLossPct:     getFloat("DEFAULT_STOP_LOSS_PCT", 0.02),
		DefaultTakeProfitShort: getFloat("DEFAULT_TAKE_PROFIT_SHORT_PCT", 0.015),
		DefaultTakeProfitMid:   getFloat("DEFAULT_TAKE_PROFIT_MID_PCT", 0.03),
		DefaultTakeProfitLong:  getFloat("DEFAULT_TAKE_PROFIT_LONG_PCT", 0.06),

		MetricsAddr: getString("METRICS_ADDR", ":9090"),
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
