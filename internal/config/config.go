// Package config defines all configuration for the market maker.
// Config is loaded from a YAML file (default: configs/config.yaml), with a
// .env file loaded first via godotenv, and sensitive fields overridable via
// BTCMM_*/PROD_*/DEMO_* environment variables.
package config

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"btc-option-mm/internal/errs"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	DryRun    bool            `mapstructure:"dry_run"`
	Env       string          `mapstructure:"env"` // "prod" or "demo"; selects the credential prefix
	Venue     VenueConfig     `mapstructure:"venue"`
	SpotFeed  SpotFeedConfig  `mapstructure:"spot_feed"`
	Market    MarketConfig    `mapstructure:"market"`
	Sink      SinkConfig      `mapstructure:"sink"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// VenueConfig holds the prediction-venue REST/WS endpoints and the RSA-PSS
// signing credentials. Credentials are namespaced by environment prefix
// (PROD_/DEMO_): {API_KEY_ID, PRIVATE_KEY_PATH}.
type VenueConfig struct {
	RESTBaseURL  string `mapstructure:"rest_base_url"`
	WSURL        string `mapstructure:"ws_url"`
	APIKeyID     string `mapstructure:"-"` // populated from env, never from YAML
	PrivateKeyPath string `mapstructure:"-"`
	EnableTrading  bool   `mapstructure:"enable_trading"`
	EnableMonitor  bool   `mapstructure:"enable_monitor"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
}

// SpotFeedConfig toggles each of the four spot venues, sets their WS
// endpoints/symbols, and the shared reconnect delay and placeholder
// volatility input.
type SpotFeedConfig struct {
	EnableBinance   bool   `mapstructure:"enable_binance"`
	BinanceURL      string `mapstructure:"binance_url"`
	BinanceSymbol   string `mapstructure:"binance_symbol"`

	EnableCoinbase    bool   `mapstructure:"enable_coinbase"`
	CoinbaseURL       string `mapstructure:"coinbase_url"`
	CoinbaseProductID string `mapstructure:"coinbase_product_id"`

	EnableKraken bool   `mapstructure:"enable_kraken"`
	KrakenURL    string `mapstructure:"kraken_url"`
	KrakenPair   string `mapstructure:"kraken_pair"`

	EnableCryptoCom     bool   `mapstructure:"enable_crypto_com"`
	CryptoComURL        string `mapstructure:"crypto_com_url"`
	CryptoComInstrument string `mapstructure:"crypto_com_instrument"`

	ReconnectDelay        time.Duration `mapstructure:"reconnect_delay"`
	VolatilityPlaceholder float64       `mapstructure:"volatility_placeholder"`
}

// MarketConfig holds the market-maker parameters applied to every ticker, and
// the path to the CSV file enumerating which tickers to trade.
type MarketConfig struct {
	TickersFile           string        `mapstructure:"tickers_file"`
	MaxLossPerMarket      float64       `mapstructure:"max_loss_per_market"`
	BaseSpread            float64       `mapstructure:"base_spread"`
	MinEdgeToQuote        float64       `mapstructure:"min_edge_to_quote"`
	AggressiveTakeThreshold float64     `mapstructure:"aggressive_take_threshold"`
	InventorySkewFactor   float64       `mapstructure:"inventory_skew_factor"`
	MaxInventory          int           `mapstructure:"max_inventory"`
	MinHoursToExpiry      float64       `mapstructure:"min_hours_to_expiry"`
	Confidence            float64       `mapstructure:"confidence"`
	IsIndexNasdaq100      bool          `mapstructure:"is_index_nasdaq100"`
	MarketChargesMakerFee bool          `mapstructure:"market_charges_maker_fee"`
}

// SinkConfig is the optional external pub/sub dashboard sink.
type SinkConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	RedisURL string `mapstructure:"redis_url"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the web dashboard server.
type DashboardConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// MetricsConfig controls the Prometheus /metrics endpoint mounted on the
// dashboard server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load reads config from a YAML file, first loading a .env file (if present)
// so secrets can be supplied outside the YAML tree, then overriding
// credential fields from PROD_/DEMO_-prefixed environment variables
// according to cfg.Env.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // optional: missing .env is not an error

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("BTCMM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Env == "" {
		cfg.Env = "demo"
	}
	prefix := strings.ToUpper(cfg.Env) + "_"
	cfg.Venue.APIKeyID = os.Getenv(prefix + "API_KEY_ID")
	cfg.Venue.PrivateKeyPath = os.Getenv(prefix + "PRIVATE_KEY_PATH")

	if os.Getenv("BTCMM_DRY_RUN") == "true" || os.Getenv("BTCMM_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges. Configuration errors
// are fatal at startup per the error handling design.
func (c *Config) Validate() error {
	if c.Venue.RESTBaseURL == "" {
		return fmt.Errorf("%w: venue.rest_base_url is required", errs.ConfigFatal)
	}
	if c.Venue.WSURL == "" {
		return fmt.Errorf("%w: venue.ws_url is required", errs.ConfigFatal)
	}
	if c.Venue.APIKeyID == "" || c.Venue.PrivateKeyPath == "" {
		return fmt.Errorf("%w: venue credentials required: set %s_API_KEY_ID and %s_PRIVATE_KEY_PATH", errs.ConfigFatal, strings.ToUpper(c.Env), strings.ToUpper(c.Env))
	}
	if _, err := os.Stat(c.Venue.PrivateKeyPath); err != nil {
		return fmt.Errorf("%w: unreadable private key at %s: %v", errs.ConfigFatal, c.Venue.PrivateKeyPath, err)
	}
	if c.Market.TickersFile == "" {
		return fmt.Errorf("%w: market.tickers_file is required", errs.ConfigFatal)
	}
	if c.Market.MaxLossPerMarket <= 0 {
		return fmt.Errorf("%w: market.max_loss_per_market must be > 0", errs.ConfigFatal)
	}
	if c.Market.Confidence < 0 || c.Market.Confidence > 1 {
		return fmt.Errorf("%w: market.confidence must be in [0, 1]", errs.ConfigFatal)
	}
	if c.Market.MaxInventory <= 0 {
		return fmt.Errorf("%w: market.max_inventory must be > 0", errs.ConfigFatal)
	}
	return nil
}

// LoadTickers reads the one-column CSV file of venue market tickers
// referenced by Market.TickersFile. Blank lines and any row whose first
// field equals "ticker" (case-insensitively) are skipped.
func LoadTickers(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tickers file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var tickers []string
	for {
		record, err := r.Read()
		if err != nil {
			break
		}
		if len(record) == 0 {
			continue
		}
		ticker := strings.TrimSpace(record[0])
		if ticker == "" || strings.EqualFold(ticker, "ticker") {
			continue
		}
		tickers = append(tickers, ticker)
	}
	if len(tickers) == 0 {
		return nil, fmt.Errorf("no tickers found in %s", path)
	}
	return tickers, nil
}
