package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"btc-option-mm/internal/errs"
)

func validConfig() *Config {
	return &Config{
		Env: "demo",
		Venue: VenueConfig{
			RESTBaseURL:    "https://demo-api.kalshi.co/trade-api/v2",
			WSURL:          "wss://demo-api.kalshi.co/trade-api/ws/v2",
			APIKeyID:       "key-id",
			PrivateKeyPath: "",
		},
		Market: MarketConfig{
			TickersFile:      "tickers.csv",
			MaxLossPerMarket: 50.0,
			Confidence:       0.7,
			MaxInventory:     500,
		},
	}
}

func TestValidateRejectsMissingVenueURLs(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Venue.RESTBaseURL = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing venue.rest_base_url, got nil")
	}
}

func TestValidateErrorIsConfigFatal(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Venue.RESTBaseURL = ""

	err := cfg.Validate()
	if !errors.Is(err, errs.ConfigFatal) {
		t.Fatalf("Validate() error = %v, want errors.Is(err, errs.ConfigFatal)", err)
	}
}

func TestValidateRejectsMissingCredentials(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Venue.APIKeyID = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing venue credentials, got nil")
	}
}

func TestValidateRejectsUnreadablePrivateKey(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Venue.PrivateKeyPath = filepath.Join(t.TempDir(), "does-not-exist.pem")

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unreadable private key, got nil")
	}
}

func TestValidateRejectsOutOfRangeConfidence(t *testing.T) {
	t.Parallel()

	tests := []float64{-0.1, 1.1}
	for _, confidence := range tests {
		cfg := validConfig()
		cfg.Venue.PrivateKeyPath = writeTempKeyFile(t)
		cfg.Market.Confidence = confidence

		if err := cfg.Validate(); err == nil {
			t.Errorf("expected error for confidence %v, got nil", confidence)
		}
	}
}

func TestValidateRejectsNonPositiveMaxInventory(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Venue.PrivateKeyPath = writeTempKeyFile(t)
	cfg.Market.MaxInventory = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for max_inventory = 0, got nil")
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Venue.PrivateKeyPath = writeTempKeyFile(t)

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestLoadTickersSkipsBlankLinesAndHeader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tickers.csv")
	content := "ticker\n\nKXBTC-25DEC31-T1200-B100000\n\nKXBTC-25DEC31-T1800-B102500\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write tickers file: %v", err)
	}

	tickers, err := LoadTickers(path)
	if err != nil {
		t.Fatalf("LoadTickers: %v", err)
	}

	want := []string{"KXBTC-25DEC31-T1200-B100000", "KXBTC-25DEC31-T1800-B102500"}
	if len(tickers) != len(want) {
		t.Fatalf("tickers = %v, want %v", tickers, want)
	}
	for i, w := range want {
		if tickers[i] != w {
			t.Errorf("tickers[%d] = %q, want %q", i, tickers[i], w)
		}
	}
}

func TestLoadTickersRejectsEmptyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.csv")
	if err := os.WriteFile(path, []byte("ticker\n"), 0o644); err != nil {
		t.Fatalf("write tickers file: %v", err)
	}

	if _, err := LoadTickers(path); err == nil {
		t.Fatal("expected error for file with no tickers, got nil")
	}
}

func writeTempKeyFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "key.pem")
	if err := os.WriteFile(path, []byte("placeholder"), 0o600); err != nil {
		t.Fatalf("write temp key file: %v", err)
	}
	return path
}
