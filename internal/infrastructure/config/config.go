package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jmanzanog/quote-resolver/internal/domain"
)

// CurrencyPair is one FROM:TO entry of FX_WARM_PAIRS.
type CurrencyPair struct {
	From string
	To   string
}

type Config struct {
	ServerPort string
	ServerHost string
	LogLevel   string

	UpstreamTimeout time.Duration

	OpenFIGIKey     string
	OpenFIGIBaseURL string

	// Empty host lists mean the client defaults.
	YahooHosts          []string
	StooqHosts          []string
	StooqFxBaseURL      string
	ExchangeRateBaseURL string
	ExchangeRateAPIKey  string

	FxCacheTTL     time.Duration
	FxMinRate      domain.Decimal
	FxMaxRate      domain.Decimal
	FxWarmPairs    []CurrencyPair
	FxWarmInterval time.Duration

	StaticDir          string
	CORSAllowedOrigins []string
}

func Load() (*Config, error) {
	port := getEnvOrDefault("SERVER_PORT", getEnvOrDefault("PORT", "3000"))
	host := getEnvOrDefault("SERVER_HOST", "0.0.0.0")
	logLevel := getEnvOrDefault("LOG_LEVEL", "info")

	timeout, err := parsePositiveDuration("UPSTREAM_TIMEOUT", "8s")
	if err != nil {
		return nil, err
	}

	cacheTTL, err := parsePositiveDuration("FX_CACHE_TTL", "30s")
	if err != nil {
		return nil, err
	}

	warmInterval, err := time.ParseDuration(getEnvOrDefault("FX_WARM_INTERVAL", "0s"))
	if err != nil {
		return nil, fmt.Errorf("invalid FX_WARM_INTERVAL: %w", err)
	}
	if warmInterval < 0 {
		return nil, fmt.Errorf("invalid FX_WARM_INTERVAL: must not be negative")
	}

	minRate, err := domain.NewDecimalFromString(getEnvOrDefault("FX_MIN_RATE", "0.5"))
	if err != nil {
		return nil, fmt.Errorf("invalid FX_MIN_RATE: %w", err)
	}
	maxRate, err := domain.NewDecimalFromString(getEnvOrDefault("FX_MAX_RATE", "2.0"))
	if err != nil {
		return nil, fmt.Errorf("invalid FX_MAX_RATE: %w", err)
	}
	if !minRate.IsFinite() || !maxRate.IsFinite() || minRate.Cmp(maxRate) >= 0 {
		return nil, fmt.Errorf("invalid FX rate bounds: FX_MIN_RATE %s must be below FX_MAX_RATE %s", minRate, maxRate)
	}

	pairs, err := parsePairs(os.Getenv("FX_WARM_PAIRS"))
	if err != nil {
		return nil, fmt.Errorf("invalid FX_WARM_PAIRS: %w", err)
	}

	return &Config{
		ServerPort:          port,
		ServerHost:          host,
		LogLevel:            logLevel,
		UpstreamTimeout:     timeout,
		OpenFIGIKey:         os.Getenv("OPENFIGI_KEY"),
		OpenFIGIBaseURL:     os.Getenv("OPENFIGI_BASE_URL"),
		YahooHosts:          splitCSV(os.Getenv("YAHOO_HOSTS")),
		StooqHosts:          splitCSV(os.Getenv("STOOQ_HOSTS")),
		StooqFxBaseURL:      os.Getenv("STOOQ_FX_BASE_URL"),
		ExchangeRateBaseURL: os.Getenv("EXCHANGERATE_BASE_URL"),
		ExchangeRateAPIKey:  os.Getenv("EXCHANGERATE_API_KEY"),
		FxCacheTTL:          cacheTTL,
		FxMinRate:           minRate,
		FxMaxRate:           maxRate,
		FxWarmPairs:         pairs,
		FxWarmInterval:      warmInterval,
		StaticDir:           os.Getenv("STATIC_DIR"),
		CORSAllowedOrigins:  splitCSV(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*")),
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parsePositiveDuration(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnvOrDefault(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parsePairs(s string) ([]CurrencyPair, error) {
	var pairs []CurrencyPair
	for _, item := range splitCSV(s) {
		from, to, ok := strings.Cut(item, ":")
		from = strings.ToUpper(strings.TrimSpace(from))
		to = strings.ToUpper(strings.TrimSpace(to))
		if !ok || from == "" || to == "" {
			return nil, fmt.Errorf("pair %q must look like FROM:TO", item)
		}
		pairs = append(pairs, CurrencyPair{From: from, To: to})
	}
	return pairs, nil
}
