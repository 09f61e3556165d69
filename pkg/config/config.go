package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application. Every environment
// variable is read here and nowhere else; components receive the values
// they need as plain parameters.
type Config struct {
	Env string // development, staging, production

	// API server
	Port string

	// Database (optional; the Postgres sink is enabled only when URL is set)
	Database DatabaseConfig

	// Directories
	CacheDir  string
	OutputDir string

	// Upstream sources
	Sources SourcesConfig

	// Vendor enrichment
	Vendor VendorConfig

	// Universe filters
	Filters FiltersConfig

	// IPO calendar
	IPO IPOConfig

	// Scheduler
	RefreshSchedule string

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// SourcesConfig holds the upstream listing and reference endpoints.
type SourcesConfig struct {
	NasdaqListedURL string
	OtherListedURL  string
	ScreenerURL     string
	SECTickersURL   string
	IPOCalendarURL  string
	UserAgent       string

	// ListingDir points at a directory holding local copies of
	// nasdaqlisted.txt and otherlisted.txt; when set, no listing
	// fetch happens over the network.
	ListingDir string

	// SymbolsFile is a caller-provided CSV with a Symbol column that
	// replaces source resolution entirely.
	SymbolsFile string

	// SECEnabled toggles the optional CIK enrichment.
	SECEnabled bool
}

// VendorConfig holds the price-history vendor knobs.
type VendorConfig struct {
	BaseURL      string
	BatchSize    int
	Pause        time.Duration
	MaxRetries   int
	ForceRecheck bool
}

// FiltersConfig holds the universe filter flags.
type FiltersConfig struct {
	ExcludeETF bool
	CommonOnly bool
}

// IPOConfig holds the IPO calendar knobs.
type IPOConfig struct {
	Enabled   bool
	StartYear int
}

// Load reads configuration from the environment (and .env when present).
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "8080"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		CacheDir:  getEnv("CACHE_DIR", "data/cache"),
		OutputDir: getEnv("OUTPUT_DIR", "data/outputs"),

		Sources: SourcesConfig{
			NasdaqListedURL: getEnv("NASDAQ_LISTED_URL", "https://www.nasdaqtrader.com/dynamic/SymbolDirectory/nasdaqlisted.txt"),
			OtherListedURL:  getEnv("OTHER_LISTED_URL", "https://www.nasdaqtrader.com/dynamic/SymbolDirectory/otherlisted.txt"),
			ScreenerURL:     getEnv("SCREENER_URL", "https://api.nasdaq.com/api/screener/stocks"),
			SECTickersURL:   getEnv("SEC_TICKERS_URL", "https://www.sec.gov/files/company_tickers.json"),
			IPOCalendarURL:  getEnv("IPO_CALENDAR_URL", "https://api.nasdaq.com/api/ipo/calendar"),
			UserAgent:       getEnv("SOURCE_USER_AGENT", "Mozilla/5.0 (compatible; ussym/1.0)"),
			ListingDir:      getEnv("LISTING_DIR", ""),
			SymbolsFile:     getEnv("SYMBOLS_FILE", ""),
			SECEnabled:      getEnvAsBool("SEC_ENABLED", true),
		},

		Vendor: VendorConfig{
			BaseURL:      getEnv("VENDOR_BASE_URL", "https://query1.finance.yahoo.com"),
			BatchSize:    getEnvAsInt("VENDOR_BATCH_SIZE", 50),
			Pause:        getEnvAsDuration("VENDOR_PAUSE", "1.5s"),
			MaxRetries:   getEnvAsInt("VENDOR_MAX_RETRIES", 3),
			ForceRecheck: getEnvAsBool("VENDOR_FORCE_RECHECK", false),
		},

		Filters: FiltersConfig{
			ExcludeETF: getEnvAsBool("EXCLUDE_ETF", false),
			CommonOnly: getEnvAsBool("COMMON_ONLY", false),
		},

		IPO: IPOConfig{
			Enabled:   getEnvAsBool("WITH_IPO", false),
			StartYear: getEnvAsInt("IPO_START_YEAR", 1998),
		},

		RefreshSchedule: getEnv("REFRESH_SCHEDULE", "0 0 6 * * *"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration consistency before any network activity.
func (c *Config) Validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}
	if c.Vendor.BatchSize < 1 {
		return fmt.Errorf("VENDOR_BATCH_SIZE must be at least 1")
	}
	if c.Vendor.MaxRetries < 0 {
		return fmt.Errorf("VENDOR_MAX_RETRIES must not be negative")
	}
	if c.Vendor.Pause < 0 {
		return fmt.Errorf("VENDOR_PAUSE must not be negative")
	}
	if c.IPO.Enabled && (c.IPO.StartYear < 1970 || c.IPO.StartYear > time.Now().Year()) {
		return fmt.Errorf("IPO_START_YEAR %d is out of range", c.IPO.StartYear)
	}
	if c.Sources.ListingDir != "" && c.Sources.SymbolsFile != "" {
		return fmt.Errorf("LISTING_DIR and SYMBOLS_FILE are mutually exclusive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// loadEnvFile tries to load .env from a few likely locations.
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}
