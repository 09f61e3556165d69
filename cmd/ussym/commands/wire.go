package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/wonny/ussymbols/internal/cache"
	"github.com/wonny/ussymbols/internal/enrich"
	"github.com/wonny/ussymbols/internal/external/ipocal"
	"github.com/wonny/ussymbols/internal/external/nasdaqtrader"
	"github.com/wonny/ussymbols/internal/external/screener"
	"github.com/wonny/ussymbols/internal/external/sec"
	"github.com/wonny/ussymbols/internal/external/yahoo"
	"github.com/wonny/ussymbols/internal/pipeline"
	"github.com/wonny/ussymbols/internal/store"
	"github.com/wonny/ussymbols/internal/universe"
	"github.com/wonny/ussymbols/pkg/config"
	"github.com/wonny/ussymbols/pkg/database"
	"github.com/wonny/ussymbols/pkg/httputil"
	"github.com/wonny/ussymbols/pkg/logger"
)

// Cache file names under CacheDir.
const (
	vendorCacheFile   = "earliest_vendor_dates.csv"
	universeCacheFile = "us_symbols_cache.csv"
)

// loadConfig loads config and applies global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// buildResolver wires the universe sources from config. Priority:
// symbols-file override > local listing directory > network listing files
// with the screener as fallback.
func buildResolver(cfg *config.Config, log *logger.Logger) *universe.Resolver {
	if cfg.Sources.SymbolsFile != "" {
		return universe.NewResolver(
			[]universe.Source{&universe.FileSource{Path: cfg.Sources.SymbolsFile}}, nil, log)
	}
	if cfg.Sources.ListingDir != "" {
		return universe.NewResolver(nasdaqtrader.DirSources(cfg.Sources.ListingDir), nil, log)
	}

	listingClient := httputil.New(log).
		WithUserAgent(cfg.Sources.UserAgent).
		WithRetry(2, 2*time.Second)
	nt := nasdaqtrader.NewClient(listingClient, cfg.Sources.NasdaqListedURL, cfg.Sources.OtherListedURL, log)
	fallback := screener.NewClient(listingClient, cfg.Sources.ScreenerURL, log)

	return universe.NewResolver(
		[]universe.Source{
			nasdaqtrader.ListedSource{Client: nt},
			nasdaqtrader.OtherListedSource{Client: nt},
		},
		fallback, log)
}

// buildPipeline wires a complete pipeline from config. The returned cleanup
// closes the database pool when one was opened.
func buildPipeline(cfg *config.Config, log *logger.Logger) (*pipeline.Pipeline, func(), error) {
	cleanup := func() {}

	resolver := buildResolver(cfg, log)

	// The enrichment engine owns vendor retries, so its HTTP client must
	// not retry underneath it.
	vendorHTTP := httputil.New(log).
		WithUserAgent(cfg.Sources.UserAgent).
		DisableRetry()
	vendor := yahoo.NewClient(vendorHTTP, cfg.Vendor.BaseURL, log)
	engine := enrich.New(vendor, enrich.Config{
		BatchSize:    cfg.Vendor.BatchSize,
		Pause:        cfg.Vendor.Pause,
		MaxRetries:   cfg.Vendor.MaxRetries,
		ForceRecheck: cfg.Vendor.ForceRecheck,
	}, log)

	refClient := httputil.New(log).WithUserAgent(cfg.Sources.UserAgent)

	var cikFetcher pipeline.CIKFetcher
	if cfg.Sources.SECEnabled {
		cikFetcher = sec.NewClient(refClient, cfg.Sources.SECTickersURL, log)
	}

	var ipoFetcher pipeline.IPOFetcher
	if cfg.IPO.Enabled {
		ipoFetcher = ipocal.NewClient(refClient, cfg.Sources.IPOCalendarURL, cfg.CacheDir, log)
	}

	var sink pipeline.Sink
	if cfg.Database.URL != "" {
		db, err := database.New(cfg)
		if err != nil {
			return nil, cleanup, fmt.Errorf("connect to database: %w", err)
		}
		cleanup = db.Close

		repo := store.NewRepository(db.Pool)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := repo.EnsureSchema(ctx); err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("ensure schema: %w", err)
		}
		sink = repo
		log.Info("Connected to database")
	}

	p := pipeline.New(
		resolver, engine, cikFetcher, ipoFetcher, sink,
		cache.NewVendorDateStore(filepath.Join(cfg.CacheDir, vendorCacheFile), log),
		cache.NewUniverseStore(filepath.Join(cfg.CacheDir, universeCacheFile), log),
		pipeline.Options{
			Filters: universe.Filters{
				ExcludeETF: cfg.Filters.ExcludeETF,
				CommonOnly: cfg.Filters.CommonOnly,
			},
			ForceRecheck: cfg.Vendor.ForceRecheck,
			IPOStartYear: cfg.IPO.StartYear,
			OutputDir:    cfg.OutputDir,
		},
		log,
	)

	return p, cleanup, nil
}
