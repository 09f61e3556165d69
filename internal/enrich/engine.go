// Package enrich resolves earliest vendor dates for the universe in
// sequential, rate-limited batches, against a resumable cache.
package enrich

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/ussymbols/internal/contracts"
	"github.com/wonny/ussymbols/internal/normalize"
	"github.com/wonny/ussymbols/pkg/logger"
)

// VendorClient resolves earliest data dates for a batch of vendor-form
// symbols. The returned map must carry an entry per requested symbol,
// nil meaning "queried, no data". Errors apply to the whole batch.
type VendorClient interface {
	EarliestDates(ctx context.Context, vendorSymbols []string) (map[string]*time.Time, error)
}

// Config holds the enrichment knobs, passed in from the CLI layer.
type Config struct {
	BatchSize    int
	Pause        time.Duration
	MaxRetries   int
	ForceRecheck bool
}

// Result is the outcome of one enrichment pass.
type Result struct {
	// Cache is the updated vendor-date table, cached entries included.
	Cache map[string]contracts.VendorDate
	// Unresolved lists symbols whose batches exhausted their retries.
	Unresolved []string
	// CacheHits and Fetched are reported for diagnostics.
	CacheHits int
	Fetched   int
}

// Engine runs the batch enrichment loop.
type Engine struct {
	client  VendorClient
	config  Config
	logger  *logger.Logger
	limiter *rate.Limiter

	// sleep is the single suspension point for backoff; injectable so
	// tests observe delays instead of waiting them out.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an enrichment engine.
func New(client VendorClient, cfg Config, log *logger.Logger) *Engine {
	e := &Engine{
		client: client,
		config: cfg,
		logger: log.WithField("module", "enrich"),
		sleep:  sleepCtx,
	}
	if cfg.Pause > 0 {
		// Steady-state pacing between successful batches. The initial
		// token is drained so the pause applies from the first batch
		// boundary on, not just the second.
		e.limiter = rate.NewLimiter(rate.Every(cfg.Pause), 1)
		e.limiter.Allow()
	}
	return e
}

// Enrich partitions symbols against the cache, fetches the outstanding
// subset batch by batch, and returns the merged cache plus the unresolved
// set. One batch exhausting its retries never aborts the run; its symbols
// are recorded absent and reported unresolved.
func (e *Engine) Enrich(ctx context.Context, symbols []string, cached map[string]contracts.VendorDate) (*Result, error) {
	result := &Result{Cache: make(map[string]contracts.VendorDate, len(cached)+len(symbols))}
	for k, v := range cached {
		result.Cache[k] = v
	}

	var toFetch []string
	for _, sym := range symbols {
		if _, ok := cached[sym]; ok && !e.config.ForceRecheck {
			result.CacheHits++
			continue
		}
		toFetch = append(toFetch, sym)
	}

	e.logger.WithFields(map[string]interface{}{
		"universe":   len(symbols),
		"cache_hits": result.CacheHits,
		"to_fetch":   len(toFetch),
	}).Info("Starting enrichment")

	for start := 0; start < len(toFetch); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(toFetch) {
			end = len(toFetch)
		}
		batch := toFetch[start:end]

		if err := e.enrichBatch(ctx, batch, result); err != nil {
			// Only context failure propagates; batch failures are
			// downgraded inside enrichBatch.
			return nil, err
		}

		if e.limiter != nil && end < len(toFetch) {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
	}

	e.logger.WithFields(map[string]interface{}{
		"fetched":    result.Fetched,
		"unresolved": len(result.Unresolved),
	}).Info("Enrichment complete")

	return result, nil
}

// enrichBatch queries the vendor for one batch with retry on failure.
// Transport errors and rate-limit signals are handled identically: back
// off and retry, then downgrade to absent + unresolved.
func (e *Engine) enrichBatch(ctx context.Context, batch []string, result *Result) error {
	vendorSyms := make([]string, len(batch))
	bySym := make(map[string]string, len(batch))
	for i, sym := range batch {
		vendorSyms[i] = normalize.ToVendor(sym)
		bySym[sym] = vendorSyms[i]
	}

	for attempt := 0; ; attempt++ {
		dates, err := e.client.EarliestDates(ctx, vendorSyms)
		if err == nil {
			for _, sym := range batch {
				result.Cache[sym] = contracts.VendorDate{
					Symbol:       sym,
					EarliestDate: dates[bySym[sym]],
				}
				result.Fetched++
			}
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if attempt >= e.config.MaxRetries {
			e.logger.WithError(err).WithFields(map[string]interface{}{
				"batch_size": len(batch),
				"attempts":   attempt + 1,
			}).Warn("Batch exhausted retries, marking unresolved")

			for _, sym := range batch {
				result.Cache[sym] = contracts.VendorDate{Symbol: sym}
				result.Unresolved = append(result.Unresolved, sym)
			}
			return nil
		}

		delay := Backoff(attempt, e.config.Pause)
		e.logger.WithFields(map[string]interface{}{
			"attempt": attempt + 1,
			"delay":   delay,
		}).Warn("Vendor batch failed, backing off")

		if err := e.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
