// Package pipeline coordinates one full resolve → enrich → merge run and
// owns the persisted artifacts.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/ussymbols/internal/cache"
	"github.com/wonny/ussymbols/internal/contracts"
	"github.com/wonny/ussymbols/internal/enrich"
	"github.com/wonny/ussymbols/internal/merge"
	"github.com/wonny/ussymbols/internal/universe"
	"github.com/wonny/ussymbols/pkg/logger"
)

// Resolver produces the current universe.
type Resolver interface {
	Resolve(ctx context.Context, filters universe.Filters) (*universe.Result, error)
}

// Enricher resolves earliest vendor dates against a cache.
type Enricher interface {
	Enrich(ctx context.Context, symbols []string, cached map[string]contracts.VendorDate) (*enrich.Result, error)
}

// CIKFetcher maps symbols to SEC CIK identifiers.
type CIKFetcher interface {
	FetchCIKMap(ctx context.Context) (map[string]string, error)
}

// IPOFetcher delivers priced IPO records from startYear to now.
type IPOFetcher interface {
	FetchRange(ctx context.Context, startYear int) ([]contracts.IPORecord, error)
}

// Sink receives the merged table after a run. Optional.
type Sink interface {
	UpsertMerged(ctx context.Context, records []contracts.MergedRecord) error
}

// Options are the per-run knobs.
type Options struct {
	Filters      universe.Filters
	ForceRecheck bool
	IPOStartYear int
	OutputDir    string
}

// RunReport summarizes one run for the caller and the refresh API.
type RunReport struct {
	StartedAt       time.Time      `json:"started_at"`
	Duration        time.Duration  `json:"duration"`
	Resolved        int            `json:"resolved"`
	Excluded        int            `json:"excluded"`
	SourceCounts    map[string]int `json:"source_counts"`
	CacheHits       int            `json:"cache_hits"`
	Fetched         int            `json:"fetched"`
	Unresolved      []string       `json:"unresolved,omitempty"`
	IPORecords      int            `json:"ipo_records"`
	Merged          int            `json:"merged"`
	CompletedStages []string       `json:"completed_stages"`
}

// Pipeline wires the components of one run together. CIK, IPO and sink are
// optional; a nil field skips that stage.
type Pipeline struct {
	resolver      Resolver
	enricher      Enricher
	cikFetcher    CIKFetcher
	ipoFetcher    IPOFetcher
	sink          Sink
	vendorStore   *cache.Store[contracts.VendorDate]
	universeStore *cache.Store[contracts.MergedRecord]
	opts          Options
	logger        *logger.Logger
}

// New creates a pipeline.
func New(
	resolver Resolver,
	enricher Enricher,
	cikFetcher CIKFetcher,
	ipoFetcher IPOFetcher,
	sink Sink,
	vendorStore *cache.Store[contracts.VendorDate],
	universeStore *cache.Store[contracts.MergedRecord],
	opts Options,
	log *logger.Logger,
) *Pipeline {
	return &Pipeline{
		resolver:      resolver,
		enricher:      enricher,
		cikFetcher:    cikFetcher,
		ipoFetcher:    ipoFetcher,
		sink:          sink,
		vendorStore:   vendorStore,
		universeStore: universeStore,
		opts:          opts,
		logger:        log.WithField("module", "pipeline"),
	}
}

// Run executes one complete run. Universe resolution and enrichment are
// required stages; CIK lookup and the IPO calendar are tolerated failures
// (the merged table is still produced without them).
func (p *Pipeline) Run(ctx context.Context) (*RunReport, []contracts.MergedRecord, error) {
	report := &RunReport{StartedAt: time.Now().UTC()}
	defer func() { report.Duration = time.Since(report.StartedAt) }()

	p.logger.WithFields(map[string]interface{}{
		"force_recheck":  p.opts.ForceRecheck,
		"exclude_etf":    p.opts.Filters.ExcludeETF,
		"common_only":    p.opts.Filters.CommonOnly,
		"ipo_start_year": p.opts.IPOStartYear,
	}).Info("Starting run")

	// Stage 1: universe resolution.
	resolved, err := p.resolver.Resolve(ctx, p.opts.Filters)
	if err != nil {
		return report, nil, fmt.Errorf("resolve universe: %w", err)
	}
	report.Resolved = len(resolved.Records)
	report.Excluded = len(resolved.Excluded)
	report.SourceCounts = resolved.SourceCounts
	report.CompletedStages = append(report.CompletedStages, "universe")

	// Stage 2: enrichment against the vendor-date cache, seeded from the
	// long-lived universe cache so dates survive a deleted vendor cache.
	universeCache := p.universeStore.Load()
	vendorCache := p.vendorStore.Load()
	if !p.opts.ForceRecheck {
		p.seedVendorCache(vendorCache, universeCache)
	}

	symbols := make([]string, len(resolved.Records))
	for i, rec := range resolved.Records {
		symbols[i] = rec.Symbol
	}
	enriched, err := p.enricher.Enrich(ctx, symbols, vendorCache)
	if err != nil {
		return report, nil, fmt.Errorf("enrich: %w", err)
	}
	// Batch results go through the store's merge rule so a recorded date is
	// never displaced by a later absent (an exhausted batch on a
	// force-recheck run would otherwise blank it).
	for _, rec := range enriched.Cache {
		p.vendorStore.Upsert(vendorCache, rec)
	}
	if err := p.vendorStore.Save(vendorCache); err != nil {
		return report, nil, fmt.Errorf("save vendor cache: %w", err)
	}
	report.CacheHits = enriched.CacheHits
	report.Fetched = enriched.Fetched
	report.Unresolved = enriched.Unresolved
	report.CompletedStages = append(report.CompletedStages, "enrich")

	// Stage 3: optional augmentations.
	var cikBySymbol map[string]string
	if p.cikFetcher != nil {
		cikBySymbol, err = p.cikFetcher.FetchCIKMap(ctx)
		if err != nil {
			p.logger.WithError(err).Warn("CIK lookup failed, continuing without identifiers")
			cikBySymbol = nil
		} else {
			report.CompletedStages = append(report.CompletedStages, "cik")
		}
	}

	var ipoRecords []contracts.IPORecord
	if p.ipoFetcher != nil {
		ipoRecords, err = p.ipoFetcher.FetchRange(ctx, p.opts.IPOStartYear)
		if err != nil {
			p.logger.WithError(err).Warn("IPO calendar fetch failed, continuing without IPO dates")
			ipoRecords = nil
		} else {
			report.IPORecords = len(ipoRecords)
			report.CompletedStages = append(report.CompletedStages, "ipo")
		}
	}

	// Stage 4: merge, against the merged vendor table rather than the raw
	// batch results.
	merged := merge.Merge(resolved.Records, vendorCache, ipoRecords, cikBySymbol)
	report.Merged = len(merged)
	report.CompletedStages = append(report.CompletedStages, "merge")

	// Stage 5: persisted artifacts.
	if err := p.writeOutputs(resolved.Records, vendorCache, ipoRecords, merged); err != nil {
		return report, nil, err
	}
	report.CompletedStages = append(report.CompletedStages, "output")

	// Stage 6: universe cache upsert (grows monotonically across runs).
	for k := range universeCache {
		rec := universeCache[k]
		rec.ListedCurrently = false
		universeCache[k] = rec
	}
	for _, rec := range merged {
		p.universeStore.Upsert(universeCache, rec)
	}
	if err := p.universeStore.Save(universeCache); err != nil {
		return report, nil, fmt.Errorf("save universe cache: %w", err)
	}
	report.CompletedStages = append(report.CompletedStages, "universe-cache")

	// Stage 7: optional database sink.
	if p.sink != nil {
		if err := p.sink.UpsertMerged(ctx, merged); err != nil {
			p.logger.WithError(err).Warn("Database sink failed, CSV artifacts remain authoritative")
		} else {
			report.CompletedStages = append(report.CompletedStages, "sink")
		}
	}

	p.logger.WithFields(map[string]interface{}{
		"resolved":   report.Resolved,
		"fetched":    report.Fetched,
		"cache_hits": report.CacheHits,
		"unresolved": len(report.Unresolved),
		"merged":     report.Merged,
		"duration":   time.Since(report.StartedAt).Seconds(),
	}).Info("Run completed")

	return report, merged, nil
}

// seedVendorCache copies dates remembered in the universe cache into the
// vendor cache for symbols the vendor cache does not know yet. On conflict
// the earlier date wins. Seeded entries count as cached, so a deleted
// vendor cache does not trigger a full re-fetch.
func (p *Pipeline) seedVendorCache(vendorCache map[string]contracts.VendorDate, universeCache map[string]contracts.MergedRecord) {
	seeded := 0
	for sym, rec := range universeCache {
		if rec.EarliestVendorDate == nil {
			continue
		}
		if existing, ok := vendorCache[sym]; ok {
			existing.EarliestDate = contracts.MinDate(existing.EarliestDate, rec.EarliestVendorDate)
			vendorCache[sym] = existing
			continue
		}
		vendorCache[sym] = contracts.VendorDate{Symbol: sym, EarliestDate: rec.EarliestVendorDate}
		seeded++
	}
	if seeded > 0 {
		p.logger.WithField("seeded", seeded).Info("Seeded vendor cache from universe cache")
	}
}
