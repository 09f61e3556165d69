package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/ussymbols/internal/cache"
	"github.com/wonny/ussymbols/internal/contracts"
	"github.com/wonny/ussymbols/internal/enrich"
	"github.com/wonny/ussymbols/internal/universe"
	"github.com/wonny/ussymbols/pkg/logger"
)

type fakeResolver struct {
	records []contracts.SymbolRecord
	err     error
}

func (f *fakeResolver) Resolve(ctx context.Context, filters universe.Filters) (*universe.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &universe.Result{
		Records:      f.records,
		SourceCounts: map[string]int{"nasdaqlisted": len(f.records)},
		Excluded:     map[string]string{},
	}, nil
}

// fakeVendor answers per-symbol from a fixed table; symbols not in the
// table resolve as checked-absent.
type fakeVendor struct {
	dates   map[string]time.Time
	queried [][]string
}

func (f *fakeVendor) EarliestDates(ctx context.Context, syms []string) (map[string]*time.Time, error) {
	cp := make([]string, len(syms))
	copy(cp, syms)
	f.queried = append(f.queried, cp)

	out := make(map[string]*time.Time, len(syms))
	for _, s := range syms {
		if d, ok := f.dates[s]; ok {
			dd := d
			out[s] = &dd
		} else {
			out[s] = nil
		}
	}
	return out, nil
}

type fakeCIK struct {
	m   map[string]string
	err error
}

func (f *fakeCIK) FetchCIKMap(ctx context.Context) (map[string]string, error) { return f.m, f.err }

type fakeIPO struct {
	records []contracts.IPORecord
	err     error
}

func (f *fakeIPO) FetchRange(ctx context.Context, startYear int) ([]contracts.IPORecord, error) {
	return f.records, f.err
}

type fakeSink struct {
	got []contracts.MergedRecord
	err error
}

func (f *fakeSink) UpsertMerged(ctx context.Context, records []contracts.MergedRecord) error {
	f.got = records
	return f.err
}

func newTestPipeline(t *testing.T, resolver Resolver, vendor enrich.VendorClient, cik CIKFetcher, ipo IPOFetcher, sink Sink, force bool) (*Pipeline, string) {
	t.Helper()
	dir := t.TempDir()
	log := logger.Nop()
	eng := enrich.New(vendor, enrich.Config{BatchSize: 100, ForceRecheck: force}, log)
	p := New(
		resolver, eng, cik, ipo, sink,
		cache.NewVendorDateStore(filepath.Join(dir, "earliest_vendor_dates.csv"), log),
		cache.NewUniverseStore(filepath.Join(dir, "us_symbols_cache.csv"), log),
		Options{IPOStartYear: 2020, OutputDir: dir, ForceRecheck: force},
		log,
	)
	return p, dir
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestRunEndToEnd(t *testing.T) {
	resolver := &fakeResolver{records: []contracts.SymbolRecord{
		{Symbol: "AAA", SecurityName: "Acme Corp", Exchange: contracts.ExchangeNASDAQ},
		{Symbol: "BBB", SecurityName: "Beta Inc", Exchange: contracts.ExchangeNYSE},
	}}
	vendor := &fakeVendor{dates: map[string]time.Time{
		"AAA": time.Date(2010, 1, 4, 0, 0, 0, 0, time.UTC),
	}}
	sink := &fakeSink{}
	p, dir := newTestPipeline(t, resolver, vendor,
		&fakeCIK{m: map[string]string{"AAA": "0001111111"}},
		&fakeIPO{}, sink, false)

	report, merged, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, merged, 2)
	assert.Equal(t, "AAA", merged[0].Symbol)
	require.NotNil(t, merged[0].EarliestVendorDate)
	assert.Equal(t, "2010-01-04", contracts.FormatDate(merged[0].EarliestVendorDate))
	assert.True(t, merged[0].ListedCurrently)
	require.NotNil(t, merged[0].CIK)

	assert.Equal(t, "BBB", merged[1].Symbol)
	assert.Nil(t, merged[1].EarliestVendorDate)
	assert.True(t, merged[1].ListedCurrently)
	assert.Nil(t, merged[1].CIK)

	assert.Equal(t, 2, report.Resolved)
	assert.Equal(t, 2, report.Fetched)
	assert.Empty(t, report.Unresolved)
	assert.Contains(t, report.CompletedStages, "merge")

	// Persisted artifacts.
	mergedRows := readCSV(t, filepath.Join(dir, "us_symbols_merged.csv"))
	require.Len(t, mergedRows, 3)
	assert.Equal(t, []string{"Symbol", "SecurityName", "Exchange", "CIK", "EarliestVendorDate", "IPODate", "ListedCurrently"}, mergedRows[0])
	assert.Equal(t, []string{"AAA", "Acme Corp", "NASDAQ", "0001111111", "2010-01-04", "", "true"}, mergedRows[1])
	assert.Equal(t, []string{"BBB", "Beta Inc", "NYSE", "", "", "", "true"}, mergedRows[2])

	missingRows := readCSV(t, filepath.Join(dir, "earliest_vendor_dates_missing.csv"))
	require.Len(t, missingRows, 2)
	assert.Equal(t, "BBB", missingRows[1][0])

	assert.Len(t, sink.got, 2)
}

func TestRunSecondRunHitsCache(t *testing.T) {
	resolver := &fakeResolver{records: []contracts.SymbolRecord{
		{Symbol: "AAA", SecurityName: "Acme Corp", Exchange: contracts.ExchangeNASDAQ},
	}}
	vendor := &fakeVendor{dates: map[string]time.Time{
		"AAA": time.Date(2010, 1, 4, 0, 0, 0, 0, time.UTC),
	}}
	p, dir := newTestPipeline(t, resolver, vendor, nil, nil, nil, false)

	_, _, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, vendor.queried, 1)

	// Second pipeline over the same directory: nothing left to fetch.
	log := logger.Nop()
	eng := enrich.New(vendor, enrich.Config{BatchSize: 100}, log)
	p2 := New(resolver, eng, nil, nil, nil,
		cache.NewVendorDateStore(filepath.Join(dir, "earliest_vendor_dates.csv"), log),
		cache.NewUniverseStore(filepath.Join(dir, "us_symbols_cache.csv"), log),
		Options{OutputDir: dir}, log)

	report, _, err := p2.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.CacheHits)
	assert.Equal(t, 0, report.Fetched)
	assert.Len(t, vendor.queried, 1)
}

func TestRunSeedsVendorCacheFromUniverseCache(t *testing.T) {
	resolver := &fakeResolver{records: []contracts.SymbolRecord{
		{Symbol: "AAA", SecurityName: "Acme Corp", Exchange: contracts.ExchangeNASDAQ},
	}}
	vendor := &fakeVendor{dates: map[string]time.Time{
		"AAA": time.Date(2015, 7, 1, 0, 0, 0, 0, time.UTC),
	}}
	p, dir := newTestPipeline(t, resolver, vendor, nil, nil, nil, false)

	// A prior run left the date only in the universe cache; the vendor
	// cache file is gone.
	old := time.Date(2009, 3, 2, 0, 0, 0, 0, time.UTC)
	log := logger.Nop()
	uniStore := cache.NewUniverseStore(filepath.Join(dir, "us_symbols_cache.csv"), log)
	require.NoError(t, uniStore.Save(map[string]contracts.MergedRecord{
		"AAA": {Symbol: "AAA", SecurityName: "Acme Corp", Exchange: contracts.ExchangeNASDAQ, EarliestVendorDate: &old, ListedCurrently: true},
	}))

	report, merged, err := p.Run(context.Background())
	require.NoError(t, err)

	// Seeding made the symbol a cache hit, so the vendor was never queried
	// and the remembered date survives.
	assert.Empty(t, vendor.queried)
	assert.Equal(t, 1, report.CacheHits)
	require.Len(t, merged, 1)
	assert.Equal(t, "2009-03-02", contracts.FormatDate(merged[0].EarliestVendorDate))
}

func TestRunForceRecheckSkipsSeeding(t *testing.T) {
	resolver := &fakeResolver{records: []contracts.SymbolRecord{
		{Symbol: "AAA", SecurityName: "Acme Corp", Exchange: contracts.ExchangeNASDAQ},
	}}
	vendor := &fakeVendor{dates: map[string]time.Time{
		"AAA": time.Date(2015, 7, 1, 0, 0, 0, 0, time.UTC),
	}}
	p, dir := newTestPipeline(t, resolver, vendor, nil, nil, nil, true)

	old := time.Date(2009, 3, 2, 0, 0, 0, 0, time.UTC)
	log := logger.Nop()
	uniStore := cache.NewUniverseStore(filepath.Join(dir, "us_symbols_cache.csv"), log)
	require.NoError(t, uniStore.Save(map[string]contracts.MergedRecord{
		"AAA": {Symbol: "AAA", EarliestVendorDate: &old, ListedCurrently: true},
	}))

	_, merged, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, vendor.queried, 1)
	require.Len(t, merged, 1)
	assert.Equal(t, "2015-07-01", contracts.FormatDate(merged[0].EarliestVendorDate))
}

func TestRunDelistedSymbolPersistsInUniverseCache(t *testing.T) {
	vendor := &fakeVendor{dates: map[string]time.Time{}}
	resolver := &fakeResolver{records: []contracts.SymbolRecord{
		{Symbol: "AAA", SecurityName: "Acme Corp", Exchange: contracts.ExchangeNASDAQ},
		{Symbol: "OLD", SecurityName: "Old Co", Exchange: contracts.ExchangeNYSE},
	}}
	p, dir := newTestPipeline(t, resolver, vendor, nil, nil, nil, false)
	_, _, err := p.Run(context.Background())
	require.NoError(t, err)

	// OLD drops out of the raw listings on the next run.
	resolver.records = resolver.records[:1]
	log := logger.Nop()
	eng := enrich.New(vendor, enrich.Config{BatchSize: 100}, log)
	p2 := New(resolver, eng, nil, nil, nil,
		cache.NewVendorDateStore(filepath.Join(dir, "earliest_vendor_dates.csv"), log),
		cache.NewUniverseStore(filepath.Join(dir, "us_symbols_cache.csv"), log),
		Options{OutputDir: dir}, log)
	_, _, err = p2.Run(context.Background())
	require.NoError(t, err)

	table := cache.NewUniverseStore(filepath.Join(dir, "us_symbols_cache.csv"), log).Load()
	require.Contains(t, table, "OLD")
	assert.False(t, table["OLD"].ListedCurrently)
	assert.Equal(t, "Old Co", table["OLD"].SecurityName)
	assert.True(t, table["AAA"].ListedCurrently)
}

// brokenVendor fails every batch, driving symbols into the unresolved set.
type brokenVendor struct{}

func (brokenVendor) EarliestDates(ctx context.Context, syms []string) (map[string]*time.Time, error) {
	return nil, errors.New("throttled")
}

func TestRunForceRecheckExhaustedBatchKeepsRecordedDate(t *testing.T) {
	resolver := &fakeResolver{records: []contracts.SymbolRecord{
		{Symbol: "AAA", SecurityName: "Acme Corp", Exchange: contracts.ExchangeNASDAQ},
	}}
	p, dir := newTestPipeline(t, resolver, brokenVendor{}, nil, nil, nil, true)

	// A prior run recorded a date in the vendor cache.
	old := time.Date(2008, 9, 15, 0, 0, 0, 0, time.UTC)
	log := logger.Nop()
	vendorStore := cache.NewVendorDateStore(filepath.Join(dir, "earliest_vendor_dates.csv"), log)
	require.NoError(t, vendorStore.Save(map[string]contracts.VendorDate{
		"AAA": {Symbol: "AAA", EarliestDate: &old},
	}))

	report, merged, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA"}, report.Unresolved)

	// The exhausted re-check must not blank the recorded date, on disk or
	// in the merged output.
	require.Len(t, merged, 1)
	assert.Equal(t, "2008-09-15", contracts.FormatDate(merged[0].EarliestVendorDate))

	saved := cache.NewVendorDateStore(filepath.Join(dir, "earliest_vendor_dates.csv"), log).Load()
	require.Contains(t, saved, "AAA")
	assert.Equal(t, "2008-09-15", contracts.FormatDate(saved["AAA"].EarliestDate))
}

func TestRunToleratesOptionalStageFailures(t *testing.T) {
	resolver := &fakeResolver{records: []contracts.SymbolRecord{
		{Symbol: "AAA", SecurityName: "Acme Corp", Exchange: contracts.ExchangeNASDAQ},
	}}
	vendor := &fakeVendor{dates: map[string]time.Time{}}
	p, _ := newTestPipeline(t, resolver, vendor,
		&fakeCIK{err: errors.New("sec down")},
		&fakeIPO{err: errors.New("calendar down")},
		&fakeSink{err: errors.New("db down")},
		false)

	report, merged, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.NotContains(t, report.CompletedStages, "cik")
	assert.NotContains(t, report.CompletedStages, "ipo")
	assert.NotContains(t, report.CompletedStages, "sink")
	assert.Contains(t, report.CompletedStages, "merge")
}

func TestRunFailsWhenUniverseUnavailable(t *testing.T) {
	p, _ := newTestPipeline(t, &fakeResolver{err: errors.New("all sources down")},
		&fakeVendor{}, nil, nil, nil, false)

	_, _, err := p.Run(context.Background())
	assert.Error(t, err)
}

func TestRunIPOOnlySymbolInOutputs(t *testing.T) {
	resolver := &fakeResolver{records: []contracts.SymbolRecord{
		{Symbol: "AAA", SecurityName: "Acme Corp", Exchange: contracts.ExchangeNASDAQ},
	}}
	vendor := &fakeVendor{dates: map[string]time.Time{}}
	ipo := &fakeIPO{records: []contracts.IPORecord{
		{Symbol: "GONE", IPODate: time.Date(2021, 4, 15, 0, 0, 0, 0, time.UTC), Company: "Gone Holdings"},
	}}
	p, dir := newTestPipeline(t, resolver, vendor, nil, ipo, nil, false)

	_, merged, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, merged, 2)
	assert.Equal(t, "GONE", merged[1].Symbol)
	assert.False(t, merged[1].ListedCurrently)

	ipoRows := readCSV(t, filepath.Join(dir, "ipo_calendar.csv"))
	require.Len(t, ipoRows, 2)
	assert.Equal(t, []string{"GONE", "2021-04-15", "Gone Holdings"}, ipoRows[1])
}
