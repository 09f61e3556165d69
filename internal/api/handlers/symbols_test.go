package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/ussymbols/internal/contracts"
	"github.com/wonny/ussymbols/internal/pipeline"
	"github.com/wonny/ussymbols/pkg/logger"
)

type fakeRunner struct {
	records []contracts.MergedRecord
	err     error
	runs    int
}

func (f *fakeRunner) Run(ctx context.Context) (*pipeline.RunReport, []contracts.MergedRecord, error) {
	f.runs++
	if f.err != nil {
		return nil, nil, f.err
	}
	return &pipeline.RunReport{Merged: len(f.records)}, f.records, nil
}

func sampleTable() []contracts.MergedRecord {
	d := time.Date(2010, 1, 4, 0, 0, 0, 0, time.UTC)
	return []contracts.MergedRecord{
		{Symbol: "AAA", SecurityName: "Acme Corp", Exchange: contracts.ExchangeNASDAQ, EarliestVendorDate: &d, ListedCurrently: true},
		{Symbol: "BBB", SecurityName: "Beta Inc", Exchange: contracts.ExchangeNYSE, ListedCurrently: true},
		{Symbol: "GONE", SecurityName: "Gone Holdings", ListedCurrently: false},
	}
}

func newTestRouter(h *SymbolsHandler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/symbols", h.ListSymbols).Methods("GET")
	r.HandleFunc("/api/symbols/{symbol}", h.GetSymbol).Methods("GET")
	r.HandleFunc("/api/refresh", h.Refresh).Methods("POST")
	return r
}

func TestListSymbols(t *testing.T) {
	h := NewSymbolsHandler(&fakeRunner{}, sampleTable(), logger.Nop())
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, httptest.NewRequest("GET", "/api/symbols", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 3, resp.Count)
}

func TestListSymbolsFilters(t *testing.T) {
	h := NewSymbolsHandler(&fakeRunner{}, sampleTable(), logger.Nop())

	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, httptest.NewRequest("GET", "/api/symbols?exchange=NASDAQ", nil))
	var resp ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "AAA", resp.Data[0].Symbol)

	rec = httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, httptest.NewRequest("GET", "/api/symbols?listed=true", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
}

func TestGetSymbol(t *testing.T) {
	h := NewSymbolsHandler(&fakeRunner{}, sampleTable(), logger.Nop())

	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, httptest.NewRequest("GET", "/api/symbols/aaa", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, httptest.NewRequest("GET", "/api/symbols/NOPE", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefreshSwapsSnapshot(t *testing.T) {
	runner := &fakeRunner{records: []contracts.MergedRecord{
		{Symbol: "NEW", SecurityName: "New Co", Exchange: contracts.ExchangeNYSE, ListedCurrently: true},
	}}
	h := NewSymbolsHandler(runner, sampleTable(), logger.Nop())
	router := newTestRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/refresh", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, runner.runs)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/symbols", nil))
	var resp ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "NEW", resp.Data[0].Symbol)
}

func TestRefreshFailureKeepsSnapshot(t *testing.T) {
	h := NewSymbolsHandler(&fakeRunner{err: errors.New("sources down")}, sampleTable(), logger.Nop())
	router := newTestRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/refresh", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/symbols", nil))
	var resp ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Count)
}
