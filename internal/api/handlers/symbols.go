package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"

	"github.com/wonny/ussymbols/internal/contracts"
	"github.com/wonny/ussymbols/internal/pipeline"
	"github.com/wonny/ussymbols/pkg/logger"
)

// Runner executes one pipeline run and returns the fresh merged table.
type Runner interface {
	Run(ctx context.Context) (*pipeline.RunReport, []contracts.MergedRecord, error)
}

// SymbolsHandler serves the merged symbol table. The table is an in-memory
// snapshot swapped atomically after each refresh; reads never block a
// running refresh.
type SymbolsHandler struct {
	runner Runner
	logger *logger.Logger

	mu       sync.RWMutex
	records  []contracts.MergedRecord
	bySymbol map[string]contracts.MergedRecord

	refreshing sync.Mutex
}

// NewSymbolsHandler creates a symbols handler seeded with an initial table
// (may be empty when no run has happened yet).
func NewSymbolsHandler(runner Runner, initial []contracts.MergedRecord, log *logger.Logger) *SymbolsHandler {
	h := &SymbolsHandler{
		runner: runner,
		logger: log,
	}
	h.swap(initial)
	return h
}

func (h *SymbolsHandler) swap(records []contracts.MergedRecord) {
	bySymbol := make(map[string]contracts.MergedRecord, len(records))
	for _, rec := range records {
		bySymbol[rec.Symbol] = rec
	}
	h.mu.Lock()
	h.records = records
	h.bySymbol = bySymbol
	h.mu.Unlock()
}

// ListResponse is the symbols list response.
type ListResponse struct {
	Success bool                     `json:"success"`
	Count   int                      `json:"count"`
	Data    []contracts.MergedRecord `json:"data"`
}

// ListSymbols returns the current merged table.
// GET /api/symbols?exchange=NASDAQ&listed=true
func (h *SymbolsHandler) ListSymbols(w http.ResponseWriter, r *http.Request) {
	exchange := strings.ToUpper(r.URL.Query().Get("exchange"))
	listedOnly := r.URL.Query().Get("listed") == "true"

	h.mu.RLock()
	records := h.records
	h.mu.RUnlock()

	filtered := make([]contracts.MergedRecord, 0, len(records))
	for _, rec := range records {
		if exchange != "" && string(rec.Exchange) != exchange {
			continue
		}
		if listedOnly && !rec.ListedCurrently {
			continue
		}
		filtered = append(filtered, rec)
	}

	respondJSON(w, http.StatusOK, ListResponse{Success: true, Count: len(filtered), Data: filtered})
}

// GetSymbol returns one merged record.
// GET /api/symbols/{symbol}
func (h *SymbolsHandler) GetSymbol(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])

	h.mu.RLock()
	rec, ok := h.bySymbol[symbol]
	h.mu.RUnlock()

	if !ok {
		respondError(w, http.StatusNotFound, "Symbol not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    rec,
	})
}

// Refresh runs the pipeline and swaps in the fresh table. Only one refresh
// runs at a time; a concurrent request gets 409.
// POST /api/refresh
func (h *SymbolsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if !h.refreshing.TryLock() {
		respondError(w, http.StatusConflict, "Refresh already in progress")
		return
	}
	defer h.refreshing.Unlock()

	report, records, err := h.runner.Run(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Refresh run failed")
		respondError(w, http.StatusBadGateway, "Refresh failed")
		return
	}
	h.swap(records)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"report":  report,
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
