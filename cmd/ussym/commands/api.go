package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/ussymbols/internal/api"
	"github.com/wonny/ussymbols/internal/api/handlers"
	"github.com/wonny/ussymbols/internal/cache"
	"github.com/wonny/ussymbols/internal/contracts"
	"github.com/wonny/ussymbols/pkg/logger"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Serve the merged symbol table over HTTP",
	Long: `Starts the REST API server. The initial table is loaded from the
universe cache; POST /api/refresh runs the pipeline and swaps in fresh data.

Endpoints:
  GET  /health                - Health check
  GET  /api/symbols           - List merged records (?exchange=, ?listed=true)
  GET  /api/symbols/{symbol}  - One merged record
  POST /api/refresh           - Run the pipeline and reload

Example:
  go run ./cmd/ussym api
  go run ./cmd/ussym api --port 8080`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default from PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if apiPort != "" {
		cfg.Port = apiPort
	}
	log := logger.New(cfg)

	p, cleanup, err := buildPipeline(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	// Seed the snapshot from the universe cache so the API is useful
	// before the first refresh.
	uniStore := cache.NewUniverseStore(filepath.Join(cfg.CacheDir, universeCacheFile), log)
	initial := sortedRecords(uniStore.Load())
	log.WithField("symbols", len(initial)).Info("Loaded initial symbol table")

	symbolsHandler := handlers.NewSymbolsHandler(p, initial, log)
	router := api.NewRouter(symbolsHandler, log)
	server := api.New(cfg, log, router)

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("Server running on http://localhost:%s\n", cfg.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}

func sortedRecords(table map[string]contracts.MergedRecord) []contracts.MergedRecord {
	out := make([]contracts.MergedRecord, 0, len(table))
	for _, rec := range table {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
