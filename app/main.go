package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lexfeed/lexfeed/app/aggregator"
	"github.com/lexfeed/lexfeed/app/api"
	"github.com/lexfeed/lexfeed/app/cfg"
	"github.com/lexfeed/lexfeed/app/config"
	"github.com/lexfeed/lexfeed/app/database"
	"github.com/lexfeed/lexfeed/app/dedup"
	"github.com/lexfeed/lexfeed/app/sources"
	"github.com/lexfeed/lexfeed/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was requested, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting LexFeed server", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	articleRepo := database.NewArticleRepository(db)
	sourceRepo := database.NewSourceRepository(db)

	// Register configured sources in the database
	loader := config.NewLoader(appCfg.SourcesDir)
	sourceConfigs, err := loader.LoadAll()
	if err != nil {
		slog.Error("Failed to load source configurations", "dir", appCfg.SourcesDir, "error", err)
		os.Exit(1)
	}
	registered := 0
	for _, sc := range sourceConfigs {
		source := database.Source{
			ID:                    sc.ID,
			Name:                  sc.Name,
			Kind:                  sc.Kind,
			URL:                   sc.URL,
			Category:              sc.Category,
			Enabled:               sc.Enabled,
			UpdateIntervalMinutes: sc.UpdateIntervalMinutes,
		}
		if err := sourceRepo.Upsert(source); err != nil {
			slog.Warn("Failed to register source", "id", sc.ID, "error", err)
			continue
		}
		registered++
	}
	slog.Info("Registered sources", "count", registered, "configured", len(sourceConfigs))

	httpClient := &http.Client{}

	adapters := []sources.Adapter{
		sources.NewRSSAdapter(sourceRepo, httpClient, appCfg.UserAgent),
	}
	if appCfg.HeadlineAPIKey != "" {
		adapters = append(adapters,
			sources.NewHeadlineAPIAdapter(sourceRepo, httpClient, appCfg.HeadlineAPIBaseURL, appCfg.HeadlineAPIKey, appCfg.UserAgent))
	} else {
		slog.Info("Headline API adapter disabled (HEADLINE_API_KEY not set)")
	}

	engine := dedup.NewEngine(articleRepo, appCfg.SimilarityThreshold, appCfg.RecencyWindowSize)
	agg := aggregator.New(adapters, articleRepo, sourceRepo, engine, appCfg.WorkerCount)

	scheduler := tasks.NewScheduler(agg, articleRepo, httpClient)
	scheduler.Start()
	defer scheduler.Stop()

	apiHandler := api.NewHandler(agg, sourceRepo, appCfg.Version)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Scheduler is stopped via defer
	slog.Info("Shutdown complete")
}
