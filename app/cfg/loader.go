package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./lexfeed.db" description:"Path to the SQLite database file"`

	// Application configuration
	SourcesDir          string  `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source configuration files"`
	Port                string  `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount         int     `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of concurrent source fetch workers"`
	SchedulerInterval   int     `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"300" description:"Scheduler interval in seconds"`
	SimilarityThreshold float64 `long:"similarity-threshold" env:"SIMILARITY_THRESHOLD" default:"0.8" description:"Fuzzy title similarity above which a candidate is a duplicate"`
	RecencyWindowSize   int     `long:"recency-window" env:"RECENCY_WINDOW" default:"50" description:"Recent titles kept per category for fuzzy duplicate detection"`
	ExtractionBatchSize int     `long:"extraction-batch" env:"EXTRACTION_BATCH" default:"10" description:"Articles per content extraction pass"`
	APIAccessKey        string  `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for the aggregation trigger endpoint (optional)"`

	// Headline API configuration
	HeadlineAPIKey     string `long:"headline-api-key" env:"HEADLINE_API_KEY" description:"API key for the headline API (adapter disabled when empty)"`
	HeadlineAPIBaseURL string `long:"headline-api-url" env:"HEADLINE_API_URL" default:"https://newsapi.org/v2" description:"Base URL of the headline API"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"lexfeed/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:              raw.DBPath,
		SourcesDir:          raw.SourcesDir,
		Port:                raw.Port,
		WorkerCount:         raw.WorkerCount,
		SchedulerInterval:   raw.SchedulerInterval,
		SimilarityThreshold: raw.SimilarityThreshold,
		RecencyWindowSize:   raw.RecencyWindowSize,
		ExtractionBatchSize: raw.ExtractionBatchSize,
		APIAccessKey:        raw.APIAccessKey,
		HeadlineAPIKey:      raw.HeadlineAPIKey,
		HeadlineAPIBaseURL:  raw.HeadlineAPIBaseURL,
		UserAgent:           raw.UserAgent,
		Timezone:            raw.Timezone,
		Debug:               raw.Debug,
		Version:             GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
