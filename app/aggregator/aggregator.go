// Package aggregator drives one aggregation run: it resolves the due sources
// for the requested categories, fetches candidates through the adapters,
// pipes them through normalization and deduplication, persists accepted
// articles and accumulates per-run statistics and errors.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lexfeed/lexfeed/app/database"
	"github.com/lexfeed/lexfeed/app/dedup"
	"github.com/lexfeed/lexfeed/app/normalizer"
	"github.com/lexfeed/lexfeed/app/sources"
)

// ErrNoSources is returned when resolution finds no configured sources for
// the requested categories. This is the only failure that aborts a run;
// every per-source and per-item failure is contained in Result.Errors.
var ErrNoSources = errors.New("no sources configured for requested categories")

// KindStats is the per-adapter-kind slice of a run's counters.
type KindStats struct {
	Fetched   int `json:"fetched"`
	Processed int `json:"processed"`
}

// Result is the outcome of a single aggregation run. It is JSON-serializable
// and returned to the caller; the pipeline itself does not persist it.
type Result struct {
	TotalFetched    int                   `json:"totalFetched"`
	TotalProcessed  int                   `json:"totalProcessed"`
	DuplicatesFound int                   `json:"duplicatesFound"`
	SourceBreakdown map[string]*KindStats `json:"sourceBreakdown"`
	Errors          []string              `json:"errors"`
	NewArticleIDs   []string              `json:"newArticleIds"`
}

// Statistics is the read-only aggregate over persisted articles.
type Statistics struct {
	TotalArticles      int                      `json:"totalArticles"`
	ArticlesByCategory []database.CategoryCount `json:"articlesByCategory"`
	ArticlesBySource   []database.SourceCount   `json:"articlesBySource"`
}

// Aggregator orchestrates runs over a fixed set of adapters.
type Aggregator struct {
	adapters    []sources.Adapter
	articleRepo database.ArticleRepository
	sourceRepo  database.SourceRepository
	engine      *dedup.Engine
	workerCount int
}

func New(adapters []sources.Adapter, articleRepo database.ArticleRepository,
	sourceRepo database.SourceRepository, engine *dedup.Engine, workerCount int) *Aggregator {
	if workerCount < 1 {
		workerCount = 1
	}

	return &Aggregator{
		adapters:    adapters,
		articleRepo: articleRepo,
		sourceRepo:  sourceRepo,
		engine:      engine,
		workerCount: workerCount,
	}
}

// polledSource pairs a due source with the adapter that owns it.
type polledSource struct {
	adapter sources.Adapter
	source  database.Source
}

// Aggregate runs one aggregation for the given categories. An empty category
// list means all categories with enabled sources. Source fetches run
// concurrently bounded by the worker count; candidates from one source are
// always decided in their original order. Running twice with unchanged
// upstream content yields TotalProcessed = 0 the second time.
func (a *Aggregator) Aggregate(ctx context.Context, categories []string) (*Result, error) {
	started := time.Now()

	if len(categories) == 0 {
		all, err := a.sourceRepo.Categories()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve categories: %w", err)
		}
		categories = all
	}
	// A repeated category would poll its sources twice in one run.
	categories = dedupeCategories(categories)

	configured, err := a.sourceRepo.CountConfigured(categories)
	if err != nil {
		return nil, fmt.Errorf("failed to count configured sources: %w", err)
	}
	if configured == 0 {
		return nil, ErrNoSources
	}

	polled, err := a.resolveDueSources(ctx, categories)
	if err != nil {
		return nil, err
	}

	run, err := a.engine.NewRun(categories)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize dedup run: %w", err)
	}

	result := &Result{
		SourceBreakdown: make(map[string]*KindStats),
		Errors:          []string{},
		NewArticleIDs:   []string{},
	}
	for _, adapter := range a.adapters {
		result.SourceBreakdown[adapter.Kind()] = &KindStats{}
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, a.workerCount)
	)

	for _, p := range polled {
		wg.Add(1)
		sem <- struct{}{}
		go func(p polledSource) {
			defer wg.Done()
			defer func() { <-sem }()

			a.processSource(ctx, p, run, result, &mu)
		}(p)
	}
	wg.Wait()

	// Every polled source gets its last-fetch timestamp updated, success
	// or failure, so a failing source waits a full interval before retry.
	now := time.Now().UTC()
	for _, p := range polled {
		if err := a.sourceRepo.UpdateLastFetch(p.source.ID, now); err != nil {
			slog.Warn("Failed to update source fetch time", "source", p.source.ID, "error", err)
		}
	}

	slog.Info("Aggregation run completed",
		"categories", categories,
		"sources", len(polled),
		"fetched", result.TotalFetched,
		"new", result.TotalProcessed,
		"duplicates", result.DuplicatesFound,
		"errors", len(result.Errors),
		"duration", time.Since(started).String())

	return result, nil
}

func dedupeCategories(categories []string) []string {
	seen := make(map[string]struct{}, len(categories))
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func (a *Aggregator) resolveDueSources(ctx context.Context, categories []string) ([]polledSource, error) {
	var polled []polledSource
	for _, category := range categories {
		for _, adapter := range a.adapters {
			due, err := adapter.ListDueSources(ctx, category)
			if err != nil {
				return nil, fmt.Errorf("failed to list due sources (%s, %s): %w", adapter.Kind(), category, err)
			}
			for _, s := range due {
				polled = append(polled, polledSource{adapter: adapter, source: s})
			}
		}
	}
	return polled, nil
}

// processSource fetches one source and pushes its candidates through the
// pipeline in order. All result mutation happens under mu.
func (a *Aggregator) processSource(ctx context.Context, p polledSource, run *dedup.Run, result *Result, mu *sync.Mutex) {
	if ctx.Err() != nil {
		mu.Lock()
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", p.source.Name, ctx.Err()))
		mu.Unlock()
		return
	}

	items, err := p.adapter.Fetch(ctx, p.source)
	if err != nil {
		mu.Lock()
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", p.source.Name, err))
		mu.Unlock()
		slog.Warn("Source fetch failed", "source", p.source.ID, "kind", p.adapter.Kind(), "error", err)
		return
	}

	kind := p.adapter.Kind()

	for _, item := range items {
		decision, err := run.Check(item)
		if err != nil {
			mu.Lock()
			result.TotalFetched++
			result.SourceBreakdown[kind].Fetched++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", p.source.Name, err))
			mu.Unlock()
			continue
		}

		if !decision.Accepted {
			mu.Lock()
			result.TotalFetched++
			result.SourceBreakdown[kind].Fetched++
			result.DuplicatesFound++
			mu.Unlock()
			slog.Debug("Duplicate candidate rejected", "source", p.source.ID, "title", item.Title, "reason", decision.Reason)
			continue
		}

		article, sentences := a.buildArticle(item)
		err = a.articleRepo.Create(article, sentences)

		switch {
		case err == nil:
			run.Confirm(item)
		case !errors.Is(err, database.ErrDuplicateArticle):
			// Nothing was stored, so the URL gets another chance.
			run.Forget(item)
		}

		mu.Lock()
		result.TotalFetched++
		result.SourceBreakdown[kind].Fetched++
		switch {
		case errors.Is(err, database.ErrDuplicateArticle):
			// Unique-key safety net under the engine; counts as duplicate.
			result.DuplicatesFound++
		case err != nil:
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", p.source.Name, err))
		default:
			result.TotalProcessed++
			result.SourceBreakdown[kind].Processed++
			result.NewArticleIDs = append(result.NewArticleIDs, article.ID)
		}
		mu.Unlock()
	}
}

// buildArticle normalizes a candidate into its persisted form. The article
// ID is the URL hash, so storing the same URL twice is idempotent.
func (a *Aggregator) buildArticle(item sources.CandidateItem) (database.Article, []database.Sentence) {
	body := item.RawContent
	if body == "" {
		body = item.RawSummary
	}

	normalized := normalizer.Normalize(item.Title, body)

	article := database.Article{
		ID:                 dedup.ArticleID(item.URL),
		SourceID:           item.SourceID,
		Category:           item.Category,
		Title:              normalized.Title,
		Summary:            normalized.Summary,
		Content:            normalized.Content,
		URL:                item.URL,
		ImageURL:           item.ImageURL,
		WordCount:          normalized.WordCount,
		ReadingTimeSeconds: normalized.ReadingTimeSeconds,
		Difficulty:         normalized.Difficulty,
	}

	if !item.PublishedAt.IsZero() {
		published := item.PublishedAt
		article.PublishedAt = &published
	}

	sentences := make([]database.Sentence, len(normalized.Sentences))
	for i, s := range normalized.Sentences {
		sentences[i] = database.Sentence{
			ArticleID: article.ID,
			Position:  s.Order,
			Text:      s.Text,
			WordCount: s.WordCount,
		}
	}

	return article, sentences
}

// GetStatistics returns the read-only aggregate over persisted articles.
func (a *Aggregator) GetStatistics() (*Statistics, error) {
	total, err := a.articleRepo.CountAll()
	if err != nil {
		return nil, fmt.Errorf("failed to count articles: %w", err)
	}

	byCategory, err := a.articleRepo.CountByCategory()
	if err != nil {
		return nil, fmt.Errorf("failed to count by category: %w", err)
	}

	bySource, err := a.articleRepo.CountBySource()
	if err != nil {
		return nil, fmt.Errorf("failed to count by source: %w", err)
	}

	if byCategory == nil {
		byCategory = []database.CategoryCount{}
	}
	if bySource == nil {
		bySource = []database.SourceCount{}
	}

	return &Statistics{
		TotalArticles:      total,
		ArticlesByCategory: byCategory,
		ArticlesBySource:   bySource,
	}, nil
}
