package aggregator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lexfeed/lexfeed/app/database"
	"github.com/lexfeed/lexfeed/app/dedup"
	"github.com/lexfeed/lexfeed/app/sources"
)

type fakeArticleRepo struct {
	mu       sync.Mutex
	articles map[string]database.Article
	recent   map[string][]string
	failNext bool
}

func newFakeArticleRepo() *fakeArticleRepo {
	return &fakeArticleRepo{
		articles: make(map[string]database.Article),
		recent:   make(map[string][]string),
	}
}

func (f *fakeArticleRepo) GetByURLHash(hash string) (*database.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.articles[hash]; ok {
		return &a, nil
	}
	return nil, nil
}

func (f *fakeArticleRepo) GetRecentTitles(category string, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	titles := f.recent[category]
	if len(titles) > limit {
		titles = titles[:limit]
	}
	return titles, nil
}

func (f *fakeArticleRepo) Create(article database.Article, _ []database.Sentence) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return errors.New("disk full")
	}
	if _, ok := f.articles[article.ID]; ok {
		return database.ErrDuplicateArticle
	}
	f.articles[article.ID] = article
	f.recent[article.Category] = append([]string{article.Title}, f.recent[article.Category]...)
	return nil
}

func (f *fakeArticleRepo) CountAll() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.articles), nil
}

func (f *fakeArticleRepo) CountByCategory() ([]database.CategoryCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[string]int)
	for _, a := range f.articles {
		counts[a.Category]++
	}
	var out []database.CategoryCount
	for c, n := range counts {
		out = append(out, database.CategoryCount{Category: c, Count: n})
	}
	return out, nil
}

func (f *fakeArticleRepo) CountBySource() ([]database.SourceCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[string]int)
	for _, a := range f.articles {
		counts[a.SourceID]++
	}
	var out []database.SourceCount
	for s, n := range counts {
		out = append(out, database.SourceCount{Source: s, Count: n})
	}
	return out, nil
}

func (f *fakeArticleRepo) GetForExtraction(int) ([]database.ArticleRef, error) { return nil, nil }
func (f *fakeArticleRepo) UpdateExtractedContent(string, string, string, int, int, int, []database.Sentence) error {
	return nil
}
func (f *fakeArticleRepo) MarkExtractionAttempted(string, time.Time) error { return nil }

type fakeSourceRepo struct {
	mu          sync.Mutex
	sources     []database.Source
	lastFetched map[string]time.Time
}

func newFakeSourceRepo(srcs ...database.Source) *fakeSourceRepo {
	return &fakeSourceRepo{sources: srcs, lastFetched: make(map[string]time.Time)}
}

func (f *fakeSourceRepo) Upsert(database.Source) error { return nil }

func (f *fakeSourceRepo) GetEnabled(category, kind string) ([]database.Source, error) {
	var out []database.Source
	for _, s := range f.sources {
		if s.Category == category && s.Kind == kind && s.Enabled {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSourceRepo) CountConfigured(categories []string) (int, error) {
	count := 0
	for _, s := range f.sources {
		for _, c := range categories {
			if s.Category == c && s.Enabled {
				count++
			}
		}
	}
	return count, nil
}

func (f *fakeSourceRepo) Categories() ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range f.sources {
		if _, ok := seen[s.Category]; !ok && s.Enabled {
			seen[s.Category] = struct{}{}
			out = append(out, s.Category)
		}
	}
	return out, nil
}

func (f *fakeSourceRepo) UpdateLastFetch(id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFetched[id] = at
	return nil
}

// fakeAdapter serves canned items, or an error, per source ID.
type fakeAdapter struct {
	kind       string
	sourceRepo database.SourceRepository
	items      map[string][]sources.CandidateItem
	failures   map[string]error
}

func (f *fakeAdapter) Kind() string { return f.kind }

func (f *fakeAdapter) ListDueSources(_ context.Context, category string) ([]database.Source, error) {
	enabled, err := f.sourceRepo.GetEnabled(category, f.kind)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	var due []database.Source
	for _, s := range enabled {
		if s.IsDue(now) {
			due = append(due, s)
		}
	}
	return due, nil
}

func (f *fakeAdapter) Fetch(_ context.Context, source database.Source) ([]sources.CandidateItem, error) {
	if err, ok := f.failures[source.ID]; ok {
		return nil, err
	}
	return f.items[source.ID], nil
}

func item(sourceID, title, url string) sources.CandidateItem {
	return sources.CandidateItem{
		SourceID:   sourceID,
		SourceName: sourceID,
		Category:   "world",
		Title:      title,
		RawSummary: "A reasonably long description of what happened in this story. It has two proper sentences for the normalizer.",
		URL:        url,
	}
}

func rssSource(id string) database.Source {
	return database.Source{
		ID: id, Name: id, Kind: sources.KindRSS, Category: "world",
		Enabled: true, UpdateIntervalMinutes: 60,
	}
}

func newTestAggregator(articleRepo *fakeArticleRepo, sourceRepo *fakeSourceRepo, adapters ...sources.Adapter) *Aggregator {
	engine := dedup.NewEngine(articleRepo, 0.8, 50)
	return New(adapters, articleRepo, sourceRepo, engine, 4)
}

func TestAggregate_AcceptsNewItems(t *testing.T) {
	articleRepo := newFakeArticleRepo()
	sourceRepo := newFakeSourceRepo(rssSource("feed-a"))
	adapter := &fakeAdapter{
		kind:       sources.KindRSS,
		sourceRepo: sourceRepo,
		items: map[string][]sources.CandidateItem{
			"feed-a": {
				item("feed-a", "Central bank raises interest rates", "https://a.example.com/rates"),
				item("feed-a", "Rare comet visible this weekend", "https://a.example.com/comet"),
			},
		},
	}

	result, err := newTestAggregator(articleRepo, sourceRepo, adapter).Aggregate(context.Background(), []string{"world"})
	if err != nil {
		t.Fatalf("Aggregate returned error: %v", err)
	}

	if result.TotalFetched != 2 {
		t.Errorf("Expected totalFetched 2, got %d", result.TotalFetched)
	}
	if result.TotalProcessed != 2 {
		t.Errorf("Expected totalProcessed 2, got %d", result.TotalProcessed)
	}
	if result.DuplicatesFound != 0 {
		t.Errorf("Expected no duplicates, got %d", result.DuplicatesFound)
	}
	if len(result.NewArticleIDs) != 2 {
		t.Errorf("Expected 2 new article IDs, got %d", len(result.NewArticleIDs))
	}
	if stats := result.SourceBreakdown[sources.KindRSS]; stats.Fetched != 2 || stats.Processed != 2 {
		t.Errorf("Unexpected rss breakdown: %+v", stats)
	}
}

func TestAggregate_Idempotence(t *testing.T) {
	articleRepo := newFakeArticleRepo()
	sourceRepo := newFakeSourceRepo(rssSource("feed-a"))
	adapter := &fakeAdapter{
		kind:       sources.KindRSS,
		sourceRepo: sourceRepo,
		items: map[string][]sources.CandidateItem{
			"feed-a": {
				item("feed-a", "Central bank raises interest rates", "https://a.example.com/rates"),
			},
		},
	}

	agg := newTestAggregator(articleRepo, sourceRepo, adapter)

	first, err := agg.Aggregate(context.Background(), []string{"world"})
	if err != nil {
		t.Fatalf("First run returned error: %v", err)
	}
	if first.TotalProcessed != 1 {
		t.Fatalf("Expected first run to process 1, got %d", first.TotalProcessed)
	}

	// Source is no longer due after the first run; clear the fetch record
	// so the second run polls the same unchanged content again.
	sourceRepo.lastFetched = make(map[string]time.Time)

	second, err := agg.Aggregate(context.Background(), []string{"world"})
	if err != nil {
		t.Fatalf("Second run returned error: %v", err)
	}
	if second.TotalProcessed != 0 {
		t.Errorf("Expected second run to process 0, got %d", second.TotalProcessed)
	}
	if second.DuplicatesFound != 1 {
		t.Errorf("Expected second run to find 1 duplicate, got %d", second.DuplicatesFound)
	}
}

func TestAggregate_PartialFailureContainment(t *testing.T) {
	articleRepo := newFakeArticleRepo()
	sourceRepo := newFakeSourceRepo(rssSource("feed-a"), rssSource("feed-b"))
	adapter := &fakeAdapter{
		kind:       sources.KindRSS,
		sourceRepo: sourceRepo,
		items: map[string][]sources.CandidateItem{
			"feed-b": {
				item("feed-b", "Rare comet visible this weekend", "https://b.example.com/comet"),
				item("feed-b", "New rail line opens between capitals", "https://b.example.com/rail"),
			},
		},
		failures: map[string]error{
			"feed-a": errors.New("connection refused"),
		},
	}

	result, err := newTestAggregator(articleRepo, sourceRepo, adapter).Aggregate(context.Background(), []string{"world"})
	if err != nil {
		t.Fatalf("Aggregate returned error: %v", err)
	}

	if len(result.Errors) != 1 {
		t.Fatalf("Expected exactly 1 error, got %d: %v", len(result.Errors), result.Errors)
	}
	if !strings.HasPrefix(result.Errors[0], "feed-a:") {
		t.Errorf("Expected error attributed to feed-a, got %q", result.Errors[0])
	}
	if result.TotalProcessed != 2 {
		t.Errorf("Expected feed-b's items fully processed, got %d", result.TotalProcessed)
	}

	// Both sources get their fetch time recorded, success or failure.
	if _, ok := sourceRepo.lastFetched["feed-a"]; !ok {
		t.Error("Failing source should still have last fetch updated")
	}
	if _, ok := sourceRepo.lastFetched["feed-b"]; !ok {
		t.Error("Successful source should have last fetch updated")
	}
}

func TestAggregate_PersistenceErrorCounted(t *testing.T) {
	articleRepo := newFakeArticleRepo()
	articleRepo.failNext = true
	sourceRepo := newFakeSourceRepo(rssSource("feed-a"))
	adapter := &fakeAdapter{
		kind:       sources.KindRSS,
		sourceRepo: sourceRepo,
		items: map[string][]sources.CandidateItem{
			"feed-a": {
				item("feed-a", "Central bank raises interest rates", "https://a.example.com/rates"),
				item("feed-a", "Rare comet visible this weekend", "https://a.example.com/comet"),
			},
		},
	}

	result, err := newTestAggregator(articleRepo, sourceRepo, adapter).Aggregate(context.Background(), []string{"world"})
	if err != nil {
		t.Fatalf("Aggregate returned error: %v", err)
	}

	// First item's write fails, run continues with the second.
	if result.TotalProcessed != 1 {
		t.Errorf("Expected 1 processed after write failure, got %d", result.TotalProcessed)
	}
	if len(result.Errors) != 1 {
		t.Errorf("Expected 1 error for the failed write, got %d: %v", len(result.Errors), result.Errors)
	}
	if result.TotalFetched != 2 {
		t.Errorf("Expected totalFetched 2, got %d", result.TotalFetched)
	}
}

func TestAggregate_FailedWriteDoesNotSuppressSimilarTitle(t *testing.T) {
	articleRepo := newFakeArticleRepo()
	articleRepo.failNext = true
	sourceRepo := newFakeSourceRepo(rssSource("feed-a"))
	adapter := &fakeAdapter{
		kind:       sources.KindRSS,
		sourceRepo: sourceRepo,
		items: map[string][]sources.CandidateItem{
			"feed-a": {
				item("feed-a", "Breaking: Major earthquake hits Japan", "https://a.example.com/quake-1"),
				item("feed-a", "Breaking News: Major earthquake hits Japan", "https://a.example.com/quake-2"),
			},
		},
	}

	result, err := newTestAggregator(articleRepo, sourceRepo, adapter).Aggregate(context.Background(), []string{"world"})
	if err != nil {
		t.Fatalf("Aggregate returned error: %v", err)
	}

	// The first item's write fails, so its title never entered the recency
	// window and must not fuzzy-reject the near-identical second item.
	if result.TotalProcessed != 1 {
		t.Errorf("Expected the second item processed, got %d", result.TotalProcessed)
	}
	if result.DuplicatesFound != 0 {
		t.Errorf("Expected no duplicates, got %d", result.DuplicatesFound)
	}
	if len(result.Errors) != 1 {
		t.Errorf("Expected 1 error for the failed write, got %d: %v", len(result.Errors), result.Errors)
	}
}

func TestAggregate_NoSourcesConfigured(t *testing.T) {
	articleRepo := newFakeArticleRepo()
	sourceRepo := newFakeSourceRepo()
	adapter := &fakeAdapter{kind: sources.KindRSS, sourceRepo: sourceRepo}

	_, err := newTestAggregator(articleRepo, sourceRepo, adapter).Aggregate(context.Background(), []string{"world"})
	if !errors.Is(err, ErrNoSources) {
		t.Errorf("Expected ErrNoSources, got %v", err)
	}
}

func TestAggregate_CrossSourceDuplicateURL(t *testing.T) {
	articleRepo := newFakeArticleRepo()
	sourceRepo := newFakeSourceRepo(rssSource("feed-a"), rssSource("feed-b"))
	shared := "https://syndicated.example.com/story"
	adapter := &fakeAdapter{
		kind:       sources.KindRSS,
		sourceRepo: sourceRepo,
		items: map[string][]sources.CandidateItem{
			"feed-a": {item("feed-a", "A story told once", shared)},
			"feed-b": {item("feed-b", "A story told once", shared)},
		},
	}

	result, err := newTestAggregator(articleRepo, sourceRepo, adapter).Aggregate(context.Background(), []string{"world"})
	if err != nil {
		t.Fatalf("Aggregate returned error: %v", err)
	}

	// Whichever source wins, exactly one copy is persisted.
	if result.TotalProcessed != 1 {
		t.Errorf("Expected exactly 1 processed, got %d", result.TotalProcessed)
	}
	if result.DuplicatesFound != 1 {
		t.Errorf("Expected exactly 1 duplicate, got %d", result.DuplicatesFound)
	}

	count, _ := articleRepo.CountAll()
	if count != 1 {
		t.Errorf("Expected 1 article persisted, got %d", count)
	}
}

func TestAggregate_EmptyCategoriesExpand(t *testing.T) {
	articleRepo := newFakeArticleRepo()
	sourceRepo := newFakeSourceRepo(rssSource("feed-a"))
	adapter := &fakeAdapter{
		kind:       sources.KindRSS,
		sourceRepo: sourceRepo,
		items: map[string][]sources.CandidateItem{
			"feed-a": {item("feed-a", "Central bank raises interest rates", "https://a.example.com/rates")},
		},
	}

	result, err := newTestAggregator(articleRepo, sourceRepo, adapter).Aggregate(context.Background(), nil)
	if err != nil {
		t.Fatalf("Aggregate with empty categories returned error: %v", err)
	}
	if result.TotalProcessed != 1 {
		t.Errorf("Expected 1 processed from expanded categories, got %d", result.TotalProcessed)
	}
}

func TestGetStatistics(t *testing.T) {
	articleRepo := newFakeArticleRepo()
	sourceRepo := newFakeSourceRepo(rssSource("feed-a"))
	adapter := &fakeAdapter{
		kind:       sources.KindRSS,
		sourceRepo: sourceRepo,
		items: map[string][]sources.CandidateItem{
			"feed-a": {
				item("feed-a", "Central bank raises interest rates", "https://a.example.com/rates"),
				item("feed-a", "Rare comet visible this weekend", "https://a.example.com/comet"),
			},
		},
	}

	agg := newTestAggregator(articleRepo, sourceRepo, adapter)
	if _, err := agg.Aggregate(context.Background(), []string{"world"}); err != nil {
		t.Fatalf("Aggregate returned error: %v", err)
	}

	stats, err := agg.GetStatistics()
	if err != nil {
		t.Fatalf("GetStatistics returned error: %v", err)
	}
	if stats.TotalArticles != 2 {
		t.Errorf("Expected 2 total articles, got %d", stats.TotalArticles)
	}
	if len(stats.ArticlesByCategory) != 1 || stats.ArticlesByCategory[0].Count != 2 {
		t.Errorf("Unexpected category breakdown: %+v", stats.ArticlesByCategory)
	}
}

func TestAggregate_DuplicateCategoriesPolledOnce(t *testing.T) {
	articleRepo := newFakeArticleRepo()
	sourceRepo := newFakeSourceRepo(rssSource("feed-a"))
	adapter := &fakeAdapter{
		kind:       sources.KindRSS,
		sourceRepo: sourceRepo,
		items: map[string][]sources.CandidateItem{
			"feed-a": {item("feed-a", "Central bank raises interest rates", "https://a.example.com/rates")},
		},
	}

	result, err := newTestAggregator(articleRepo, sourceRepo, adapter).Aggregate(context.Background(), []string{"world", "world"})
	if err != nil {
		t.Fatalf("Aggregate returned error: %v", err)
	}

	// The repeated category must not poll the source a second time and
	// double-count its item as fetched + duplicate.
	if result.TotalFetched != 1 {
		t.Errorf("Expected totalFetched 1, got %d", result.TotalFetched)
	}
	if result.TotalProcessed != 1 {
		t.Errorf("Expected totalProcessed 1, got %d", result.TotalProcessed)
	}
	if result.DuplicatesFound != 0 {
		t.Errorf("Expected no duplicates, got %d", result.DuplicatesFound)
	}
}

func TestAggregate_ManySourcesConcurrently(t *testing.T) {
	articleRepo := newFakeArticleRepo()

	titles := []string{
		"Central bank raises interest rates again",
		"Rare comet visible over the southern hemisphere",
		"Champions league final ends in penalty shootout",
		"New high speed rail line opens between two capitals",
		"Volcanic eruption forces island evacuation overnight",
		"Archaeologists uncover bronze age settlement",
		"Wind farms now supply a third of national grid",
		"Parliament votes to extend school meal program",
		"Startup unveils battery with double the range",
		"Historic drought lowers river to record levels",
	}

	var srcs []database.Source
	items := make(map[string][]sources.CandidateItem)
	for i, title := range titles {
		id := fmt.Sprintf("feed-%d", i)
		srcs = append(srcs, rssSource(id))
		items[id] = []sources.CandidateItem{
			item(id, title, fmt.Sprintf("https://example.com/%d", i)),
		}
	}

	sourceRepo := newFakeSourceRepo(srcs...)
	adapter := &fakeAdapter{kind: sources.KindRSS, sourceRepo: sourceRepo, items: items}

	result, err := newTestAggregator(articleRepo, sourceRepo, adapter).Aggregate(context.Background(), []string{"world"})
	if err != nil {
		t.Fatalf("Aggregate returned error: %v", err)
	}

	if result.TotalFetched != len(titles) {
		t.Errorf("Expected %d fetched, got %d", len(titles), result.TotalFetched)
	}
	if result.TotalProcessed != len(titles) {
		t.Errorf("Expected %d processed, got %d", len(titles), result.TotalProcessed)
	}

	count, _ := articleRepo.CountAll()
	if count != len(titles) {
		t.Errorf("Expected %d articles persisted, got %d", len(titles), count)
	}
}
