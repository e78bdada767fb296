package database

import (
	"time"
)

// ArticleRepository is the persistence boundary the pipeline writes through.
type ArticleRepository interface {
	// GetByURLHash looks up an article by its URL-derived ID. Returns nil
	// when no article matches.
	GetByURLHash(hash string) (*Article, error)

	// GetRecentTitles returns the titles of the most recently stored
	// articles in a category, newest first, bounded by limit.
	GetRecentTitles(category string, limit int) ([]string, error)

	// Create stores an article and its sentences atomically. Returns
	// ErrDuplicateArticle when the URL hash already exists.
	Create(article Article, sentences []Sentence) error

	CountAll() (int, error)
	CountByCategory() ([]CategoryCount, error)
	CountBySource() ([]SourceCount, error)

	// GetForExtraction lists stored articles that still lack body content
	// and have not been through extraction yet.
	GetForExtraction(limit int) ([]ArticleRef, error)

	// UpdateExtractedContent replaces an article's content, derived fields
	// and sentences after full-text extraction.
	UpdateExtractedContent(id string, content string, summary string, wordCount, readingTimeSeconds, difficulty int, sentences []Sentence) error

	// MarkExtractionAttempted records that extraction ran for an article,
	// successful or not, so it is not retried forever.
	MarkExtractionAttempted(id string, at time.Time) error
}

// SourceRepository manages configured sources.
type SourceRepository interface {
	// Upsert registers a configured source, preserving last_fetch_at for
	// existing rows.
	Upsert(source Source) error

	// GetEnabled returns enabled sources for a category and adapter kind.
	GetEnabled(category, kind string) ([]Source, error)

	// CountConfigured counts enabled sources across the given categories.
	CountConfigured(categories []string) (int, error)

	// Categories lists the distinct categories with enabled sources.
	Categories() ([]string, error)

	// UpdateLastFetch records when a source was last polled.
	UpdateLastFetch(id string, at time.Time) error
}
