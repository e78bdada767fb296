package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrDuplicateArticle is returned by Create when the URL hash already exists.
// The unique primary key acts as a redundant safety net under the
// deduplication engine, not as a replacement for it.
var ErrDuplicateArticle = errors.New("article already exists")

var _ ArticleRepository = (*articleRepository)(nil)

type articleRepository struct {
	db *DB
}

func NewArticleRepository(db *DB) ArticleRepository {
	return &articleRepository{db: db}
}

func (r *articleRepository) GetByURLHash(hash string) (*Article, error) {
	var a Article
	err := r.db.QueryRow(`
		SELECT id, source_id, category, title, summary, content, url,
		       image_url, word_count, reading_time_seconds, difficulty,
		       is_processed, published_at, content_extracted_at, created_at
		FROM articles
		WHERE id = $1
	`, hash).Scan(
		&a.ID, &a.SourceID, &a.Category, &a.Title, &a.Summary, &a.Content,
		&a.URL, &a.ImageURL, &a.WordCount, &a.ReadingTimeSeconds,
		&a.Difficulty, &a.IsProcessed, &a.PublishedAt, &a.ContentExtractedAt,
		&a.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article by hash: %w", err)
	}

	return &a, nil
}

func (r *articleRepository) GetRecentTitles(category string, limit int) ([]string, error) {
	rows, err := r.db.Query(`
		SELECT title
		FROM articles
		WHERE category = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, category, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent titles: %w", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("failed to scan title row: %w", err)
		}
		titles = append(titles, title)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating title rows: %w", err)
	}

	return titles, nil
}

func (r *articleRepository) Create(article Article, sentences []Sentence) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO articles (
			id, source_id, category, title, summary, content, url,
			image_url, word_count, reading_time_seconds, difficulty,
			is_processed, published_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, article.ID, article.SourceID, article.Category, article.Title,
		article.Summary, article.Content, article.URL, article.ImageURL,
		article.WordCount, article.ReadingTimeSeconds, article.Difficulty,
		article.IsProcessed, article.PublishedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateArticle
		}
		return fmt.Errorf("failed to insert article: %w", err)
	}

	for _, s := range sentences {
		_, err = tx.Exec(`
			INSERT INTO sentences (article_id, position, text, word_count)
			VALUES ($1, $2, $3, $4)
		`, article.ID, s.Position, s.Text, s.WordCount)
		if err != nil {
			return fmt.Errorf("failed to insert sentence %d: %w", s.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit article: %w", err)
	}

	return nil
}

func (r *articleRepository) CountAll() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM articles").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return count, nil
}

func (r *articleRepository) CountByCategory() ([]CategoryCount, error) {
	rows, err := r.db.Query(`
		SELECT category, COUNT(*)
		FROM articles
		GROUP BY category
		ORDER BY category
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count by category: %w", err)
	}
	defer rows.Close()

	var counts []CategoryCount
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan category count: %w", err)
		}
		counts = append(counts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category counts: %w", err)
	}

	return counts, nil
}

func (r *articleRepository) CountBySource() ([]SourceCount, error) {
	rows, err := r.db.Query(`
		SELECT s.name, COUNT(a.id)
		FROM articles a
		JOIN sources s ON s.id = a.source_id
		GROUP BY s.name
		ORDER BY s.name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count by source: %w", err)
	}
	defer rows.Close()

	var counts []SourceCount
	for rows.Next() {
		var c SourceCount
		if err := rows.Scan(&c.Source, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan source count: %w", err)
		}
		counts = append(counts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source counts: %w", err)
	}

	return counts, nil
}

func (r *articleRepository) GetForExtraction(limit int) ([]ArticleRef, error) {
	rows, err := r.db.Query(`
		SELECT id, url
		FROM articles
		WHERE content = ''
		  AND content_extracted_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get articles for extraction: %w", err)
	}
	defer rows.Close()

	var refs []ArticleRef
	for rows.Next() {
		var ref ArticleRef
		if err := rows.Scan(&ref.ID, &ref.URL); err != nil {
			return nil, fmt.Errorf("failed to scan extraction row: %w", err)
		}
		refs = append(refs, ref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating extraction rows: %w", err)
	}

	return refs, nil
}

func (r *articleRepository) UpdateExtractedContent(id string, content string, summary string, wordCount, readingTimeSeconds, difficulty int, sentences []Sentence) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		UPDATE articles
		SET content = $1, summary = $2, word_count = $3,
		    reading_time_seconds = $4, difficulty = $5,
		    content_extracted_at = $6
		WHERE id = $7
	`, content, summary, wordCount, readingTimeSeconds, difficulty, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update extracted content: %w", err)
	}

	_, err = tx.Exec("DELETE FROM sentences WHERE article_id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete old sentences: %w", err)
	}

	for _, s := range sentences {
		_, err = tx.Exec(`
			INSERT INTO sentences (article_id, position, text, word_count)
			VALUES ($1, $2, $3, $4)
		`, id, s.Position, s.Text, s.WordCount)
		if err != nil {
			return fmt.Errorf("failed to insert sentence %d: %w", s.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit extracted content: %w", err)
	}

	return nil
}

func (r *articleRepository) MarkExtractionAttempted(id string, at time.Time) error {
	_, err := r.db.Exec(`
		UPDATE articles SET content_extracted_at = $1 WHERE id = $2
	`, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark extraction attempted: %w", err)
	}
	return nil
}

// isUniqueViolation detects SQLite primary key / unique index conflicts.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
