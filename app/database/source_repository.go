package database

import (
	"fmt"
	"strings"
	"time"
)

var _ SourceRepository = (*sourceRepository)(nil)

type sourceRepository struct {
	db *DB
}

func NewSourceRepository(db *DB) SourceRepository {
	return &sourceRepository{db: db}
}

func (r *sourceRepository) Upsert(source Source) error {
	_, err := r.db.Exec(`
		INSERT INTO sources (id, name, kind, url, category, enabled, update_interval_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			kind = EXCLUDED.kind,
			url = EXCLUDED.url,
			category = EXCLUDED.category,
			enabled = EXCLUDED.enabled,
			update_interval_minutes = EXCLUDED.update_interval_minutes,
			updated_at = CURRENT_TIMESTAMP
	`, source.ID, source.Name, source.Kind, source.URL, source.Category,
		source.Enabled, source.UpdateIntervalMinutes)
	if err != nil {
		return fmt.Errorf("failed to upsert source: %w", err)
	}

	return nil
}

func (r *sourceRepository) GetEnabled(category, kind string) ([]Source, error) {
	rows, err := r.db.Query(`
		SELECT id, name, kind, url, category, enabled,
		       update_interval_minutes, last_fetch_at, created_at, updated_at
		FROM sources
		WHERE category = $1 AND kind = $2 AND enabled = 1
		ORDER BY id
	`, category, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to get enabled sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var s Source
		err := rows.Scan(&s.ID, &s.Name, &s.Kind, &s.URL, &s.Category,
			&s.Enabled, &s.UpdateIntervalMinutes, &s.LastFetchAt,
			&s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source rows: %w", err)
	}

	return sources, nil
}

func (r *sourceRepository) CountConfigured(categories []string) (int, error) {
	if len(categories) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(categories))
	args := make([]interface{}, len(categories))
	for i, c := range categories {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = c
	}

	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM sources
		WHERE enabled = 1 AND category IN (%s)
	`, strings.Join(placeholders, ", "))

	var count int
	if err := r.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count configured sources: %w", err)
	}

	return count, nil
}

func (r *sourceRepository) Categories() ([]string, error) {
	rows, err := r.db.Query(`
		SELECT DISTINCT category FROM sources
		WHERE enabled = 1
		ORDER BY category
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan category row: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category rows: %w", err)
	}

	return categories, nil
}

func (r *sourceRepository) UpdateLastFetch(id string, at time.Time) error {
	_, err := r.db.Exec(`
		UPDATE sources
		SET last_fetch_at = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
	`, at, id)
	if err != nil {
		return fmt.Errorf("failed to update last fetch time: %w", err)
	}

	return nil
}
