package database

import (
	"time"
)

// Source is a configured upstream provider. Kind distinguishes the adapter
// that handles it (rss, headline_api).
type Source struct {
	ID                    string
	Name                  string
	Kind                  string
	URL                   string
	Category              string
	Enabled               bool
	UpdateIntervalMinutes int
	LastFetchAt           *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// IsDue reports whether the source should be polled: never fetched, or the
// configured interval has elapsed since the last poll.
func (s Source) IsDue(now time.Time) bool {
	if s.LastFetchAt == nil {
		return true
	}
	return now.Sub(*s.LastFetchAt) >= time.Duration(s.UpdateIntervalMinutes)*time.Minute
}

// Article is a persisted, normalized article. ID is derived from the
// canonical URL hash, so re-storing the same URL is idempotent.
type Article struct {
	ID                 string
	SourceID           string
	Category           string
	Title              string
	Summary            string
	Content            string
	URL                string
	ImageURL           string
	WordCount          int
	ReadingTimeSeconds int
	Difficulty         int
	IsProcessed        bool
	PublishedAt        *time.Time
	ContentExtractedAt *time.Time
	CreatedAt          time.Time
}

// Sentence is one ordered sentence of an article. Position is 1-based.
type Sentence struct {
	ArticleID string
	Position  int
	Text      string
	WordCount int
}

// CategoryCount pairs a category with its stored article count.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// SourceCount pairs a source name with its stored article count.
type SourceCount struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

// ArticleRef identifies an article pending full-content extraction.
type ArticleRef struct {
	ID  string
	URL string
}
