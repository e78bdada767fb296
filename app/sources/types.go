// Package sources defines the adapter capability the aggregation pipeline
// consumes and the concrete adapters behind it: RSS/Atom feeds and a
// headline API. The pipeline itself never branches on the source kind.
package sources

import (
	"context"
	"time"

	"github.com/lexfeed/lexfeed/app/database"
)

// Adapter kinds, used in source configuration and run breakdowns.
const (
	KindRSS         = "rss"
	KindHeadlineAPI = "headline_api"
)

// CandidateItem is a raw article produced by an adapter for one run. It is
// owned by the run that fetched it and discarded once the run decides its
// fate.
type CandidateItem struct {
	SourceID    string
	SourceName  string
	Category    string
	Title       string
	RawSummary  string
	RawContent  string
	URL         string
	ImageURL    string
	PublishedAt time.Time
	Tags        []string
}

// Adapter is the two-operation capability each source kind exposes. A fetch
// failure concerns a single source and must not abort other sources.
type Adapter interface {
	Kind() string

	// ListDueSources returns the enabled sources of this kind in the given
	// category that are due for polling.
	ListDueSources(ctx context.Context, category string) ([]database.Source, error)

	// Fetch pulls the current candidate items from one source. Item order
	// follows the upstream payload.
	Fetch(ctx context.Context, source database.Source) ([]CandidateItem, error)
}
