// Package dedup decides whether a candidate item is genuinely new or a
// near-duplicate of something already collected. The test is two-stage and
// short-circuiting: exact URL-hash identity first, then fuzzy title
// similarity against a bounded window of recently accepted titles.
package dedup

import (
	"fmt"
	"sync"

	"github.com/lexfeed/lexfeed/app/database"
	"github.com/lexfeed/lexfeed/app/sources"
	"github.com/lexfeed/lexfeed/app/textutil"
)

// DefaultThreshold is the fuzzy-title similarity above which a candidate is
// rejected as a duplicate.
const DefaultThreshold = 0.8

// DefaultWindowSize bounds the per-category recency window of titles the
// fuzzy stage compares against.
const DefaultWindowSize = 50

// Decision is the outcome for one candidate. Reason is set on rejection.
type Decision struct {
	Accepted bool
	Reason   string
}

// Engine holds the run-independent configuration of the duplicate test.
type Engine struct {
	articles   database.ArticleRepository
	threshold  float64
	windowSize int
}

func NewEngine(articles database.ArticleRepository, threshold float64, windowSize int) *Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}

	return &Engine{
		articles:   articles,
		threshold:  threshold,
		windowSize: windowSize,
	}
}

// NewRun builds the per-run duplicate state for the given categories: the
// set of URL hashes accepted so far in this run, and per-category recency
// rings of normalized titles preloaded from storage. The returned Run is
// safe for concurrent use by source workers.
func (e *Engine) NewRun(categories []string) (*Run, error) {
	run := &Run{
		engine: e,
		seen:   make(map[string]struct{}),
		recent: make(map[string]*titleRing, len(categories)),
	}

	for _, category := range categories {
		ring := newTitleRing(e.windowSize)
		titles, err := e.articles.GetRecentTitles(category, e.windowSize)
		if err != nil {
			return nil, fmt.Errorf("failed to preload recent titles for %s: %w", category, err)
		}
		// Newest-first from storage; push oldest first so eviction drops
		// the oldest titles.
		for i := len(titles) - 1; i >= 0; i-- {
			ring.push(textutil.NormalizeTitle(titles[i]))
		}
		run.recent[category] = ring
	}

	return run, nil
}

// Run carries the mutable duplicate state of a single aggregation run. All
// state is guarded by one mutex so that for any two candidates with the same
// URL hash, whichever is checked first wins as new and the other is a
// duplicate, regardless of worker scheduling.
type Run struct {
	engine *Engine
	mu     sync.Mutex
	seen   map[string]struct{}
	recent map[string]*titleRing
}

// Check runs the two-stage duplicate test for one candidate. On acceptance
// the candidate's URL hash is recorded under the lock, so of any two racing
// candidates with the same URL exactly one wins. The title enters the
// recency window only through Confirm, once the candidate is persisted.
func (r *Run) Check(candidate sources.CandidateItem) (Decision, error) {
	hash := textutil.HashURL(candidate.URL)

	r.mu.Lock()
	defer r.mu.Unlock()

	// Exact stage: same URL accepted earlier in this run.
	if _, ok := r.seen[hash]; ok {
		return Decision{Reason: "duplicate URL (seen this run)"}, nil
	}

	// Exact stage: same URL already persisted.
	existing, err := r.engine.articles.GetByURLHash(hash)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to look up url hash: %w", err)
	}
	if existing != nil {
		return Decision{Reason: "duplicate URL (already stored)"}, nil
	}

	// Fuzzy stage: title similarity against the recency window.
	normalized := textutil.NormalizeTitle(candidate.Title)
	for _, title := range r.ring(candidate.Category).titles() {
		score := textutil.Similarity(normalized, title)
		if score >= r.engine.threshold {
			return Decision{Reason: fmt.Sprintf("similar title (score %.2f)", score)}, nil
		}
	}

	r.seen[hash] = struct{}{}

	return Decision{Accepted: true}, nil
}

// Confirm records an accepted candidate's normalized title in the recency
// window. Callers invoke it after the article is stored, so titles of
// never-persisted articles do not suppress later fuzzy matches.
func (r *Run) Confirm(candidate sources.CandidateItem) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ring(candidate.Category).push(textutil.NormalizeTitle(candidate.Title))
}

// Forget releases an accepted candidate whose persistence failed, so the
// same URL gets another chance later in the run.
func (r *Run) Forget(candidate sources.CandidateItem) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.seen, textutil.HashURL(candidate.URL))
}

// ring returns the recency window for a category, creating it for
// categories that appear mid-run. Caller holds r.mu.
func (r *Run) ring(category string) *titleRing {
	ring := r.recent[category]
	if ring == nil {
		ring = newTitleRing(r.engine.windowSize)
		r.recent[category] = ring
	}
	return ring
}

// ArticleID returns the durable identity derived from the canonical URL.
func ArticleID(url string) string {
	return textutil.HashURL(url)
}
