package sources

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/lexfeed/lexfeed/app/database"
)

const rssFetchTimeout = 30 * time.Second

var _ Adapter = (*RSSAdapter)(nil)

// RSSAdapter polls RSS/Atom feeds and maps their items into candidate items.
type RSSAdapter struct {
	sourceRepo   database.SourceRepository
	httpClient   *http.Client
	gofeedParser *gofeed.Parser
	userAgent    string
}

func NewRSSAdapter(sourceRepo database.SourceRepository, httpClient *http.Client, userAgent string) *RSSAdapter {
	return &RSSAdapter{
		sourceRepo:   sourceRepo,
		httpClient:   httpClient,
		gofeedParser: gofeed.NewParser(),
		userAgent:    userAgent,
	}
}

func (a *RSSAdapter) Kind() string {
	return KindRSS
}

func (a *RSSAdapter) ListDueSources(ctx context.Context, category string) ([]database.Source, error) {
	enabled, err := a.sourceRepo.GetEnabled(category, KindRSS)
	if err != nil {
		return nil, fmt.Errorf("failed to list rss sources: %w", err)
	}

	now := time.Now().UTC()
	due := make([]database.Source, 0, len(enabled))
	for _, s := range enabled {
		if s.IsDue(now) {
			due = append(due, s)
		}
	}

	return due, nil
}

func (a *RSSAdapter) Fetch(ctx context.Context, source database.Source) ([]CandidateItem, error) {
	data, err := a.fetchFeed(ctx, source.URL)
	if err != nil {
		return nil, err
	}

	feed, err := a.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	items := make([]CandidateItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil || item.Link == "" || item.Title == "" {
			continue
		}
		items = append(items, a.normalizeItem(source, item))
	}

	return items, nil
}

func (a *RSSAdapter) normalizeItem(source database.Source, item *gofeed.Item) CandidateItem {
	candidate := CandidateItem{
		SourceID:   source.ID,
		SourceName: source.Name,
		Category:   source.Category,
		Title:      item.Title,
		RawSummary: item.Description,
		RawContent: item.Content,
		URL:        item.Link,
		Tags:       item.Categories,
	}

	if item.PublishedParsed != nil {
		candidate.PublishedAt = *item.PublishedParsed
	}

	if item.Image != nil {
		candidate.ImageURL = item.Image.URL
	} else if len(item.Enclosures) > 0 && item.Enclosures[0] != nil {
		candidate.ImageURL = item.Enclosures[0].URL
	}

	return candidate
}

func (a *RSSAdapter) fetchFeed(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, rssFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
