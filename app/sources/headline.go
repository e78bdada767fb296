package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/lexfeed/lexfeed/app/database"
)

const (
	headlineFetchTimeout    = 15 * time.Second
	headlinePageSize        = 50
	headlineMaxResponseSize = 2 << 20 // 2MB
)

var _ Adapter = (*HeadlineAPIAdapter)(nil)

// HeadlineAPIAdapter pulls top headlines from a NewsAPI-compatible endpoint.
// One configured source maps to one headline category query.
type HeadlineAPIAdapter struct {
	sourceRepo database.SourceRepository
	httpClient *http.Client
	baseURL    string
	apiKey     string
	userAgent  string
}

func NewHeadlineAPIAdapter(sourceRepo database.SourceRepository, httpClient *http.Client, baseURL, apiKey, userAgent string) *HeadlineAPIAdapter {
	return &HeadlineAPIAdapter{
		sourceRepo: sourceRepo,
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		userAgent:  userAgent,
	}
}

func (a *HeadlineAPIAdapter) Kind() string {
	return KindHeadlineAPI
}

func (a *HeadlineAPIAdapter) ListDueSources(ctx context.Context, category string) ([]database.Source, error) {
	if a.apiKey == "" {
		// Adapter not configured; contributes no sources rather than
		// failing every run.
		return nil, nil
	}

	enabled, err := a.sourceRepo.GetEnabled(category, KindHeadlineAPI)
	if err != nil {
		return nil, fmt.Errorf("failed to list headline sources: %w", err)
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

type headlineResponse struct {
	Status       string            `json:"status"`
	Code         string            `json:"code"`
	Message      string            `json:"message"`
	TotalResults int               `json:"totalResults"`
	Articles     []headlineArticle `json:"articles"`
}

type headlineArticle struct {
	Source struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage"`
	PublishedAt string `json:"publishedAt"`
	Content     string `json:"content"`
}

func (a *HeadlineAPIAdapter) Fetch(ctx context.Context, source database.Source) ([]CandidateItem, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, headlineFetchTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/top-headlines?category=%s&pageSize=%d",
		a.baseURL, url.QueryEscape(source.Category), headlinePageSize)

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("X-Api-Key", a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch headlines: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, headlineMaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var parsed headlineResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode headline response: %w", err)
	}

	if parsed.Status != "ok" {
		return nil, fmt.Errorf("headline API error: %s (%s)", parsed.Message, parsed.Code)
	}

	items := make([]CandidateItem, 0, len(parsed.Articles))
	for _, article := range parsed.Articles {
		if article.URL == "" || article.Title == "" {
			continue
		}

		candidate := CandidateItem{
			SourceID:   source.ID,
			SourceName: source.Name,
			Category:   source.Category,
			Title:      article.Title,
			RawSummary: article.Description,
			RawContent: article.Content,
			URL:        article.URL,
			ImageURL:   article.URLToImage,
		}

		if t, err := time.Parse(time.RFC3339, article.PublishedAt); err == nil {
			candidate.PublishedAt = t
		}

		if article.Source.Name != "" {
			candidate.Tags = []string{article.Source.Name}
		}

		items = append(items, candidate)
	}

	return items, nil
}
