package tasks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lexfeed/lexfeed/app/database"
	"github.com/lexfeed/lexfeed/app/normalizer"
)

const extractTimeout = 30 * time.Second

// ExtractContentTask backfills full article text for stored articles whose
// feed item carried only a headline or short description.
type ExtractContentTask struct {
	Task
	httpClient  *http.Client
	articleRepo database.ArticleRepository
	userAgent   string
	batchSize   int
}

func NewExtractContentTask(httpClient *http.Client, articleRepo database.ArticleRepository, userAgent string, batchSize int) *ExtractContentTask {
	return &ExtractContentTask{
		Task:        NewTask(TaskTypeExtractContent, "backfill"),
		httpClient:  httpClient,
		articleRepo: articleRepo,
		userAgent:   userAgent,
		batchSize:   batchSize,
	}
}

func (t *ExtractContentTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	refs, err := t.articleRepo.GetForExtraction(t.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get articles for content extraction: %w", err)
	}

	if len(refs) == 0 {
		slog.Debug("No articles need content extraction")
		return nil
	}

	successCount := 0
	errorCount := 0

	for _, ref := range refs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		extractCtx, cancel := context.WithTimeout(ctx, extractTimeout)
		err := t.extractArticle(extractCtx, ref)
		cancel()

		if err != nil {
			slog.Error("Failed to extract content for article", "article_id", ref.ID, "url", ref.URL, "error", err)
			errorCount++

			// Record the attempt so the article is not retried forever.
			if markErr := t.articleRepo.MarkExtractionAttempted(ref.ID, time.Now().UTC()); markErr != nil {
				slog.Error("Failed to mark extraction attempt", "article_id", ref.ID, "error", markErr)
			}
		} else {
			successCount++
		}
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"duration", t.GetDuration(),
		"success", successCount,
		"errors", errorCount)

	return nil
}

func (t *ExtractContentTask) extractArticle(ctx context.Context, ref database.ArticleRef) error {
	if ref.URL == "" {
		return fmt.Errorf("article has no url")
	}

	data, err := t.fetchPage(ctx, ref.URL)
	if err != nil {
		return fmt.Errorf("failed to fetch article page: %w", err)
	}

	extracted, err := normalizer.ExtractReadable(data)
	if err != nil {
		return fmt.Errorf("failed to extract content: %w", err)
	}

	// Re-derive the structured fields from the full text.
	article := normalizer.Normalize("", extracted)

	sentences := make([]database.Sentence, len(article.Sentences))
	for i, s := range article.Sentences {
		sentences[i] = database.Sentence{
			ArticleID: ref.ID,
			Position:  s.Order,
			Text:      s.Text,
			WordCount: s.WordCount,
		}
	}

	err = t.articleRepo.UpdateExtractedContent(ref.ID, article.Content, article.Summary,
		article.WordCount, article.ReadingTimeSeconds, article.Difficulty, sentences)
	if err != nil {
		return fmt.Errorf("failed to store extracted content: %w", err)
	}

	return nil
}

func (t *ExtractContentTask) fetchPage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
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
