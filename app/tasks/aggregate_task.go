package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lexfeed/lexfeed/app/aggregator"
)

// AggregateTask runs one aggregation pass over a set of categories. An empty
// category list aggregates everything with enabled sources.
type AggregateTask struct {
	Task
	aggregator *aggregator.Aggregator
	categories []string
}

func NewAggregateTask(agg *aggregator.Aggregator, categories []string) *AggregateTask {
	label := "all"
	if len(categories) > 0 {
		label = strings.Join(categories, ",")
	}

	return &AggregateTask{
		Task:       NewTask(TaskTypeAggregate, label),
		aggregator: agg,
		categories: categories,
	}
}

func (t *AggregateTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.aggregator.Aggregate(ctx, t.categories)
	if errors.Is(err, aggregator.ErrNoSources) {
		// Nothing configured yet; not worth a retry cycle.
		slog.Debug("Skipping aggregation, no sources configured")
		return nil
	}
	if err != nil {
		return fmt.Errorf("aggregation failed: %w", err)
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"categories", t.GetLabel(),
		"duration", t.GetDuration(),
		"fetched", result.TotalFetched,
		"new", result.TotalProcessed,
		"duplicates", result.DuplicatesFound,
		"errors", len(result.Errors))

	for _, msg := range result.Errors {
		slog.Warn("Source error during scheduled aggregation", "error", msg)
	}

	return nil
}
