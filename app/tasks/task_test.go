package tasks

import (
	"testing"
)

func TestTask_RetryAccounting(t *testing.T) {
	task := NewTask(TaskTypeAggregate, "all")

	if task.GetRetryCount() != 0 {
		t.Errorf("New task should have retry count 0, got %d", task.GetRetryCount())
	}
	if !task.CanRetry() {
		t.Error("New task should be retryable")
	}

	for i := 0; i < DefaultMaxRetries; i++ {
		task.IncrementRetryCount()
	}

	if task.CanRetry() {
		t.Errorf("Task at %d retries should not be retryable", task.GetRetryCount())
	}
}

func TestTask_UniqueIDs(t *testing.T) {
	a := NewTask(TaskTypeAggregate, "all")
	b := NewTask(TaskTypeAggregate, "all")

	if a.GetID() == b.GetID() {
		t.Error("Expected distinct task IDs")
	}
}

func TestTask_DurationBeforeStart(t *testing.T) {
	task := NewTask(TaskTypeExtractContent, "backfill")
	if task.GetDuration() != 0 {
		t.Error("Task duration should be zero before Start")
	}

	task.Start()
	if task.StartedAt == nil {
		t.Error("Start should record a start time")
	}
}
