package models

import (
	"fmt"
	"time"
)

// TaskKind identifies what a task does.
type TaskKind string

const (
	TaskKindDownload TaskKind = "download"
	TaskKindResize   TaskKind = "resize"
)

// TaskStatus represents a task's lifecycle state.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusError      TaskStatus = "error"
)

// Task is the persisted record of one download or resize run.
//
// Lifecycle: pending -> processing -> completed | error. Both end states are
// terminal. Timestamps are unix seconds; zero means unset.
type Task struct {
	ID           UUID       `db:"id" json:"id"`
	Kind         TaskKind   `db:"kind" json:"kind"`
	Status       TaskStatus `db:"status" json:"status"`
	AlbumID      string     `db:"album_id" json:"album_id,omitempty"`
	AlbumName    string     `db:"album_name" json:"album_name,omitempty"`
	ProfileID    int64      `db:"profile_id" json:"profile_id,omitempty"` // resize only, 0 = none
	Total        int        `db:"total" json:"total"`
	Processed    int        `db:"processed" json:"processed"`
	Failed       int        `db:"failed" json:"failed"`
	Skipped      int        `db:"skipped" json:"skipped"`
	ErrorMessage string     `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    int64      `db:"created_at" json:"created_at"`
	StartedAt    int64      `db:"started_at" json:"started_at,omitempty"`
	CompletedAt  int64      `db:"completed_at" json:"completed_at,omitempty"`
}

// TableName returns the table name for Task.
func (Task) TableName() string {
	return "tasks"
}

// IsTerminal reports whether the task has reached completed or error.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusError
}

// Claim moves a pending task to processing. A second claim of a processing
// task is a no-op and does not overwrite StartedAt. Claiming a terminal task
// is rejected.
func (t *Task) Claim(now time.Time) error {
	switch t.Status {
	case TaskStatusPending:
		t.Status = TaskStatusProcessing
		if t.StartedAt == 0 {
			t.StartedAt = now.Unix()
		}
		return nil
	case TaskStatusProcessing:
		// idempotent re-claim
		return nil
	default:
		return fmt.Errorf("cannot claim task %s in state %s", t.ID, t.Status)
	}
}

// Advance adds to the progress counters. Only allowed while processing, and
// counters may never exceed the announced total.
func (t *Task) Advance(processed, failed, skipped int) error {
	if t.Status != TaskStatusProcessing {
		return fmt.Errorf("cannot advance task %s in state %s", t.ID, t.Status)
	}
	if processed < 0 || failed < 0 || skipped < 0 {
		return fmt.Errorf("negative progress increment for task %s", t.ID)
	}
	next := t.Processed + processed + t.Failed + failed + t.Skipped + skipped
	if next > t.Total {
		return fmt.Errorf("task %s progress %d exceeds total %d", t.ID, next, t.Total)
	}
	t.Processed += processed
	t.Failed += failed
	t.Skipped += skipped
	return nil
}

// Done returns processed+failed+skipped, the number of units accounted for.
func (t *Task) Done() int {
	return t.Processed + t.Failed + t.Skipped
}

// Complete moves a processing task to completed. Per-item failures do not
// demote the run to error; a task that ran to exhaustion with failed > 0
// still completes. Error is reserved for whole-job aborts (see Fail).
func (t *Task) Complete(now time.Time) error {
	if t.Status != TaskStatusProcessing {
		return fmt.Errorf("cannot complete task %s in state %s", t.ID, t.Status)
	}
	t.Status = TaskStatusCompleted
	t.CompletedAt = now.Unix()
	return nil
}

// Fail moves a task to the terminal error state with a message. Allowed from
// pending too, so a task whose body never ran (for example queue rejection
// during shutdown) can still be closed out.
func (t *Task) Fail(now time.Time, message string) error {
	if t.IsTerminal() {
		return fmt.Errorf("cannot fail task %s in state %s", t.ID, t.Status)
	}
	if message == "" {
		message = "unknown error"
	}
	t.Status = TaskStatusError
	t.ErrorMessage = message
	t.CompletedAt = now.Unix()
	return nil
}
