package models

import (
	"testing"
	"time"
)

func newTask(total int) *Task {
	return &Task{
		ID:        UUID("11111111-1111-4111-8111-111111111111"),
		Kind:      TaskKindDownload,
		Status:    TaskStatusPending,
		Total:     total,
		CreatedAt: time.Now().Unix(),
	}
}

// TestTaskClaimIdempotent tests that claiming twice keeps the first StartedAt.
func TestTaskClaimIdempotent(t *testing.T) {
	task := newTask(5)

	first := time.Unix(1000, 0)
	if err := task.Claim(first); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}

	if task.Status != TaskStatusProcessing {
		t.Errorf("Expected processing status, got %s", task.Status)
	}
	if task.StartedAt != 1000 {
		t.Errorf("Expected StartedAt 1000, got %d", task.StartedAt)
	}

	// Second claim must not overwrite the start timestamp
	if err := task.Claim(time.Unix(2000, 0)); err != nil {
		t.Fatalf("Second claim failed: %v", err)
	}
	if task.StartedAt != 1000 {
		t.Errorf("Second claim overwrote StartedAt: got %d", task.StartedAt)
	}
}

// TestTaskClaimTerminal tests that terminal tasks cannot be claimed again.
func TestTaskClaimTerminal(t *testing.T) {
	task := newTask(1)
	task.Claim(time.Unix(1000, 0))
	task.Complete(time.Unix(1001, 0))

	if err := task.Claim(time.Unix(1002, 0)); err == nil {
		t.Error("Expected error claiming completed task")
	}
}

// TestTaskAdvanceInvariant tests that progress never exceeds total.
func TestTaskAdvanceInvariant(t *testing.T) {
	task := newTask(3)
	task.Claim(time.Unix(1000, 0))

	if err := task.Advance(1, 1, 0); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if err := task.Advance(0, 0, 1); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}

	if task.Done() != 3 {
		t.Errorf("Expected 3 units done, got %d", task.Done())
	}

	// Any further increment violates processed+failed+skipped <= total
	if err := task.Advance(1, 0, 0); err == nil {
		t.Error("Expected error advancing past total")
	}
	if task.Processed != 1 || task.Failed != 1 || task.Skipped != 1 {
		t.Errorf("Counters mutated by rejected advance: %d/%d/%d",
			task.Processed, task.Failed, task.Skipped)
	}
}

// TestTaskAdvanceRequiresProcessing tests that pending tasks reject progress.
func TestTaskAdvanceRequiresProcessing(t *testing.T) {
	task := newTask(3)
	if err := task.Advance(1, 0, 0); err == nil {
		t.Error("Expected error advancing pending task")
	}
}

// TestTaskCompleteWithFailures tests the partial-success policy: a run with
// per-item failures still terminates as completed.
func TestTaskCompleteWithFailures(t *testing.T) {
	task := newTask(4)
	task.Claim(time.Unix(1000, 0))
	task.Advance(2, 2, 0)

	if err := task.Complete(time.Unix(1005, 0)); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if task.Status != TaskStatusCompleted {
		t.Errorf("Expected completed, got %s", task.Status)
	}
	if task.Failed != 2 {
		t.Errorf("Expected failed count preserved, got %d", task.Failed)
	}
	if task.CompletedAt < task.StartedAt {
		t.Errorf("CompletedAt %d before StartedAt %d", task.CompletedAt, task.StartedAt)
	}
}

// TestTaskFail tests the whole-job abort path.
func TestTaskFail(t *testing.T) {
	task := newTask(4)
	task.Claim(time.Unix(1000, 0))

	if err := task.Fail(time.Unix(1001, 0), "remote unreachable"); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}
	if task.Status != TaskStatusError {
		t.Errorf("Expected error status, got %s", task.Status)
	}
	if task.ErrorMessage == "" {
		t.Error("Expected non-empty error message")
	}

	// Terminal states are final
	if err := task.Fail(time.Unix(1002, 0), "again"); err == nil {
		t.Error("Expected error failing a terminal task")
	}
	if err := task.Complete(time.Unix(1002, 0)); err == nil {
		t.Error("Expected error completing a terminal task")
	}
}

// TestTaskFailFromPending tests closing out a task whose body never ran.
func TestTaskFailFromPending(t *testing.T) {
	task := newTask(4)
	if err := task.Fail(time.Unix(1001, 0), ""); err != nil {
		t.Fatalf("Fail from pending failed: %v", err)
	}
	if task.ErrorMessage == "" {
		t.Error("Expected default error message")
	}
}
