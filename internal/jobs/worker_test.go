package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kimhsiao/photosync/internal/db"
	"github.com/kimhsiao/photosync/internal/models"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.TaskStatus
}

func (n *recordingNotifier) NotifyTask(task *models.Task, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, task.Status)
}

func (n *recordingNotifier) statuses() []models.TaskStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.TaskStatus, len(n.events))
	copy(out, n.events)
	return out
}

func newTestRepo(t *testing.T) *db.Repository {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.NewMigrator(database.DB).Up(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db.NewRepository(database.DB)
}

func createTask(t *testing.T, repo *db.Repository, kind models.TaskKind, albumID string) *models.Task {
	t.Helper()
	task := &models.Task{Kind: kind, AlbumID: albumID}
	if err := repo.CreateTask(task); err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func waitForTerminal(t *testing.T, repo *db.Repository, id string) *models.Task {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		task, err := repo.GetTask(id)
		if err != nil {
			t.Fatalf("get task: %v", err)
		}
		if task.IsTerminal() {
			return task
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s never reached a terminal state", id)
	return nil
}

func TestWorkerMarksFailureAndContinues(t *testing.T) {
	repo := newTestRepo(t)
	notifier := &recordingNotifier{}
	queue := NewQueue(10)
	pool := NewPool(queue, repo, notifier, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	failing := createTask(t, repo, models.TaskKindDownload, "album-1")
	healthy := createTask(t, repo, models.TaskKindDownload, "album-2")

	queue.Enqueue(ctx, WorkItem{
		TaskID: failing.ID.String(),
		Run: func(ctx context.Context) error {
			return errors.New("remote gone")
		},
	})
	queue.Enqueue(ctx, WorkItem{
		TaskID: healthy.ID.String(),
		Run: func(ctx context.Context) error {
			if _, err := repo.ClaimTask(healthy.ID.String()); err != nil {
				return err
			}
			_, err := repo.CompleteTask(healthy.ID.String())
			return err
		},
	})

	got := waitForTerminal(t, repo, failing.ID.String())
	if got.Status != models.TaskStatusError {
		t.Fatalf("failing task: got %s, want error", got.Status)
	}
	if got.ErrorMessage != "remote gone" {
		t.Fatalf("error message not persisted: %q", got.ErrorMessage)
	}

	// The same worker must still process the next item.
	got = waitForTerminal(t, repo, healthy.ID.String())
	if got.Status != models.TaskStatusCompleted {
		t.Fatalf("healthy task: got %s, want completed", got.Status)
	}

	for _, status := range notifier.statuses() {
		if status != models.TaskStatusError {
			t.Fatalf("worker should only notify failures it marks, saw %s", status)
		}
	}
}

func TestWorkerRecoversFromPanic(t *testing.T) {
	repo := newTestRepo(t)
	queue := NewQueue(10)
	pool := NewPool(queue, repo, &recordingNotifier{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	panicking := createTask(t, repo, models.TaskKindResize, "album-1")
	after := createTask(t, repo, models.TaskKindResize, "album-2")

	queue.Enqueue(ctx, WorkItem{
		TaskID: panicking.ID.String(),
		Run: func(ctx context.Context) error {
			panic("corrupt input")
		},
	})
	queue.Enqueue(ctx, WorkItem{
		TaskID: after.ID.String(),
		Run: func(ctx context.Context) error {
			if _, err := repo.ClaimTask(after.ID.String()); err != nil {
				return err
			}
			_, err := repo.CompleteTask(after.ID.String())
			return err
		},
	})

	got := waitForTerminal(t, repo, panicking.ID.String())
	if got.Status != models.TaskStatusError {
		t.Fatalf("panicking task: got %s, want error", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Fatal("panic must be recorded as the task's error message")
	}

	got = waitForTerminal(t, repo, after.ID.String())
	if got.Status != models.TaskStatusCompleted {
		t.Fatalf("task after panic: got %s, want completed", got.Status)
	}
}

func TestWorkerStopsOnCancel(t *testing.T) {
	repo := newTestRepo(t)
	queue := NewQueue(10)
	pool := NewPool(queue, repo, &recordingNotifier{}, 2)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		pool.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not stop after cancellation")
	}
}
