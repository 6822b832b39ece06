// Package db provides persistence for task records and their state machine.
package db

import (
	"database/sql"
	"errors"
	"time"

	"github.com/kimhsiao/photosync/internal/apperr"
	"github.com/kimhsiao/photosync/internal/models"
	"github.com/kimhsiao/photosync/internal/uuid"
)

const taskColumns = `id, kind, status, album_id, album_name, profile_id,
	total, processed, failed, skipped, error_message,
	created_at, started_at, completed_at`

// CreateTask persists a new task in the pending state and assigns its id.
func (r *Repository) CreateTask(task *models.Task) error {
	if task.ID == "" {
		task.ID = models.UUID(uuid.New())
	}
	task.Status = models.TaskStatusPending
	task.CreatedAt = time.Now().Unix()

	_, err := r.db.Exec(`
	INSERT INTO tasks (id, kind, status, album_id, album_name, profile_id, total, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Kind, task.Status, task.AlbumID, task.AlbumName,
		task.ProfileID, task.Total, task.CreatedAt)
	return apperr.Persistence(err)
}

// GetTask retrieves a task by id.
func (r *Repository) GetTask(id string) (*models.Task, error) {
	stmt, err := r.PrepareStmt("SELECT " + taskColumns + " FROM tasks WHERE id = ?")
	if err != nil {
		return nil, err
	}
	task, err := scanTask(stmt.QueryRow(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Wrap(apperr.ErrNotFound, "task %s", id)
	}
	return task, err
}

// ListTasks returns the most recent tasks, newest first.
func (r *Repository) ListTasks(limit int) ([]*models.Task, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(
		"SELECT "+taskColumns+" FROM tasks ORDER BY created_at DESC, id LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// FindCompletedTask looks up an earlier completed run for the same
// (kind, album, profile). Producers use this to short-circuit duplicate work.
func (r *Repository) FindCompletedTask(kind models.TaskKind, albumID string, profileID int64) (*models.Task, error) {
	stmt, err := r.PrepareStmt(`
	SELECT ` + taskColumns + ` FROM tasks
	WHERE kind = ? AND album_id = ? AND profile_id = ? AND status = 'completed'
	ORDER BY completed_at DESC LIMIT 1`)
	if err != nil {
		return nil, err
	}
	task, err := scanTask(stmt.QueryRow(kind, albumID, profileID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return task, err
}

// ClaimTask transitions the task to processing and persists it. Claiming is
// idempotent: an already-set start timestamp is kept.
func (r *Repository) ClaimTask(id string) (*models.Task, error) {
	return r.mutateTask(id, func(task *models.Task) error {
		return task.Claim(time.Now())
	})
}

// SetTaskTotal updates the announced unit count, for jobs whose size is only
// known after the remote asset list arrives. Allowed only while processing
// and never below the units already accounted for.
func (r *Repository) SetTaskTotal(id string, total int) (*models.Task, error) {
	return r.mutateTask(id, func(task *models.Task) error {
		if task.Status != models.TaskStatusProcessing {
			return apperr.Invalid("cannot set total for task %s in state %s", id, task.Status)
		}
		if total < task.Done() {
			return apperr.Invalid("total %d below progress %d for task %s", total, task.Done(), id)
		}
		task.Total = total
		return nil
	})
}

// AdvanceTask increments the progress counters and persists them.
func (r *Repository) AdvanceTask(id string, processed, failed, skipped int) (*models.Task, error) {
	return r.mutateTask(id, func(task *models.Task) error {
		return task.Advance(processed, failed, skipped)
	})
}

// CompleteTask moves the task to the terminal completed state.
func (r *Repository) CompleteTask(id string) (*models.Task, error) {
	return r.mutateTask(id, func(task *models.Task) error {
		return task.Complete(time.Now())
	})
}

// FailTask moves the task to the terminal error state with a message.
func (r *Repository) FailTask(id, message string) (*models.Task, error) {
	return r.mutateTask(id, func(task *models.Task) error {
		return task.Fail(time.Now(), message)
	})
}

// mutateTask loads the task, applies the mutation, and writes the result
// back. A failed write leaves the stored record in its last persisted state.
func (r *Repository) mutateTask(id string, mutate func(*models.Task) error) (*models.Task, error) {
	task, err := r.GetTask(id)
	if err != nil {
		return nil, err
	}
	if err := mutate(task); err != nil {
		return nil, err
	}

	_, err = r.db.Exec(`
	UPDATE tasks SET status = ?, total = ?, processed = ?, failed = ?, skipped = ?,
		error_message = ?, started_at = ?, completed_at = ?
	WHERE id = ?`,
		task.Status, task.Total, task.Processed, task.Failed, task.Skipped,
		task.ErrorMessage, task.StartedAt, task.CompletedAt, task.ID)
	if err != nil {
		return nil, apperr.Persistence(err)
	}
	return task, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var task models.Task
	err := row.Scan(
		&task.ID, &task.Kind, &task.Status, &task.AlbumID, &task.AlbumName,
		&task.ProfileID, &task.Total, &task.Processed, &task.Failed, &task.Skipped,
		&task.ErrorMessage, &task.CreatedAt, &task.StartedAt, &task.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &task, nil
}
