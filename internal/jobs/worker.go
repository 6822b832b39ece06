package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/kimhsiao/photosync/internal/apperr"
	"github.com/kimhsiao/photosync/internal/db"
	"github.com/kimhsiao/photosync/internal/logging"
	"github.com/kimhsiao/photosync/internal/models"
)

// Notifier publishes task state to progress subscribers. Delivery is
// best-effort; implementations must never block the caller.
type Notifier interface {
	NotifyTask(task *models.Task, message string)
}

// Pool is a fixed set of long-lived worker loops draining the queue. A
// failure inside one work item never terminates its loop: the failure is
// logged, the task record is moved to error, subscribers are notified, and
// the loop resumes dequeuing. Only cancellation stops a loop, and an
// in-flight item is never forcibly aborted.
type Pool struct {
	queue    *Queue
	repo     *db.Repository
	notifier Notifier
	workers  int

	wg  sync.WaitGroup
	log *logrus.Entry
}

// NewPool creates a worker pool with the given size (minimum 1).
func NewPool(queue *Queue, repo *db.Repository, notifier Notifier, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		queue:    queue,
		repo:     repo,
		notifier: notifier,
		workers:  workers,
		log:      logging.WithComponent("worker"),
	}
}

// Start launches the worker loops. They stop dequeuing when ctx fires.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.loop(ctx, id)
		}(i)
	}
}

// Wait blocks until all worker loops have exited, including any item that
// was in flight when the context fired.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) loop(ctx context.Context, id int) {
	p.log.WithField("worker", id).Info("worker started")
	for {
		item, err := p.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, apperr.ErrCancelled) {
				p.log.WithField("worker", id).Info("worker stopped")
				return
			}
			p.log.WithError(err).Error("dequeue failed")
			continue
		}
		p.execute(ctx, id, item)
	}
}

// execute runs one work item with failure isolation.
func (p *Pool) execute(ctx context.Context, id int, item WorkItem) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		err = item.Run(ctx)
	}()

	if err == nil {
		jobsCompletedTotal.Inc()
		return
	}

	jobsFailedTotal.Inc()
	p.log.WithFields(logrus.Fields{
		"worker": id,
		"task":   item.TaskID,
	}).WithError(err).Error("work item failed")

	if item.TaskID == "" {
		return
	}
	task, ferr := p.repo.FailTask(item.TaskID, err.Error())
	if ferr != nil {
		// Already terminal (the body closed the task itself) or the record
		// is gone; either way there is nothing left to mark.
		p.log.WithField("task", item.TaskID).WithError(ferr).Debug("could not mark task failed")
		return
	}
	if p.notifier != nil {
		p.notifier.NotifyTask(task, task.ErrorMessage)
	}
}
