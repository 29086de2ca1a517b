package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

type deliverer interface {
	Deliver(ctx context.Context, job *Job) error
}

type Worker struct {
	queue       *Queue
	dispatcher  deliverer
	maxAttempts int
	concurrency int
	pollTimeout time.Duration
}

func NewWorker(q *Queue, d deliverer, maxAttempts, concurrency int) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Worker{
		queue:       q,
		dispatcher:  d,
		maxAttempts: maxAttempts,
		concurrency: concurrency,
		pollTimeout: 5 * time.Second,
	}
}

// Run starts the consumers and blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx)
		}()
	}
	wg.Wait()
}

func (w *Worker) loop(ctx context.Context) {
	backOff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		_, err := w.processNext(ctx)
		if err == nil {
			backOff = time.Second
			continue
		}
		if errors.Is(err, context.Canceled) {
			return
		}

		slog.Error("w.processNext()", "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backOff):
			if backOff < 30*time.Second {
				backOff *= 2
			}
		}
	}
}

// processNext handles at most one job. It reports whether a job was taken.
// A failed delivery is requeued with its attempt count raised, or moved to
// the dead list once maxAttempts is reached.
func (w *Worker) processNext(ctx context.Context) (bool, error) {
	job, err := w.queue.pop(ctx, w.pollTimeout)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	derr := w.dispatcher.Deliver(ctx, job)
	if derr == nil {
		slog.Info("confirmation delivered", "job", job.ID, "kind", job.Kind, "record", job.RecordID)
		return true, nil
	}

	job.Attempts++
	job.LastError = derr.Error()

	key := w.queue.pendingKey
	if job.Attempts >= w.maxAttempts {
		key = w.queue.deadKey
		slog.Error("confirmation dead-lettered", "job", job.ID, "record", job.RecordID, "attempts", job.Attempts, "error", derr)
	} else {
		slog.Warn("confirmation retry scheduled", "job", job.ID, "record", job.RecordID, "attempts", job.Attempts, "error", derr)
	}

	if err := w.queue.push(context.WithoutCancel(ctx), key, *job); err != nil {
		return true, err
	}
	return true, nil
}
