package robot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nmelnikov/contentflow/pkg/contentflow"
)

// DefaultDequeueTimeout bounds a single blocking pop on the task queue so
// the loop can observe shutdown between tasks.
const DefaultDequeueTimeout = 30 * time.Second

// Processor performs the actual record processing for a stored file and
// reports how many records it saw and how they split between success and
// error.
type Processor interface {
	Process(ctx context.Context, task contentflow.Task) (contentflow.ProcessResult, error)
}

// ProcessorFunc adapts a plain function to the Processor interface.
type ProcessorFunc func(ctx context.Context, task contentflow.Task) (contentflow.ProcessResult, error)

func (f ProcessorFunc) Process(ctx context.Context, task contentflow.Task) (contentflow.ProcessResult, error) {
	return f(ctx, task)
}

// Reporter delivers a processing outcome back to the content service.
type Reporter interface {
	ReportOutcome(ctx context.Context, task contentflow.Task, result contentflow.ProcessResult) error
}

// Runner is the worker loop. It pops one task at a time, runs the
// processor, and reports the outcome before taking the next task. A
// processor failure is converted to an error outcome and reported; a
// reporting failure stops the loop, because continuing would silently
// strand contents in their processing state.
type Runner struct {
	queue          contentflow.TaskQueue
	processor      Processor
	reporter       Reporter
	dequeueTimeout time.Duration
}

// RunnerOption represents a functional option for configuring the runner
type RunnerOption func(*Runner)

// WithDequeueTimeout sets the per-pop blocking timeout.
func WithDequeueTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.dequeueTimeout = d
	}
}

// NewRunner creates a worker loop over the given queue, processor and
// reporter.
func NewRunner(queue contentflow.TaskQueue, processor Processor, reporter Reporter, options ...RunnerOption) *Runner {
	r := &Runner{
		queue:          queue,
		processor:      processor,
		reporter:       reporter,
		dequeueTimeout: DefaultDequeueTimeout,
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Run blocks until ctx is cancelled or a fatal error occurs. Cancellation
// between tasks is a clean shutdown and returns nil.
func (r *Runner) Run(ctx context.Context) error {
	slog.Info("robot started")
	for {
		if ctx.Err() != nil {
			slog.Info("robot stopping")
			return nil
		}

		task, err := r.queue.Dequeue(ctx, r.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				slog.Info("robot stopping")
				return nil
			}
			slog.Error("robot dequeue failed", "error", err)
			return err
		}
		if task == nil {
			continue
		}

		// A dequeued task always runs to completion and gets reported,
		// even when shutdown is requested while it is in flight.
		// Cancellation takes effect on the next pass through the loop.
		if err := r.handle(context.WithoutCancel(ctx), *task); err != nil {
			return err
		}
	}
}

func (r *Runner) handle(ctx context.Context, task contentflow.Task) error {
	slog.Info("robot received task",
		"account_id", task.AccountID, "content_id", task.ContentID, "file", task.File)

	result, err := r.processor.Process(ctx, task)
	if err != nil {
		slog.Error("processing failed",
			"account_id", task.AccountID, "content_id", task.ContentID, "error", err)
		result = contentflow.ProcessResult{Status: contentflow.ContentStatusError}
	}

	return r.reporter.ReportOutcome(ctx, task, result)
}
