package robot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmelnikov/contentflow/pkg/contentflow"
)

// drainQueue hands out its tasks in order and cancels the run context once
// empty, so Run terminates cleanly after the last task.
type drainQueue struct {
	tasks  []contentflow.Task
	cancel context.CancelFunc
	err    error
}

func (q *drainQueue) Enqueue(ctx context.Context, task contentflow.Task) error {
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *drainQueue) Dequeue(ctx context.Context, timeout time.Duration) (*contentflow.Task, error) {
	if q.err != nil {
		return nil, q.err
	}
	if len(q.tasks) == 0 {
		q.cancel()
		return nil, nil
	}
	task := q.tasks[0]
	q.tasks = q.tasks[1:]
	return &task, nil
}

type recordingReporter struct {
	tasks   []contentflow.Task
	results []contentflow.ProcessResult
	err     error
}

func (r *recordingReporter) ReportOutcome(ctx context.Context, task contentflow.Task, result contentflow.ProcessResult) error {
	if r.err != nil {
		return r.err
	}
	r.tasks = append(r.tasks, task)
	r.results = append(r.results, result)
	return nil
}

func TestRunnerProcessesTasksInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := &drainQueue{
		tasks: []contentflow.Task{
			{AccountID: 1, ContentID: 10, ContentUID: "uid0000001", File: "a---1.xml"},
			{AccountID: 1, ContentID: 11, ContentUID: "uid0000002", File: "b---2.xml"},
		},
		cancel: cancel,
	}
	reporter := &recordingReporter{}
	processor := ProcessorFunc(func(ctx context.Context, task contentflow.Task) (contentflow.ProcessResult, error) {
		return contentflow.ProcessResult{
			Status:         contentflow.ContentStatusSuccess,
			TotalRecords:   3,
			SuccessRecords: 3,
		}, nil
	})

	runner := NewRunner(queue, processor, reporter, WithDequeueTimeout(time.Millisecond))
	require.NoError(t, runner.Run(ctx))

	require.Len(t, reporter.tasks, 2)
	assert.Equal(t, int64(10), reporter.tasks[0].ContentID)
	assert.Equal(t, int64(11), reporter.tasks[1].ContentID)
	assert.Equal(t, contentflow.ContentStatusSuccess, reporter.results[0].Status)
}

func TestRunnerReportsProcessorFailureAsError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := &drainQueue{
		tasks:  []contentflow.Task{{AccountID: 1, ContentID: 10, File: "a---1.xml"}},
		cancel: cancel,
	}
	reporter := &recordingReporter{}
	processor := ProcessorFunc(func(ctx context.Context, task contentflow.Task) (contentflow.ProcessResult, error) {
		return contentflow.ProcessResult{}, errors.New("loader blew up")
	})

	runner := NewRunner(queue, processor, reporter)
	require.NoError(t, runner.Run(ctx))

	require.Len(t, reporter.results, 1)
	assert.Equal(t, contentflow.ContentStatusError, reporter.results[0].Status)
	assert.Zero(t, reporter.results[0].TotalRecords)
}

func TestRunnerStopsWhenReportingFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := &drainQueue{
		tasks: []contentflow.Task{
			{AccountID: 1, ContentID: 10, File: "a---1.xml"},
			{AccountID: 1, ContentID: 11, File: "b---2.xml"},
		},
		cancel: cancel,
	}
	reportErr := errors.New("service unreachable")
	reporter := &recordingReporter{err: reportErr}
	processor := ProcessorFunc(func(ctx context.Context, task contentflow.Task) (contentflow.ProcessResult, error) {
		return contentflow.ProcessResult{Status: contentflow.ContentStatusSuccess}, nil
	})

	runner := NewRunner(queue, processor, reporter)
	err := runner.Run(ctx)
	assert.ErrorIs(t, err, reportErr)
	// The second task was never taken.
	assert.Len(t, queue.tasks, 1)
}

func TestRunnerStopsOnDequeueError(t *testing.T) {
	queueErr := errors.New("queue gone")
	queue := &drainQueue{err: queueErr, cancel: func() {}}
	runner := NewRunner(queue, ProcessorFunc(func(ctx context.Context, task contentflow.Task) (contentflow.ProcessResult, error) {
		return contentflow.ProcessResult{}, nil
	}), &recordingReporter{})

	err := runner.Run(context.Background())
	assert.ErrorIs(t, err, queueErr)
}

func TestRunnerFinishesInFlightTaskOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := &drainQueue{
		tasks:  []contentflow.Task{{AccountID: 1, ContentID: 10, File: "a---1.xml"}},
		cancel: func() {},
	}
	reporter := &recordingReporter{}
	processor := ProcessorFunc(func(ctx context.Context, task contentflow.Task) (contentflow.ProcessResult, error) {
		// Shutdown arrives while the task is running. The handed-down
		// context must keep the task alive to completion.
		cancel()
		require.NoError(t, ctx.Err())
		return contentflow.ProcessResult{
			Status:         contentflow.ContentStatusSuccess,
			TotalRecords:   5,
			SuccessRecords: 5,
		}, nil
	})

	runner := NewRunner(queue, processor, reporter)
	require.NoError(t, runner.Run(ctx))

	require.Len(t, reporter.results, 1)
	assert.Equal(t, contentflow.ContentStatusSuccess, reporter.results[0].Status)
	assert.Equal(t, 5, reporter.results[0].TotalRecords)
}

func TestRunnerCleanShutdownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	queue := &drainQueue{cancel: func() {}}
	runner := NewRunner(queue, ProcessorFunc(func(ctx context.Context, task contentflow.Task) (contentflow.ProcessResult, error) {
		return contentflow.ProcessResult{}, nil
	}), &recordingReporter{})

	require.NoError(t, runner.Run(ctx))
}
