// Package recordproc binds the worker loop to the database-side record
// loader. Processing a stored file means invoking the load_records
// routine and reading back the record counters it produces.
package recordproc

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nmelnikov/contentflow/pkg/contentflow"
)

// Processor runs the load_records database routine for each task.
type Processor struct {
	pool *pgxpool.Pool
}

// New creates a processor over the given connection pool.
func New(pool *pgxpool.Pool) *Processor {
	return &Processor{pool: pool}
}

// Process loads the records of the task's stored file and returns the
// resulting counters as a success outcome. Any failure, from connection
// loss to a loader-side exception, is returned to the caller, which
// reports the content as failed.
func (p *Processor) Process(ctx context.Context, task contentflow.Task) (contentflow.ProcessResult, error) {
	var total, success, failed int
	err := p.pool.QueryRow(ctx,
		`SELECT total_records, success_records, error_records FROM load_records($1)`,
		task.File,
	).Scan(&total, &success, &failed)
	if err != nil {
		return contentflow.ProcessResult{}, fmt.Errorf("load records for %q: %w", task.File, err)
	}

	return contentflow.ProcessResult{
		Status:         contentflow.ContentStatusSuccess,
		TotalRecords:   total,
		SuccessRecords: success,
		ErrorRecords:   failed,
	}, nil
}
