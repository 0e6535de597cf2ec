// Package batch holds the three-phase batch-job contract the migration
// pipelines are driven through, plus a minimal sequential runner. The
// runner stands in for whatever batch platform schedules the job in a real
// deployment; chunk size is its concern, not the job's.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/docuflow/content-migrator/internal/metrics"
)

// DefaultChunkSize is used when the runner is not configured with one.
const DefaultChunkSize = 200

// Cursor yields successive pages of records, at most limit per call.
// An empty page signals exhaustion.
type Cursor[T any] interface {
	Next(ctx context.Context, limit int) ([]T, error)
}

// Job is the batch lifecycle contract: Open produces a cursor over the full
// record set, Process handles one bounded chunk, Close runs after the last
// chunk succeeded.
type Job[T any] interface {
	Name() string
	Open(ctx context.Context) (Cursor[T], error)
	Process(ctx context.Context, chunk []T) error
	Close(ctx context.Context) error
}

// Runner executes a job one chunk at a time. Chunks run strictly
// sequentially; a chunk failure stops the run and surfaces as the job's
// failure, leaving retry policy to the caller.
type Runner struct {
	ChunkSize int
}

func (r Runner) chunkSize() int {
	if r.ChunkSize > 0 {
		return r.ChunkSize
	}
	return DefaultChunkSize
}

// Run drives the job to completion. Close is not called when a chunk
// fails: the job is expected to be re-runnable from Open.
func Run[T any](ctx context.Context, r Runner, job Job[T]) error {
	cursor, err := job.Open(ctx)
	if err != nil {
		return fmt.Errorf("job %s: open: %w", job.Name(), err)
	}

	var chunks, records int
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("job %s: %w", job.Name(), err)
		}
		chunk, err := cursor.Next(ctx, r.chunkSize())
		if err != nil {
			return fmt.Errorf("job %s: cursor: %w", job.Name(), err)
		}
		if len(chunk) == 0 {
			break
		}

		start := time.Now()
		if err := job.Process(ctx, chunk); err != nil {
			metrics.ChunksProcessed.WithLabelValues(job.Name(), "failed").Inc()
			return fmt.Errorf("job %s: chunk %d: %w", job.Name(), chunks+1, err)
		}
		metrics.ChunksProcessed.WithLabelValues(job.Name(), "ok").Inc()
		metrics.ChunkDuration.WithLabelValues(job.Name()).Observe(time.Since(start).Seconds())

		chunks++
		records += len(chunk)
		log.Info("Chunk processed", "job", job.Name(), "chunk", chunks, "records", len(chunk), "total", records)
	}

	if err := job.Close(ctx); err != nil {
		return fmt.Errorf("job %s: close: %w", job.Name(), err)
	}
	return nil
}
