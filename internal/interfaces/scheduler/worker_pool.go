package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	jobTracer          = otel.Tracer("centavo/scheduler")
	jobMeter           = otel.Meter("centavo/scheduler")
	jobDuration, _     = jobMeter.Float64Histogram("scheduler.job.duration", metric.WithDescription("Job execution duration in seconds"), metric.WithUnit("s"))
	jobTotal, _        = jobMeter.Int64Counter("scheduler.job.total", metric.WithDescription("Total jobs executed by status"))
	jobQueueDropped, _ = jobMeter.Int64Counter("scheduler.job.queue_dropped", metric.WithDescription("Jobs dropped due to full queue"))
)

// Job is a unit of background work. The maintenance jobs (consistency
// check, overspend scan) implement it; anything else periodic slots in
// the same way.
type Job interface {
	// Execute runs the job. The context carries the job timeout and the
	// pool's shutdown signal.
	Execute(ctx context.Context) error

	// Description names the job for logs and telemetry.
	Description() string
}

// WorkerPool runs jobs on a fixed set of goroutines fed by a buffered
// channel. Submission never blocks: when the queue is full the job is
// dropped and counted.
type WorkerPool struct {
	workerCount int
	jobDelay    time.Duration
	jobs        chan Job
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	log         zerolog.Logger
}

// NewWorkerPool creates a worker pool. jobDelay spaces consecutive jobs
// on one worker, which keeps database-heavy jobs from stampeding.
func NewWorkerPool(workerCount int, jobDelay time.Duration, queueSize int, log zerolog.Logger) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		workerCount: workerCount,
		jobDelay:    jobDelay,
		jobs:        make(chan Job, queueSize),
		ctx:         ctx,
		cancel:      cancel,
		log:         log,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start() {
	wp.log.Info().Int("workers", wp.workerCount).Msg("starting worker pool")

	for i := 1; i <= wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// worker is the main loop for one worker goroutine. It processes jobs
// from the channel until shutdown.
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.ctx.Done():
			wp.log.Debug().Int("worker_id", id).Msg("worker shutting down")
			return

		case job, ok := <-wp.jobs:
			if !ok {
				return
			}

			wp.processJob(id, job)

			if wp.jobDelay > 0 {
				select {
				case <-time.After(wp.jobDelay):
				case <-wp.ctx.Done():
					return
				}
			}
		}
	}
}

// processJob executes a single job with a timeout, telemetry and logging.
func (wp *WorkerPool) processJob(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(wp.ctx, 120*time.Second)
	defer cancel()

	ctx, span := jobTracer.Start(ctx, "job.execute",
		trace.WithAttributes(
			attribute.Int("worker.id", workerID),
			attribute.String("job.description", job.Description()),
		),
	)
	defer span.End()

	start := time.Now()

	if err := job.Execute(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		jobTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "error")))
		jobDuration.Record(ctx, time.Since(start).Seconds())
		wp.log.Error().Err(err).
			Int("worker_id", workerID).
			Str("job", job.Description()).
			Msg("job failed")
		return
	}

	jobTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "success")))
	jobDuration.Record(ctx, time.Since(start).Seconds())
	wp.log.Info().
		Int("worker_id", workerID).
		Str("job", job.Description()).
		Dur("duration", time.Since(start)).
		Msg("job completed")
}

// Submit adds a job to the queue. It never blocks: a full queue drops
// the job and returns an error so the caller can log it.
func (wp *WorkerPool) Submit(job Job) error {
	select {
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	case wp.jobs <- job:
		return nil
	default:
		jobQueueDropped.Add(context.Background(), 1)
		return fmt.Errorf("job queue full, dropping %s", job.Description())
	}
}

// SubmitBatch adds multiple jobs to the queue.
func (wp *WorkerPool) SubmitBatch(jobs []Job) {
	submitted := 0
	for _, job := range jobs {
		if err := wp.Submit(job); err != nil {
			wp.log.Warn().Err(err).Str("job", job.Description()).Msg("failed to submit job")
			continue
		}
		submitted++
	}
	wp.log.Info().Int("submitted", submitted).Int("total", len(jobs)).Msg("submitted jobs to worker pool")
}

// ShutdownWithTimeout closes the queue and waits for in-flight jobs.
// Workers still running after the timeout are cut off via the context.
func (wp *WorkerPool) ShutdownWithTimeout(timeout time.Duration) {
	close(wp.jobs)

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.log.Info().Msg("worker pool drained")
	case <-time.After(timeout):
		wp.log.Warn().Dur("timeout", timeout).Msg("worker pool shutdown timed out, cancelling")
	}

	wp.cancel()
}
