// Package workers provides a worker pool for concurrent posture scans. It
// supports job queuing, retries with backoff, graceful shutdown, and
// integrates with the structured logging and metrics systems.
package workers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/anchorsec/posture/internal/logging"
	"github.com/anchorsec/posture/internal/metrics"
)

// Job represents a unit of work to be executed by a worker.
type Job interface {
	// Execute performs the job and returns an error if it fails.
	Execute(ctx context.Context) error
	// ID returns a unique identifier for the job.
	ID() string
	// Type returns the job type for metrics and logging.
	Type() string
}

// Result represents the result of executing a job.
type Result struct {
	JobID    string
	JobType  string
	Error    error
	Duration time.Duration
	Retries  int
}

// Config holds configuration for the worker pool.
type Config struct {
	// Size is the number of worker goroutines to create.
	Size int
	// QueueSize is the maximum number of jobs that can be queued.
	QueueSize int
	// MaxRetries is the maximum number of retries for failed jobs.
	MaxRetries int
	// RetryDelay is the delay before the first retry.
	RetryDelay time.Duration
	// BackoffMultiplier scales the delay after each failed attempt.
	BackoffMultiplier float64
	// ShutdownTimeout is the maximum time to wait for workers to finish.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a default worker pool configuration.
func DefaultConfig() Config {
	return Config{
		Size:              10,
		QueueSize:         100,
		MaxRetries:        2,
		RetryDelay:        time.Second,
		BackoffMultiplier: 2.0,
		ShutdownTimeout:   30 * time.Second,
	}
}

// Pool manages a pool of worker goroutines for concurrent job execution.
type Pool struct {
	config          Config
	jobs            chan Job
	results         chan Result
	externalResults chan Result
	wg              sync.WaitGroup
	ctx             context.Context
	cancel          context.CancelFunc
	shutdown        chan struct{}
	done            chan struct{}
	startOnce       sync.Once
	closeOnce       sync.Once
	shutdown32      int32 // atomic shutdown flag
}

// New creates a new worker pool with the given configuration.
func New(config Config) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		config:          config,
		jobs:            make(chan Job, config.QueueSize),
		results:         make(chan Result, config.QueueSize),
		externalResults: make(chan Result, config.QueueSize),
		ctx:             ctx,
		cancel:          cancel,
		shutdown:        make(chan struct{}),
		done:            make(chan struct{}),
	}
}

// Start begins the worker pool operations.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		logging.Info("Starting worker pool",
			"worker_count", p.config.Size,
			"queue_size", p.config.QueueSize)

		for i := 0; i < p.config.Size; i++ {
			p.wg.Add(1)
			go p.runWorker(i)
		}

		go p.processResults()

		metrics.GetGlobalMetrics().SetWorkerPoolSize(p.config.Size)
	})
}

// Submit adds a job to the worker pool queue.
func (p *Pool) Submit(job Job) error {
	if atomic.LoadInt32(&p.shutdown32) == 1 {
		return fmt.Errorf("worker pool is shut down")
	}

	select {
	case p.jobs <- job:
		logging.Debug("Job submitted to worker pool",
			"job_id", job.ID(),
			"job_type", job.Type())
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	default:
		return fmt.Errorf("job queue is full")
	}
}

// Results returns a channel for receiving job results.
func (p *Pool) Results() <-chan Result {
	return p.externalResults
}

// Shutdown gracefully shuts down the worker pool.
func (p *Pool) Shutdown() error {
	if !atomic.CompareAndSwapInt32(&p.shutdown32, 0, 1) {
		return nil
	}

	logging.Info("Shutting down worker pool")

	close(p.jobs)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("Worker pool shutdown completed")
	case <-time.After(p.config.ShutdownTimeout):
		logging.Warn("Worker pool shutdown timeout, forcing termination")
		p.cancel()
		// The result forwarder stops on cancellation, so keep draining
		// the internal channel until every worker has exited. A worker
		// parked on a full result buffer would otherwise never return.
		go func() {
			for range p.results {
			}
		}()
		<-done
	}

	p.cancel()
	close(p.results)

	return nil
}

// Wait blocks until the pool has shut down and all results were drained.
func (p *Pool) Wait() {
	<-p.done
}

// runWorker executes the worker loop.
func (p *Pool) runWorker(id int) {
	defer p.wg.Done()

	logging.Debug("Worker started", "worker_id", id)
	defer logging.Debug("Worker stopped", "worker_id", id)

	for {
		select {
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.executeJob(id, job)

		case <-p.ctx.Done():
			return
		}
	}
}

// executeJob executes a single job with retry and backoff.
func (p *Pool) executeJob(workerID int, job Job) {
	m := metrics.GetGlobalMetrics()
	jobStart := time.Now()
	defer func() {
		m.RecordJobDuration(job.Type(), time.Since(jobStart))
	}()

	var lastErr error
	var retries int
	delay := p.config.RetryDelay

	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		start := time.Now()
		err := job.Execute(p.ctx)
		duration := time.Since(start)

		if err == nil {
			p.results <- Result{
				JobID:    job.ID(),
				JobType:  job.Type(),
				Duration: duration,
				Retries:  retries,
			}
			m.IncrementJobsTotal(job.Type(), "success")
			logging.Debug("Job completed",
				"job_id", job.ID(),
				"job_type", job.Type(),
				"duration", duration,
				"worker_id", workerID,
				"retries", retries)
			return
		}

		lastErr = err
		retries = attempt

		if attempt < p.config.MaxRetries {
			logging.Debug("Job failed, retrying",
				"job_id", job.ID(),
				"job_type", job.Type(),
				"attempt", attempt+1,
				"max_retries", p.config.MaxRetries,
				"error", err)

			select {
			case <-time.After(delay):
			case <-p.ctx.Done():
				return
			}
			if p.config.BackoffMultiplier > 1 {
				delay = time.Duration(float64(delay) * p.config.BackoffMultiplier)
			}
		}
	}

	p.results <- Result{
		JobID:   job.ID(),
		JobType: job.Type(),
		Error:   lastErr,
		Retries: retries,
	}
	m.IncrementJobsTotal(job.Type(), "error")
	logging.Error("Job failed after retries",
		"job_id", job.ID(),
		"job_type", job.Type(),
		"retries", retries,
		"error", lastErr,
		"worker_id", workerID)
}

// processResults fans results out to external consumers.
func (p *Pool) processResults() {
	defer p.closeOnce.Do(func() {
		close(p.externalResults)
		close(p.done)
	})

	for result := range p.results {
		select {
		case p.externalResults <- result:
		case <-p.ctx.Done():
			return
		}
	}
}

// PostureScanJob runs a posture scan against a single target. The scan
// function owns session setup and teardown for its target.
type PostureScanJob struct {
	id     string
	target string
	scan   func(ctx context.Context, target string) error
}

// NewPostureScanJob creates a posture scan job with a generated scan ID.
func NewPostureScanJob(target string, scan func(ctx context.Context, target string) error) *PostureScanJob {
	return &PostureScanJob{
		id:     uuid.New().String(),
		target: target,
		scan:   scan,
	}
}

// Execute implements the Job interface.
func (j *PostureScanJob) Execute(ctx context.Context) error {
	return j.scan(ctx, j.target)
}

// ID implements the Job interface.
func (j *PostureScanJob) ID() string {
	return j.id
}

// Target returns the host this job scans.
func (j *PostureScanJob) Target() string {
	return j.target
}

// Type implements the Job interface.
func (j *PostureScanJob) Type() string {
	return "posture_scan"
}
