package worker

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/mtr002/Job-Client/internal/interfaces"
	"github.com/mtr002/Job-Client/internal/logger"
	"github.com/mtr002/Job-Client/internal/master"
	"github.com/mtr002/Job-Client/internal/metrics"
)

// JobRunner defines the interface for running different job types
type JobRunner interface {
	Run(ctx context.Context, job *interfaces.JobDescription) (string, error)
}

// Pool represents a worker pool that runs jobs queued on the master
type Pool struct {
	manager     *master.Manager
	runner      JobRunner
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	workerCount int
}

// NewPool creates a new worker pool
func NewPool(manager *master.Manager, runner JobRunner, workerCount int) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		manager:     manager,
		runner:      runner,
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins processing jobs with the specified number of workers
func (p *Pool) Start() {
	logger.Logger.Info().Int("worker_count", p.workerCount).Msg("Starting worker pool")
	metrics.MasterActiveWorkers.Set(float64(p.workerCount))

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop gracefully shuts down the worker pool
func (p *Pool) Stop() {
	logger.Logger.Info().Msg("Stopping worker pool")
	p.cancel()
	p.wg.Wait()
	metrics.MasterActiveWorkers.Set(0)
	logger.Logger.Info().Msg("Worker pool stopped")
}

// worker is the main worker goroutine that takes jobs off the master queue
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	logger.Logger.Info().Int("worker_id", id).Msg("Worker started")

	for {
		job, err := p.manager.NextJob(p.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, master.ErrClosed) {
				logger.Logger.Info().Int("worker_id", id).Msg("Worker shutting down")
				return
			}
			logger.Logger.Error().Int("worker_id", id).Err(err).Msg("Error getting next job")
			continue
		}

		p.runJob(id, job)
	}
}

// runJob runs a single job and records its terminal status
func (p *Pool) runJob(workerID int, job *interfaces.JobDescription) {
	startTime := time.Now()
	logger.Logger.Info().
		Int("worker_id", workerID).
		Int64("job_id", job.ID()).
		Str("job_name", job.Name()).
		Msg("Running job")

	result, err := p.runner.Run(p.ctx, job)
	metrics.MasterJobRunDuration.Observe(time.Since(startTime).Seconds())

	if err != nil {
		logger.Logger.Error().
			Int("worker_id", workerID).
			Int64("job_id", job.ID()).
			Err(err).
			Msg("Job run failed")
		if updateErr := p.manager.UpdateJobFailed(job.ID(), err.Error()); updateErr != nil {
			logger.Logger.Error().
				Int("worker_id", workerID).
				Int64("job_id", job.ID()).
				Err(updateErr).
				Msg("Failed to update failed job")
		}
		return
	}

	if err := p.manager.UpdateJobCompleted(job.ID(), result); err != nil {
		logger.Logger.Error().
			Int("worker_id", workerID).
			Int64("job_id", job.ID()).
			Err(err).
			Msg("Failed to update job as completed")
		return
	}

	logger.Logger.Info().
		Int("worker_id", workerID).
		Int64("job_id", job.ID()).
		Msg("Job completed")
}

// DefaultJobRunner interprets the "type" entry of the job config
type DefaultJobRunner struct{}

// Run implements JobRunner interface
func (d *DefaultJobRunner) Run(ctx context.Context, job *interfaces.JobDescription) (string, error) {
	payload := job.ConfigValue("payload")

	switch job.ConfigValue("type") {
	case "echo", "":
		return fmt.Sprintf("Echo: %s", payload), nil

	case "uppercase":
		return fmt.Sprintf("UPPERCASE: %s", strings.ToUpper(payload)), nil

	case "slow":
		sleepDuration, err := time.ParseDuration(job.ConfigValue("duration"))
		if err != nil {
			n, err := rand.Int(rand.Reader, big.NewInt(5))
			if err != nil {
				n = big.NewInt(2)
			}
			sleepDuration = time.Duration(n.Int64()+1) * time.Second
		}
		logger.Logger.Debug().Int64("job_id", job.ID()).Dur("duration", sleepDuration).Msg("Slow job sleeping")
		select {
		case <-time.After(sleepDuration):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		return fmt.Sprintf("Slow job completed after %v", sleepDuration), nil

	case "fail":
		return "", fmt.Errorf("simulated job failure")

	default:
		return "", fmt.Errorf("unknown job type: %s", job.ConfigValue("type"))
	}
}
