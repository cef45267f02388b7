package master

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mtr002/Job-Client/internal/future"
	"github.com/mtr002/Job-Client/internal/interfaces"
	"github.com/mtr002/Job-Client/internal/logger"
	"github.com/mtr002/Job-Client/internal/metrics"
	"github.com/mtr002/Job-Client/internal/protocol"
)

var (
	ErrDuplicateJob = errors.New("duplicate job id")
	ErrJobNotFound  = errors.New("job not found")
	ErrQueueFull    = errors.New("job queue is full")
	ErrClosed       = errors.New("master is closed")
)

type entry struct {
	desc *interfaces.JobDescription
	job  Job
	done *future.Future[*protocol.JobResult]
}

// Manager keeps the in-memory registry of submitted jobs and the queue the
// worker pool consumes.
type Manager struct {
	mu     sync.RWMutex
	jobs   map[int64]*entry
	queue  chan int64
	closed chan struct{}
	once   sync.Once
}

// NewManager creates a master with room for queueSize queued jobs
func NewManager(queueSize int) *Manager {
	if queueSize <= 0 {
		queueSize = 100
	}

	return &Manager{
		jobs:   make(map[int64]*entry),
		queue:  make(chan int64, queueSize),
		closed: make(chan struct{}),
	}
}

// SubmitJob registers a serialized job description and queues it
func (m *Manager) SubmitJob(jobID int64, jobInfo []byte) error {
	desc, err := interfaces.DeserializeJobDescription(jobInfo)
	if err != nil {
		return err
	}
	if desc.ID() != jobID {
		return fmt.Errorf("%w: request job id %d does not match description id %d",
			interfaces.ErrInvalidJobDescription, jobID, desc.ID())
	}

	select {
	case <-m.closed:
		return ErrClosed
	default:
	}

	now := time.Now()
	e := &entry{
		desc: desc,
		job: Job{
			ID:        jobID,
			Name:      desc.Name(),
			Type:      desc.ConfigValue("type"),
			Status:    protocol.StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		},
		done: future.New[*protocol.JobResult](),
	}

	// The job becomes visible only once it is queued, so a waiter never finds
	// an entry that is about to be withdrawn.
	m.mu.Lock()
	if _, exists := m.jobs[jobID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("%w %d", ErrDuplicateJob, jobID)
	}
	select {
	case m.queue <- jobID:
	default:
		m.mu.Unlock()
		return ErrQueueFull
	}
	m.jobs[jobID] = e
	m.mu.Unlock()

	metrics.MasterJobsAcceptedTotal.Inc()
	log := logger.WithJobID(jobID)
	log.Info().Str("job_name", desc.Name()).Msg("Job accepted")
	return nil
}

// NextJob blocks until a queued job is available and marks it running
func (m *Manager) NextJob(ctx context.Context) (*interfaces.JobDescription, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-m.closed:
			return nil, ErrClosed
		case id := <-m.queue:
			m.mu.Lock()
			e, ok := m.jobs[id]
			if ok && e.job.Status == protocol.StatusPending {
				e.job.Status = protocol.StatusRunning
				e.job.UpdatedAt = time.Now()
				m.mu.Unlock()
				return e.desc, nil
			}
			m.mu.Unlock()
		}
	}
}

// UpdateJobCompleted marks a job as finished with result
func (m *Manager) UpdateJobCompleted(jobID int64, result string) error {
	return m.finish(jobID, protocol.StatusFinished, result, "")
}

// UpdateJobFailed marks a job as failed with the failure reason
func (m *Manager) UpdateJobFailed(jobID int64, reason string) error {
	return m.finish(jobID, protocol.StatusFailed, "", reason)
}

// CancelJob cancels a job that has not reached a terminal status
func (m *Manager) CancelJob(jobID int64) error {
	return m.finish(jobID, protocol.StatusCanceled, "", "canceled")
}

func (m *Manager) finish(jobID int64, status protocol.JobStatus, result, reason string) error {
	m.mu.Lock()
	e, ok := m.jobs[jobID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrJobNotFound, jobID)
	}
	if e.job.Status.IsTerminal() {
		m.mu.Unlock()
		return fmt.Errorf("job %d already ended with state %s", jobID, e.job.Status)
	}
	e.job.Status = status
	e.job.Result = result
	e.job.FailureReason = reason
	e.job.UpdatedAt = time.Now()
	m.mu.Unlock()

	metrics.MasterJobsFinishedTotal.WithLabelValues(string(status)).Inc()
	log := logger.WithJobID(jobID)
	log.Info().Str("status", string(status)).Str("failure_reason", reason).Msg("Job ended")

	e.done.Complete(&protocol.JobResult{
		JobID:         jobID,
		Status:        status,
		FailureReason: reason,
	})
	return nil
}

// WaitForJobComplete blocks until the job reaches a terminal status
func (m *Manager) WaitForJobComplete(ctx context.Context, jobID int64) (*protocol.JobResult, error) {
	m.mu.RLock()
	e, ok := m.jobs[jobID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrJobNotFound, jobID)
	}

	if e.done.IsDone() {
		return e.done.Get()
	}

	metrics.MasterWaiters.Inc()
	defer metrics.MasterWaiters.Dec()

	select {
	case <-e.done.Done():
		return e.done.Get()
	case <-m.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetJob returns a snapshot of a job
func (m *Manager) GetJob(jobID int64) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrJobNotFound, jobID)
	}
	job := e.job
	return &job, nil
}

// GetAllJobs returns snapshots of all jobs, newest first
func (m *Manager) GetAllJobs() []*Job {
	m.mu.RLock()
	jobs := make([]*Job, 0, len(m.jobs))
	for _, e := range m.jobs {
		job := e.job
		jobs = append(jobs, &job)
	}
	m.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// Close stops accepting jobs and releases every blocked waiter
func (m *Manager) Close() {
	m.once.Do(func() {
		close(m.closed)
	})
}
