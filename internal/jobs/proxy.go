package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mtr002/Job-Client/internal/future"
	"github.com/mtr002/Job-Client/internal/interfaces"
	"github.com/mtr002/Job-Client/internal/logger"
	"github.com/mtr002/Job-Client/internal/metrics"
	"github.com/mtr002/Job-Client/internal/protocol"
)

// Proxy is the client handle of one job on the cluster master.
type Proxy struct {
	channel interfaces.RequestChannel
	desc    *interfaces.JobDescription

	cacheCompletion bool

	mu     sync.Mutex
	state  State
	result *protocol.JobResult
}

type Option func(*Proxy)

// WithCompletionCache makes completion waits after a terminal result return
// that result instead of asking the master again.
func WithCompletionCache() Option {
	return func(p *Proxy) {
		p.cacheCompletion = true
	}
}

// NewProxy creates a handle for desc bound to channel
func NewProxy(channel interfaces.RequestChannel, desc *interfaces.JobDescription, opts ...Option) *Proxy {
	p := &Proxy{
		channel: channel,
		desc:    desc,
		state:   StateCreated,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Proxy) JobID() int64 {
	return p.desc.ID()
}

func (p *Proxy) Name() string {
	return p.desc.Name()
}

func (p *Proxy) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Submit sends the job to the master and blocks until the master
// acknowledges it. A job can be submitted once; after a failed submission the
// handle cannot be used to wait for the job.
func (p *Proxy) Submit(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateCreated {
		state := p.state
		p.mu.Unlock()
		return fmt.Errorf("%w: cannot submit job %d in state %s", ErrInvalidState, p.JobID(), state)
	}
	p.state = StateSubmitting
	p.mu.Unlock()

	log := logger.WithJobID(p.JobID())
	err := p.submit(ctx)

	p.mu.Lock()
	if err != nil {
		p.state = StateSubmitFailed
	} else {
		p.state = StateSubmitted
	}
	p.mu.Unlock()

	if err != nil {
		metrics.SubmitFailuresTotal.Inc()
		log.Error().Str("job_name", p.Name()).Err(err).Msg("Job submission failed")
		return err
	}

	metrics.JobsSubmittedTotal.Inc()
	log.Info().Str("job_name", p.Name()).Msg("Job submitted successfully")
	return nil
}

func (p *Proxy) submit(ctx context.Context) error {
	info, err := p.desc.Serialize()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSubmissionRejected, err)
	}
	request, err := protocol.EncodeSubmitJobRequest(p.JobID(), info)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSubmissionRejected, err)
	}

	ack := future.Map(p.channel.RequestOnMaster(ctx, request), func(response []byte) (struct{}, error) {
		return struct{}{}, protocol.DecodeSubmitJobResponse(response)
	})
	if _, err := ack.GetContext(ctx); err != nil {
		return fmt.Errorf("%w: job %d: %w", ErrSubmissionRejected, p.JobID(), err)
	}
	return nil
}

// Future sends WaitForJobComplete and returns the future of the terminal
// result. It does not block. The returned future completes only after the
// handle state is updated and the completion line is logged; when ctx ends
// first it fails with ctx.Err().
func (p *Proxy) Future(ctx context.Context) *future.Future[*protocol.JobResult] {
	p.mu.Lock()
	switch p.state {
	case StateSubmitted:
		p.state = StateAwaiting
	case StateAwaiting:
	case StateTerminal:
		if p.cacheCompletion && p.result != nil {
			result := p.result
			p.mu.Unlock()
			return future.Completed(result)
		}
	default:
		state := p.state
		p.mu.Unlock()
		return future.Failed[*protocol.JobResult](
			fmt.Errorf("%w: job %d is %s", ErrNotSubmitted, p.JobID(), state))
	}
	p.mu.Unlock()

	request, err := protocol.EncodeWaitForJobCompleteRequest(p.JobID())
	if err != nil {
		return future.Failed[*protocol.JobResult](err)
	}

	started := time.Now()
	decoded := future.Map(p.channel.RequestOnMaster(ctx, request), protocol.DecodeWaitForJobCompleteResponse)
	stop := context.AfterFunc(ctx, func() {
		decoded.CompleteExceptionally(ctx.Err())
	})

	out := future.New[*protocol.JobResult]()
	decoded.WhenComplete(func(result *protocol.JobResult, err error) {
		stop()
		p.record(result, err)
		metrics.AwaitDuration.Observe(time.Since(started).Seconds())
		p.logCompletion(result, err)
		if err != nil {
			out.CompleteExceptionally(err)
			return
		}
		out.Complete(result)
	})
	return out
}

// AwaitResult blocks until the job reaches a terminal status or ctx ends. A
// job that failed on the cluster is a normal result; errors are local or
// transport failures only.
func (p *Proxy) AwaitResult(ctx context.Context) (*protocol.JobResult, error) {
	return p.Future(ctx).Get()
}

// AwaitCompletion is AwaitResult reduced to the terminal status.
func (p *Proxy) AwaitCompletion(ctx context.Context) (protocol.JobStatus, error) {
	result, err := p.AwaitResult(ctx)
	if err != nil {
		return "", err
	}
	return result.Status, nil
}

func (p *Proxy) record(result *protocol.JobResult, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		if p.state == StateAwaiting {
			p.state = StateSubmitted
		}
		return
	}
	p.state = StateTerminal
	p.result = result
}

func (p *Proxy) logCompletion(result *protocol.JobResult, err error) {
	log := logger.WithJobID(p.JobID())
	if err != nil {
		metrics.AwaitErrorsTotal.Inc()
		log.Error().
			Str("job_name", p.Name()).
			Err(err).
			Msgf("Job %d (%s) end with error", p.JobID(), p.Name())
		return
	}

	metrics.JobsCompletedTotal.WithLabelValues(string(result.Status)).Inc()
	event := log.Info().
		Str("job_name", p.Name()).
		Str("status", string(result.Status))
	if result.FailureReason != "" {
		event = event.Str("failure_reason", result.FailureReason)
	}
	event.Msgf("Job %d (%s) end with state %s", p.JobID(), p.Name(), result.Status)
}
