package master

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtr002/Job-Client/internal/interfaces"
	"github.com/mtr002/Job-Client/internal/protocol"
)

func serialize(t *testing.T, id int64, name string, config map[string]string) []byte {
	t.Helper()
	desc, err := interfaces.NewJobDescription(id, name, config)
	require.NoError(t, err)
	data, err := desc.Serialize()
	require.NoError(t, err)
	return data
}

func TestSubmitAndComplete(t *testing.T) {
	m := NewManager(10)
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.SubmitJob(42, serialize(t, 42, "etl-batch", map[string]string{"type": "echo"})))

	job, err := m.GetJob(42)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusPending, job.Status)
	assert.Equal(t, "echo", job.Type)

	desc, err := m.NextJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), desc.ID())

	job, err = m.GetJob(42)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusRunning, job.Status)

	waited := make(chan *protocol.JobResult, 1)
	go func() {
		result, err := m.WaitForJobComplete(ctx, 42)
		if assert.NoError(t, err) {
			waited <- result
		}
	}()

	require.NoError(t, m.UpdateJobCompleted(42, "Echo: hi"))
	select {
	case result := <-waited:
		assert.Equal(t, protocol.StatusFinished, result.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("waiter was not released")
	}

	// Late waiters get the stored result immediately.
	result, err := m.WaitForJobComplete(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusFinished, result.Status)

	assert.Error(t, m.UpdateJobFailed(42, "too late"))
}

func TestSubmitRejections(t *testing.T) {
	m := NewManager(1)
	defer m.Close()

	require.NoError(t, m.SubmitJob(1, serialize(t, 1, "first", nil)))
	assert.ErrorIs(t, m.SubmitJob(1, serialize(t, 1, "again", nil)), ErrDuplicateJob)
	assert.ErrorIs(t, m.SubmitJob(2, serialize(t, 2, "second", nil)), ErrQueueFull)
	assert.ErrorIs(t, m.SubmitJob(3, serialize(t, 4, "mismatch", nil)), interfaces.ErrInvalidJobDescription)
	assert.ErrorIs(t, m.SubmitJob(5, []byte("garbage")), interfaces.ErrInvalidJobDescription)

	_, err := m.GetJob(2)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestRejectedJobNeverStrandsWaiters(t *testing.T) {
	m := NewManager(1)
	defer m.Close()
	require.NoError(t, m.SubmitJob(1, serialize(t, 1, "fills-queue", nil)))
	info := serialize(t, 2, "overflow", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stop := make(chan struct{})
	stranded := make(chan error, 4)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				_, err := m.WaitForJobComplete(ctx, 2)
				if !errors.Is(err, ErrJobNotFound) {
					stranded <- err
					return
				}
			}
		}()
	}

	for i := 0; i < 500; i++ {
		assert.ErrorIs(t, m.SubmitJob(2, info), ErrQueueFull)
	}
	close(stop)
	wg.Wait()
	close(stranded)
	for err := range stranded {
		t.Errorf("waiter saw a withdrawn job: %v", err)
	}
}

func TestWaitForUnknownJob(t *testing.T) {
	m := NewManager(1)
	defer m.Close()

	_, err := m.WaitForJobComplete(context.Background(), 99)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestCloseReleasesWaiters(t *testing.T) {
	m := NewManager(1)
	require.NoError(t, m.SubmitJob(1, serialize(t, 1, "stuck", nil)))

	errs := make(chan error, 1)
	go func() {
		_, err := m.WaitForJobComplete(context.Background(), 1)
		errs <- err
	}()

	time.Sleep(10 * time.Millisecond)
	m.Close()
	assert.ErrorIs(t, <-errs, ErrClosed)
	assert.ErrorIs(t, m.SubmitJob(2, serialize(t, 2, "late", nil)), ErrClosed)
}

func TestCancelJob(t *testing.T) {
	m := NewManager(1)
	defer m.Close()
	require.NoError(t, m.SubmitJob(1, serialize(t, 1, "cancel-me", nil)))
	require.NoError(t, m.CancelJob(1))

	result, err := m.WaitForJobComplete(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusCanceled, result.Status)

	// A canceled job is skipped by the queue.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.NextJob(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHandle(t *testing.T) {
	m := NewManager(10)
	defer m.Close()
	ctx := context.Background()

	req, err := protocol.EncodeSubmitJobRequest(7, serialize(t, 7, "handled", map[string]string{"type": "fail"}))
	require.NoError(t, err)
	resp, err := m.Handle(ctx, req)
	require.NoError(t, err)
	require.NoError(t, protocol.DecodeSubmitJobResponse(resp))

	resp, err = m.Handle(ctx, req)
	require.NoError(t, err)
	var remote *protocol.RemoteError
	assert.ErrorAs(t, protocol.DecodeSubmitJobResponse(resp), &remote)

	require.NoError(t, m.UpdateJobFailed(7, "simulated job failure"))
	waitReq, err := protocol.EncodeWaitForJobCompleteRequest(7)
	require.NoError(t, err)
	resp, err = m.Handle(ctx, waitReq)
	require.NoError(t, err)
	result, err := protocol.DecodeWaitForJobCompleteResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusFailed, result.Status)
	assert.Equal(t, "simulated job failure", result.FailureReason)

	unknown, err := protocol.EncodeWaitForJobCompleteRequest(404)
	require.NoError(t, err)
	resp, err = m.Handle(ctx, unknown)
	require.NoError(t, err)
	_, err = protocol.DecodeWaitForJobCompleteResponse(resp)
	assert.ErrorAs(t, err, &remote)
}

func TestHandleAnswersWhenContextEnds(t *testing.T) {
	m := NewManager(10)
	defer m.Close()
	require.NoError(t, m.SubmitJob(1, serialize(t, 1, "long", nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	waitReq, err := protocol.EncodeWaitForJobCompleteRequest(1)
	require.NoError(t, err)

	resp, err := m.Handle(ctx, waitReq)
	require.NoError(t, err)
	_, err = protocol.DecodeWaitForJobCompleteResponse(resp)
	var remote *protocol.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Contains(t, remote.Message, "deadline exceeded")
}
