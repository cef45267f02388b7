package nats

import (
	"context"
	"errors"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtr002/Job-Client/internal/interfaces"
	"github.com/mtr002/Job-Client/internal/jobs"
	"github.com/mtr002/Job-Client/internal/master"
	"github.com/mtr002/Job-Client/internal/protocol"
	"github.com/mtr002/Job-Client/internal/worker"
)

func runNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	ns, err := natsserver.NewServer(&natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	require.NoError(t, err)
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats server did not start")
	}
	t.Cleanup(ns.Shutdown)
	return ns
}

// silentResponder subscribes to the master subject and never replies.
func silentResponder(t *testing.T, url string) {
	t.Helper()
	conn, err := nats.Connect(url)
	require.NoError(t, err)
	_, err = conn.Subscribe(DefaultMasterSubject, func(*nats.Msg) {})
	require.NoError(t, err)
	require.NoError(t, conn.Flush())
	t.Cleanup(conn.Close)
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSubmitAndAwaitOverNATS(t *testing.T) {
	ns := runNATSServer(t)

	manager := master.NewManager(10)
	defer manager.Close()
	pool := worker.NewPool(manager, &worker.DefaultJobRunner{}, 2)
	pool.Start()
	defer pool.Stop()

	server, err := NewServer(ns.ClientURL(), "", manager)
	require.NoError(t, err)
	require.NoError(t, server.Subscribe())
	defer server.Close()

	channel, err := NewChannel(ns.ClientURL(), "")
	require.NoError(t, err)
	defer channel.Close()

	ctx := waitCtx(t)

	desc, err := interfaces.NewJobDescription(42, "etl-batch", map[string]string{"type": "slow", "duration": "50ms"})
	require.NoError(t, err)
	proxy := jobs.NewProxy(channel, desc)

	require.NoError(t, proxy.Submit(ctx))
	status, err := proxy.AwaitCompletion(ctx)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusFinished, status)

	failing, err := interfaces.NewJobDescription(43, "broken", map[string]string{"type": "fail"})
	require.NoError(t, err)
	proxy = jobs.NewProxy(channel, failing)
	require.NoError(t, proxy.Submit(ctx))
	result, err := proxy.AwaitResult(ctx)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusFailed, result.Status)
	assert.Equal(t, "simulated job failure", result.FailureReason)

	// Duplicate ids are refused by the master.
	proxy = jobs.NewProxy(channel, desc)
	err = proxy.Submit(ctx)
	assert.ErrorIs(t, err, jobs.ErrSubmissionRejected)
	var remote *protocol.RemoteError
	assert.ErrorAs(t, err, &remote)
}

func TestNoResponders(t *testing.T) {
	ns := runNATSServer(t)
	channel, err := NewChannel(ns.ClientURL(), "")
	require.NoError(t, err)
	defer channel.Close()

	request, err := protocol.EncodeWaitForJobCompleteRequest(1)
	require.NoError(t, err)

	_, err = channel.RequestOnMaster(context.Background(), request).GetContext(waitCtx(t))
	assert.ErrorIs(t, err, interfaces.ErrTransport)
	assert.ErrorIs(t, err, nats.ErrNoResponders)
}

func TestConnectionLossFailsPendingRequests(t *testing.T) {
	ns := runNATSServer(t)
	silentResponder(t, ns.ClientURL())

	channel, err := NewChannel(ns.ClientURL(), "", nats.NoReconnect())
	require.NoError(t, err)
	defer channel.Close()

	request, err := protocol.EncodeWaitForJobCompleteRequest(1)
	require.NoError(t, err)
	pending := channel.RequestOnMaster(context.Background(), request)

	observed := make(chan error, 1)
	pending.WhenComplete(func(_ []byte, err error) { observed <- err })

	ns.Shutdown()

	_, err = pending.GetContext(waitCtx(t))
	assert.ErrorIs(t, err, interfaces.ErrConnectionLost)
	assert.ErrorIs(t, err, interfaces.ErrTransport)
	assert.ErrorIs(t, <-observed, interfaces.ErrConnectionLost)

	// Once closed for good, new requests fail immediately.
	assert.Eventually(t, func() bool {
		f := channel.RequestOnMaster(context.Background(), request)
		if !f.IsDone() {
			return false
		}
		_, err := f.Get()
		return errors.Is(err, interfaces.ErrConnectionLost) && errors.Is(err, interfaces.ErrTransport)
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRequestContextCancellation(t *testing.T) {
	ns := runNATSServer(t)
	silentResponder(t, ns.ClientURL())

	channel, err := NewChannel(ns.ClientURL(), "")
	require.NoError(t, err)
	defer channel.Close()

	request, err := protocol.EncodeWaitForJobCompleteRequest(1)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = channel.RequestOnMaster(ctx, request).Get()
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCloseFailsPendingRequests(t *testing.T) {
	ns := runNATSServer(t)
	silentResponder(t, ns.ClientURL())

	channel, err := NewChannel(ns.ClientURL(), "")
	require.NoError(t, err)

	request, err := protocol.EncodeWaitForJobCompleteRequest(1)
	require.NoError(t, err)
	pending := channel.RequestOnMaster(context.Background(), request)

	channel.Close()
	_, err = pending.GetContext(waitCtx(t))
	assert.ErrorIs(t, err, interfaces.ErrConnectionLost)
	assert.ErrorIs(t, err, interfaces.ErrTransport)
}

func TestServerShutdownAnswersWaiters(t *testing.T) {
	ns := runNATSServer(t)

	manager := master.NewManager(10)
	defer manager.Close()
	server, err := NewServer(ns.ClientURL(), "", manager)
	require.NoError(t, err)
	require.NoError(t, server.Subscribe())

	channel, err := NewChannel(ns.ClientURL(), "")
	require.NoError(t, err)
	defer channel.Close()

	desc, err := interfaces.NewJobDescription(5, "never-runs", nil)
	require.NoError(t, err)
	proxy := jobs.NewProxy(channel, desc)
	ctx := waitCtx(t)
	require.NoError(t, proxy.Submit(ctx))

	f := proxy.Future(ctx)
	time.Sleep(100 * time.Millisecond)
	server.Close()

	_, err = f.GetContext(ctx)
	var remote *protocol.RemoteError
	assert.ErrorAs(t, err, &remote)
}
