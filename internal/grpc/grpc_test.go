package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/mtr002/Job-Client/internal/interfaces"
	"github.com/mtr002/Job-Client/internal/jobs"
	"github.com/mtr002/Job-Client/internal/master"
	"github.com/mtr002/Job-Client/internal/protocol"
	"github.com/mtr002/Job-Client/internal/worker"
)

func startServer(t *testing.T, handler interfaces.RequestHandler) (*Server, *bufconn.Listener) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	server := NewServer(handler)
	go func() {
		_ = server.Serve(lis)
	}()
	t.Cleanup(server.Stop)
	return server, lis
}

func dial(t *testing.T, lis *bufconn.Listener) *Channel {
	t.Helper()
	channel, err := NewChannel("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = channel.Close() })
	return channel
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSubmitAndAwaitOverGRPC(t *testing.T) {
	manager := master.NewManager(10)
	defer manager.Close()
	pool := worker.NewPool(manager, &worker.DefaultJobRunner{}, 2)
	pool.Start()
	defer pool.Stop()

	_, lis := startServer(t, manager)
	channel := dial(t, lis)
	ctx := waitCtx(t)

	desc, err := interfaces.NewJobDescription(42, "etl-batch", map[string]string{"type": "uppercase", "payload": "rows"})
	require.NoError(t, err)
	proxy := jobs.NewProxy(channel, desc)

	require.NoError(t, proxy.Submit(ctx))
	status, err := proxy.AwaitCompletion(ctx)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusFinished, status)
	assert.True(t, channel.IsConnected())

	job, err := manager.GetJob(42)
	require.NoError(t, err)
	assert.Equal(t, "UPPERCASE: ROWS", job.Result)
}

func TestUnreachableMasterIsTransportError(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	require.NoError(t, lis.Close())
	channel := dial(t, lis)

	request, err := protocol.EncodeWaitForJobCompleteRequest(1)
	require.NoError(t, err)

	_, err = channel.RequestOnMaster(context.Background(), request).GetContext(waitCtx(t))
	assert.ErrorIs(t, err, interfaces.ErrTransport)
	assert.ErrorIs(t, err, interfaces.ErrConnectionLost)
}

func TestClosedChannelRejectsRequests(t *testing.T) {
	manager := master.NewManager(10)
	defer manager.Close()
	_, lis := startServer(t, manager)
	channel := dial(t, lis)

	desc, err := interfaces.NewJobDescription(3, "pending", nil)
	require.NoError(t, err)
	proxy := jobs.NewProxy(channel, desc)
	ctx := waitCtx(t)
	require.NoError(t, proxy.Submit(ctx))

	// Nothing runs the job, so the wait stays open until the channel closes.
	pending := proxy.Future(ctx)
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, channel.Close())

	_, err = pending.GetContext(ctx)
	assert.ErrorIs(t, err, interfaces.ErrConnectionLost)
	assert.ErrorIs(t, err, interfaces.ErrTransport)

	request, err := protocol.EncodeWaitForJobCompleteRequest(3)
	require.NoError(t, err)
	_, err = channel.RequestOnMaster(ctx, request).Get()
	assert.ErrorIs(t, err, interfaces.ErrConnectionLost)
	assert.ErrorIs(t, err, interfaces.ErrTransport)
}

func TestRequestContextDeadline(t *testing.T) {
	manager := master.NewManager(10)
	defer manager.Close()
	_, lis := startServer(t, manager)
	channel := dial(t, lis)

	desc, err := interfaces.NewJobDescription(4, "stuck", nil)
	require.NoError(t, err)
	proxy := jobs.NewProxy(channel, desc)
	require.NoError(t, proxy.Submit(waitCtx(t)))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = proxy.AwaitCompletion(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, jobs.StateSubmitted, proxy.State())
}

func TestServerStopAnswersWaiters(t *testing.T) {
	manager := master.NewManager(10)
	defer manager.Close()
	server, lis := startServer(t, manager)
	channel := dial(t, lis)

	desc, err := interfaces.NewJobDescription(6, "never-runs", nil)
	require.NoError(t, err)
	proxy := jobs.NewProxy(channel, desc)
	ctx := waitCtx(t)
	require.NoError(t, proxy.Submit(ctx))

	pending := proxy.Future(ctx)
	time.Sleep(50 * time.Millisecond)
	server.Stop()

	_, err = pending.GetContext(ctx)
	var remote *protocol.RemoteError
	assert.ErrorAs(t, err, &remote)
}

type failingHandler struct{}

func (failingHandler) Handle(context.Context, []byte) ([]byte, error) {
	return nil, assert.AnError
}

func TestHandlerErrorIsTransportError(t *testing.T) {
	_, lis := startServer(t, failingHandler{})
	channel := dial(t, lis)

	_, err := channel.RequestOnMaster(context.Background(), []byte("{}")).GetContext(waitCtx(t))
	assert.ErrorIs(t, err, interfaces.ErrTransport)
	assert.NotErrorIs(t, err, interfaces.ErrConnectionLost)
}
