package grpc

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/mtr002/Job-Client/internal/future"
	"github.com/mtr002/Job-Client/internal/interfaces"
	"github.com/mtr002/Job-Client/internal/logger"
	"github.com/mtr002/Job-Client/internal/metrics"
)

var errChannelClosed = errors.New("channel closed")

// Channel sends requests to the master as unary JobMaster calls.
type Channel struct {
	conn   *grpc.ClientConn
	closed atomic.Bool
}

// NewChannel creates a channel to the master at addr. The connection is
// established lazily on the first request.
func NewChannel(addr string, opts ...grpc.DialOption) (*Channel, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC client: %w", err)
	}
	return &Channel{conn: conn}, nil
}

func (c *Channel) RequestOnMaster(ctx context.Context, request []byte) *future.Future[[]byte] {
	f := future.New[[]byte]()
	if c.closed.Load() {
		f.CompleteExceptionally(fmt.Errorf("%w: %w: %w", interfaces.ErrTransport, interfaces.ErrConnectionLost, errChannelClosed))
		return f
	}

	token := uuid.NewString()
	ctx = metadata.AppendToOutgoingContext(ctx, correlationKey, token)
	metrics.PendingRequests.WithLabelValues(transportName).Inc()

	go func() {
		defer metrics.PendingRequests.WithLabelValues(transportName).Dec()

		resp := new(wrapperspb.BytesValue)
		if err := c.conn.Invoke(ctx, requestOnMasterMethod, wrapperspb.Bytes(request), resp); err != nil {
			err = c.transportError(ctx, err)
			log := logger.WithCorrelationID(token)
			log.Debug().Err(err).Msg("Request on master failed")
			f.CompleteExceptionally(err)
			return
		}
		f.Complete(resp.GetValue())
	}()
	return f
}

func (c *Channel) transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if c.closed.Load() {
		return fmt.Errorf("%w: %w: %w", interfaces.ErrTransport, interfaces.ErrConnectionLost, err)
	}
	if status.Code(err) == codes.Unavailable {
		return fmt.Errorf("%w: %w: %w", interfaces.ErrTransport, interfaces.ErrConnectionLost, err)
	}
	return fmt.Errorf("%w: %w", interfaces.ErrTransport, err)
}

// IsConnected reports whether the connection is ready
func (c *Channel) IsConnected() bool {
	return c.conn.GetState() == connectivity.Ready
}

// Close tears down the connection and fails in-flight requests.
func (c *Channel) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.conn.Close()
}
