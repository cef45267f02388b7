package nats

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/mtr002/Job-Client/internal/future"
	"github.com/mtr002/Job-Client/internal/interfaces"
	"github.com/mtr002/Job-Client/internal/logger"
	"github.com/mtr002/Job-Client/internal/metrics"
)

// Channel sends requests to the master over NATS and correlates replies
// arriving on a private inbox with the future of each request.
type Channel struct {
	conn    *nats.Conn
	sub     *nats.Subscription
	subject string
	inbox   string

	mu       sync.Mutex
	pending  map[string]*future.Future[[]byte]
	closed   bool
	closeErr error
}

func NewChannel(url, subject string, opts ...nats.Option) (*Channel, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	if subject == "" {
		subject = DefaultMasterSubject
	}

	c := &Channel{
		subject: subject,
		inbox:   nats.NewInbox(),
		pending: make(map[string]*future.Future[[]byte]),
	}

	opts = append(opts,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Logger.Warn().Err(err).Msg("Disconnected from NATS")
			c.failPending(fmt.Errorf("%w: %w: disconnected: %v", interfaces.ErrTransport, interfaces.ErrConnectionLost, err), false)
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			logger.Logger.Info().Str("url", conn.ConnectedUrl()).Msg("Reconnected to NATS")
		}),
		nats.ClosedHandler(func(conn *nats.Conn) {
			c.failPending(fmt.Errorf("%w: %w: connection closed: %v", interfaces.ErrTransport, interfaces.ErrConnectionLost, conn.LastError()), true)
		}),
	)

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	sub, err := conn.Subscribe(c.inbox+".*", c.onReply)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to subscribe to reply inbox: %w", err)
	}
	if err := conn.Flush(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to flush reply subscription: %w", err)
	}

	c.conn = conn
	c.sub = sub
	return c, nil
}

// RequestOnMaster publishes request with a reply subject unique to this call.
func (c *Channel) RequestOnMaster(ctx context.Context, request []byte) *future.Future[[]byte] {
	f := future.New[[]byte]()
	token := uuid.NewString()

	c.mu.Lock()
	if c.closed {
		err := c.closeErr
		c.mu.Unlock()
		f.CompleteExceptionally(err)
		return f
	}
	c.pending[token] = f
	c.mu.Unlock()
	metrics.PendingRequests.WithLabelValues(transportName).Inc()

	msg := nats.NewMsg(c.subject)
	msg.Reply = c.inbox + "." + token
	msg.Data = request
	msg.Header.Set(CorrelationHeader, token)

	if err := c.conn.PublishMsg(msg); err != nil {
		c.resolve(token, nil, fmt.Errorf("%w: failed to publish request: %w", interfaces.ErrTransport, err))
		return f
	}

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				c.resolve(token, nil, ctx.Err())
			case <-f.Done():
			}
		}()
	}
	return f
}

func (c *Channel) onReply(msg *nats.Msg) {
	token := strings.TrimPrefix(msg.Subject, c.inbox+".")

	if len(msg.Data) == 0 && msg.Header.Get(statusHeader) == noRespondersCode {
		c.resolve(token, nil, fmt.Errorf("%w: %w", interfaces.ErrTransport, nats.ErrNoResponders))
		return
	}
	c.resolve(token, msg.Data, nil)
}

func (c *Channel) resolve(token string, data []byte, err error) {
	c.mu.Lock()
	f, ok := c.pending[token]
	delete(c.pending, token)
	c.mu.Unlock()

	if !ok {
		log := logger.WithCorrelationID(token)
		log.Debug().Msg("Dropping reply for a request that is no longer pending")
		return
	}
	metrics.PendingRequests.WithLabelValues(transportName).Dec()

	if err != nil {
		f.CompleteExceptionally(err)
		return
	}
	f.Complete(data)
}

// failPending fails every outstanding request. A permanent failure also
// rejects all future requests with err.
func (c *Channel) failPending(err error, permanent bool) {
	c.mu.Lock()
	if permanent && !c.closed {
		c.closed = true
		c.closeErr = err
	}
	pending := c.pending
	c.pending = make(map[string]*future.Future[[]byte])
	c.mu.Unlock()

	if len(pending) > 0 {
		logger.Logger.Warn().Int("pending", len(pending)).Err(err).Msg("Failing pending requests")
	}
	for _, f := range pending {
		metrics.PendingRequests.WithLabelValues(transportName).Dec()
		f.CompleteExceptionally(err)
	}
}

// IsConnected reports whether the underlying connection is up
func (c *Channel) IsConnected() bool {
	return c.conn.IsConnected()
}

func (c *Channel) Close() {
	if c.sub != nil {
		c.sub.Unsubscribe()
	}
	if c.conn != nil {
		c.conn.Close()
	}
	c.failPending(fmt.Errorf("%w: %w: channel closed", interfaces.ErrTransport, interfaces.ErrConnectionLost), true)
}
