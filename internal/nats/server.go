package nats

import (
	"context"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/mtr002/Job-Client/internal/interfaces"
	"github.com/mtr002/Job-Client/internal/logger"
)

// Server answers master requests received over NATS
type Server struct {
	conn    *nats.Conn
	sub     *nats.Subscription
	subject string
	handler interfaces.RequestHandler

	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// NewServer connects to NATS. Call Subscribe to start serving handler.
func NewServer(url, subject string, handler interfaces.RequestHandler) (*Server, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	if subject == "" {
		subject = DefaultMasterSubject
	}

	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		conn:    conn,
		subject: subject,
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

func (s *Server) Subscribe() error {
	sub, err := s.conn.QueueSubscribe(s.subject, MasterQueueGroup, func(msg *nats.Msg) {
		if msg.Reply == "" {
			logger.Logger.Warn().Str("subject", msg.Subject).Msg("Ignoring request without reply subject")
			return
		}
		// WaitForJobComplete can block for the lifetime of a job, so each
		// request gets its own goroutine instead of holding the dispatcher.
		s.mu.Lock()
		if s.closing {
			s.mu.Unlock()
			return
		}
		s.wg.Add(1)
		s.mu.Unlock()
		go func() {
			defer s.wg.Done()
			s.serve(msg)
		}()
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to NATS: %w", err)
	}
	if err := s.conn.Flush(); err != nil {
		return fmt.Errorf("failed to flush subscription: %w", err)
	}

	s.sub = sub
	return nil
}

func (s *Server) serve(msg *nats.Msg) {
	log := logger.WithCorrelationID(msg.Header.Get(CorrelationHeader))

	resp, err := s.handler.Handle(s.ctx, msg.Data)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build response")
		return
	}
	if err := msg.Respond(resp); err != nil {
		log.Error().Err(err).Msg("Failed to send response")
	}
}

// IsConnected reports whether the underlying connection is up
func (s *Server) IsConnected() bool {
	return s.conn.IsConnected()
}

// Close stops taking requests, answers the ones in flight and disconnects.
func (s *Server) Close() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
	if s.conn != nil {
		if err := s.conn.Flush(); err != nil {
			logger.Logger.Warn().Err(err).Msg("Failed to flush responses")
		}
		s.conn.Close()
	}
}
