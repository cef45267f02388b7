package grpc

import (
	"context"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/mtr002/Job-Client/internal/interfaces"
	"github.com/mtr002/Job-Client/internal/logger"
)

// Server exposes a RequestHandler as the JobMaster gRPC service.
type Server struct {
	server  *grpc.Server
	handler interfaces.RequestHandler

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func NewServer(handler interfaces.RequestHandler, opts ...grpc.ServerOption) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		server:  grpc.NewServer(opts...),
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
	}
	s.server.RegisterService(&jobMasterServiceDesc, s)
	return s
}

// Serve accepts connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	logger.Logger.Info().Str("addr", lis.Addr().String()).Msg("JobMaster gRPC server listening")
	return s.server.Serve(lis)
}

func (s *Server) RequestOnMaster(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	log := logger.WithCorrelationID(correlationID(ctx))
	resp, err := s.handler.Handle(ctx, in.GetValue())
	if err != nil {
		log.Error().Err(err).Msg("Failed to build response")
		return nil, status.Error(codes.Internal, err.Error())
	}
	return wrapperspb.Bytes(resp), nil
}

// Stop answers every open request, then waits for them to drain.
func (s *Server) Stop() {
	s.once.Do(func() {
		s.cancel()
		s.server.GracefulStop()
	})
}

func correlationID(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(correlationKey); len(values) > 0 {
		return values[0]
	}
	return ""
}
