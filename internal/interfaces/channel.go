package interfaces

import (
	"context"
	"errors"

	"github.com/mtr002/Job-Client/internal/future"
)

var (
	// ErrTransport wraps every failure to deliver a request or its response.
	ErrTransport = errors.New("transport failure")
	// ErrConnectionLost fails every pending request when the connection to the
	// master is gone. Errors wrapping it also wrap ErrTransport.
	ErrConnectionLost = errors.New("connection to master lost")
)

// RequestChannel sends encoded requests to the cluster master.
//
// Every call returns a distinct future scoped to that request. The future is
// completed exactly once with the encoded response or with an error; when the
// connection is permanently lost it fails with an error wrapping
// ErrConnectionLost. ctx bounds the request on the wire.
type RequestChannel interface {
	RequestOnMaster(ctx context.Context, request []byte) *future.Future[[]byte]
}

// RequestHandler serves encoded requests on the master side.
type RequestHandler interface {
	Handle(ctx context.Context, request []byte) ([]byte, error)
}
