package master

import (
	"context"

	"github.com/mtr002/Job-Client/internal/logger"
	"github.com/mtr002/Job-Client/internal/protocol"
)

// Handle serves one encoded request and returns the encoded response. Every
// request gets an answer, including refusals and waits cut short by ctx;
// the returned error is reserved for responses that cannot be encoded.
func (m *Manager) Handle(ctx context.Context, request []byte) ([]byte, error) {
	req, err := protocol.DecodeRequest(request)
	if err != nil {
		logger.Logger.Warn().Err(err).Msg("Invalid request")
		return protocol.EncodeErrorResponse("", 0, err)
	}

	log := logger.WithJobID(req.JobID)

	switch req.Type {
	case protocol.TypeSubmitJob:
		if err := m.SubmitJob(req.JobID, req.JobInfo); err != nil {
			log.Warn().Err(err).Msg("Job submission rejected")
			return protocol.EncodeErrorResponse(req.Type, req.JobID, err)
		}
		return protocol.EncodeSubmitJobResponse(req.JobID)

	default:
		result, err := m.WaitForJobComplete(ctx, req.JobID)
		if err != nil {
			log.Debug().Err(err).Msg("Wait for job completion ended without a result")
			return protocol.EncodeErrorResponse(req.Type, req.JobID, err)
		}
		return protocol.EncodeWaitForJobCompleteResponse(result)
	}
}
