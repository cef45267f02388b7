package protocol

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

var json = sonic.ConfigStd

var ErrUnexpectedResponse = errors.New("unexpected response type")

// EncodeSubmitJobRequest encodes SubmitJob with the serialized job description.
func EncodeSubmitJobRequest(jobID int64, jobInfo []byte) ([]byte, error) {
	return encodeRequest(&Request{Type: TypeSubmitJob, JobID: jobID, JobInfo: jobInfo})
}

// EncodeWaitForJobCompleteRequest encodes WaitForJobComplete.
func EncodeWaitForJobCompleteRequest(jobID int64) ([]byte, error) {
	return encodeRequest(&Request{Type: TypeWaitForJobComplete, JobID: jobID})
}

func encodeRequest(req *Request) ([]byte, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", req.Type, err)
	}
	return data, nil
}

// DecodeRequest decodes a request on the master side.
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request: %w", err)
	}
	switch req.Type {
	case TypeSubmitJob, TypeWaitForJobComplete:
		return &req, nil
	default:
		return nil, fmt.Errorf("unknown request type %q", req.Type)
	}
}

// EncodeErrorResponse encodes a refusal of a request.
func EncodeErrorResponse(typ MessageType, jobID int64, cause error) ([]byte, error) {
	return encodeResponse(&Response{Type: typ, JobID: jobID, Error: cause.Error()})
}

// EncodeSubmitJobResponse encodes the SubmitJob acknowledgement.
func EncodeSubmitJobResponse(jobID int64) ([]byte, error) {
	return encodeResponse(&Response{Type: TypeSubmitJob, JobID: jobID})
}

// EncodeWaitForJobCompleteResponse encodes a terminal job result using the
// current status table.
func EncodeWaitForJobCompleteResponse(result *JobResult) ([]byte, error) {
	code, err := StatusTableV1.Code(result.Status)
	if err != nil {
		return nil, err
	}
	return encodeResponse(&Response{
		Type:          TypeWaitForJobComplete,
		JobID:         result.JobID,
		StatusVersion: CurrentStatusVersion,
		StatusCode:    code,
		FailureReason: result.FailureReason,
	})
}

func encodeResponse(resp *Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s response: %w", resp.Type, err)
	}
	return data, nil
}

func decodeResponse(data []byte, want MessageType) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if resp.Type != want {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrUnexpectedResponse, resp.Type, want)
	}
	if resp.Error != "" {
		return nil, &RemoteError{Type: resp.Type, JobID: resp.JobID, Message: resp.Error}
	}
	return &resp, nil
}

// DecodeSubmitJobResponse returns nil when the master acknowledged the job.
func DecodeSubmitJobResponse(data []byte) error {
	_, err := decodeResponse(data, TypeSubmitJob)
	return err
}

// DecodeWaitForJobCompleteResponse decodes the terminal status through the
// status table named by the response.
func DecodeWaitForJobCompleteResponse(data []byte) (*JobResult, error) {
	resp, err := decodeResponse(data, TypeWaitForJobComplete)
	if err != nil {
		return nil, err
	}
	table, err := LookupStatusTable(resp.StatusVersion)
	if err != nil {
		return nil, err
	}
	status, err := table.Status(resp.StatusCode)
	if err != nil {
		return nil, err
	}
	return &JobResult{
		JobID:         resp.JobID,
		Status:        status,
		FailureReason: resp.FailureReason,
	}, nil
}
