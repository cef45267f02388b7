package protocol

import "fmt"

// MessageType identifies a request sent to the master
type MessageType string

const (
	TypeSubmitJob          MessageType = "submit_job"
	TypeWaitForJobComplete MessageType = "wait_for_job_complete"
)

// Request is the envelope of every request addressed to the master
type Request struct {
	Type    MessageType `json:"type"`
	JobID   int64       `json:"job_id"`
	JobInfo []byte      `json:"job_info,omitempty"`
}

// Response is the envelope of every reply from the master.
// Error is set when the master could not serve the request.
type Response struct {
	Type          MessageType `json:"type"`
	JobID         int64       `json:"job_id"`
	Error         string      `json:"error,omitempty"`
	StatusVersion int         `json:"status_version,omitempty"`
	StatusCode    int32       `json:"status_code"`
	FailureReason string      `json:"failure_reason,omitempty"`
}

// JobResult is the decoded outcome of WaitForJobComplete.
// A FAILED job is a normal result; FailureReason carries the detail.
type JobResult struct {
	JobID         int64     `json:"job_id"`
	Status        JobStatus `json:"status"`
	FailureReason string    `json:"failure_reason,omitempty"`
}

// RemoteError is returned when the master answered but refused the request.
type RemoteError struct {
	Type    MessageType
	JobID   int64
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("master rejected %s for job %d: %s", e.Type, e.JobID, e.Message)
}
