package jobs

import "errors"

var (
	ErrSubmissionRejected = errors.New("job submission rejected")
	ErrInvalidState       = errors.New("invalid job state")
	ErrNotSubmitted       = errors.New("job has not been submitted")
)

// State is the lifecycle state of a Proxy
type State int32

const (
	StateCreated State = iota
	StateSubmitting
	StateSubmitted
	StateSubmitFailed
	StateAwaiting
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateSubmitting:
		return "submitting"
	case StateSubmitted:
		return "submitted"
	case StateSubmitFailed:
		return "submit_failed"
	case StateAwaiting:
		return "awaiting"
	case StateTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}
