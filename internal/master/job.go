package master

import (
	"fmt"
	"time"

	"github.com/mtr002/Job-Client/internal/protocol"
)

// Job is a point-in-time view of a job held by the master
type Job struct {
	ID            int64              `json:"id"`
	Name          string             `json:"name"`
	Type          string             `json:"type,omitempty"`
	Status        protocol.JobStatus `json:"status"`
	Result        string             `json:"result,omitempty"`
	FailureReason string             `json:"failure_reason,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// String returns a string representation of the job
func (j *Job) String() string {
	return fmt.Sprintf("Job{ID: %d, Name: %s, Status: %s}", j.ID, j.Name, j.Status)
}
