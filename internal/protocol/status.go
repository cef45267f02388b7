package protocol

import (
	"errors"
	"fmt"
)

// JobStatus represents the state of a job as reported by the master
type JobStatus string

const (
	StatusCreated    JobStatus = "CREATED"
	StatusPending    JobStatus = "PENDING"
	StatusScheduled  JobStatus = "SCHEDULED"
	StatusRunning    JobStatus = "RUNNING"
	StatusFailing    JobStatus = "FAILING"
	StatusFailed     JobStatus = "FAILED"
	StatusCanceling  JobStatus = "CANCELING"
	StatusCanceled   JobStatus = "CANCELED"
	StatusFinished   JobStatus = "FINISHED"
	StatusUnknowable JobStatus = "UNKNOWABLE"
)

// IsTerminal returns true if no further transition can happen
func (s JobStatus) IsTerminal() bool {
	switch s {
	case StatusFinished, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

func (s JobStatus) String() string {
	return string(s)
}

var (
	ErrUnknownStatusVersion = errors.New("unknown job status table version")
	ErrUnknownStatusCode    = errors.New("unknown job status code")
	ErrUnmappedStatus       = errors.New("job status has no wire code")
)

// StatusTable maps wire codes to statuses for one protocol version.
// Codes are assigned explicitly; a new status gets a new code, existing codes
// are never renumbered.
type StatusTable struct {
	Version int
	byCode  map[int32]JobStatus
	byName  map[JobStatus]int32
}

func newStatusTable(version int, codes map[int32]JobStatus) *StatusTable {
	t := &StatusTable{
		Version: version,
		byCode:  codes,
		byName:  make(map[JobStatus]int32, len(codes)),
	}
	for code, status := range codes {
		t.byName[status] = code
	}
	return t
}

// StatusTableV1 is the status table spoken by this client.
var StatusTableV1 = newStatusTable(1, map[int32]JobStatus{
	0: StatusCreated,
	1: StatusPending,
	2: StatusScheduled,
	3: StatusRunning,
	4: StatusFailing,
	5: StatusFailed,
	6: StatusCanceling,
	7: StatusCanceled,
	8: StatusFinished,
	9: StatusUnknowable,
})

// CurrentStatusVersion is the table version written into responses.
const CurrentStatusVersion = 1

var statusTables = map[int]*StatusTable{
	StatusTableV1.Version: StatusTableV1,
}

// LookupStatusTable returns the table for version.
func LookupStatusTable(version int) (*StatusTable, error) {
	t, ok := statusTables[version]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStatusVersion, version)
	}
	return t, nil
}

// Status decodes a wire code.
func (t *StatusTable) Status(code int32) (JobStatus, error) {
	s, ok := t.byCode[code]
	if !ok {
		return "", fmt.Errorf("%w: %d (table v%d)", ErrUnknownStatusCode, code, t.Version)
	}
	return s, nil
}

// Code encodes a status.
func (t *StatusTable) Code(s JobStatus) (int32, error) {
	code, ok := t.byName[s]
	if !ok {
		return 0, fmt.Errorf("%w: %q (table v%d)", ErrUnmappedStatus, s, t.Version)
	}
	return code, nil
}
