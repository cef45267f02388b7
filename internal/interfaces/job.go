package interfaces

import (
	"errors"
	"fmt"
	"maps"

	"github.com/bytedance/sonic"
)

var ErrInvalidJobDescription = errors.New("invalid job description")

// JobDescription is the immutable description of one job.
// Build it with NewJobDescription; accessors never expose internal state.
type JobDescription struct {
	id     int64
	name   string
	config map[string]string
}

type jobDescriptionWire struct {
	ID     int64             `json:"id"`
	Name   string            `json:"name"`
	Config map[string]string `json:"config,omitempty"`
}

// NewJobDescription validates and copies its inputs.
func NewJobDescription(id int64, name string, config map[string]string) (*JobDescription, error) {
	// Zero is what a missing id decodes to, so ids start at 1.
	if id <= 0 {
		return nil, fmt.Errorf("%w: job id must be positive, got %d", ErrInvalidJobDescription, id)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: job name cannot be empty", ErrInvalidJobDescription)
	}
	return &JobDescription{
		id:     id,
		name:   name,
		config: maps.Clone(config),
	}, nil
}

func (d *JobDescription) ID() int64 {
	return d.id
}

func (d *JobDescription) Name() string {
	return d.name
}

// Config returns a copy of the job config.
func (d *JobDescription) Config() map[string]string {
	return maps.Clone(d.config)
}

// ConfigValue returns one config entry.
func (d *JobDescription) ConfigValue(key string) string {
	return d.config[key]
}

// String returns a string representation of the job description
func (d *JobDescription) String() string {
	return fmt.Sprintf("Job{ID: %d, Name: %s}", d.id, d.name)
}

// Serialize encodes the description for SubmitJob.
func (d *JobDescription) Serialize() ([]byte, error) {
	data, err := sonic.Marshal(&jobDescriptionWire{ID: d.id, Name: d.name, Config: d.config})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize job %d: %w", d.id, err)
	}
	return data, nil
}

// DeserializeJobDescription is the inverse of Serialize.
func DeserializeJobDescription(data []byte) (*JobDescription, error) {
	var w jobDescriptionWire
	if err := sonic.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJobDescription, err)
	}
	return NewJobDescription(w.ID, w.Name, w.Config)
}
