package reconcile

import (
	"fmt"
	"time"
)

const (
	DefaultTaskTimeout  = 1200 * time.Second
	DefaultPollInterval = 2 * time.Second
	DefaultPageSize     = 500
)

// PassConfig captures the immutable parameters of one reconciliation pass.
type PassConfig struct {
	State State
	// Kind applies to config records that do not name one.
	Kind string
	// MinVersion is the lowest controller release the pass accepts.
	MinVersion   string
	TaskTimeout  time.Duration
	PollInterval time.Duration
	// Verify re-observes after each write and fails items that did not converge.
	Verify   bool
	DryRun   bool
	PageSize int
}

// Clone returns a copy of the config.
func (c PassConfig) Clone() PassConfig {
	return c
}

// ApplyDefaults fills unset values.
func (c PassConfig) ApplyDefaults() PassConfig {
	clone := c.Clone()
	if clone.State == "" {
		clone.State = StatePresent
	}
	if clone.TaskTimeout <= 0 {
		clone.TaskTimeout = DefaultTaskTimeout
	}
	if clone.PollInterval <= 0 {
		clone.PollInterval = DefaultPollInterval
	}
	if clone.PageSize <= 0 {
		clone.PageSize = DefaultPageSize
	}
	return clone
}

// Validate checks internal consistency.
func (c PassConfig) Validate() error {
	if c.State != StatePresent && c.State != StateAbsent {
		return NewValidationError(fmt.Sprintf("unknown state %q", c.State), nil)
	}
	if c.PollInterval > c.TaskTimeout {
		return NewValidationError("poll interval must not exceed the task timeout", map[string]interface{}{
			"poll_interval": c.PollInterval.String(),
			"task_timeout":  c.TaskTimeout.String(),
		})
	}
	return nil
}

// Deleting reports whether the pass removes objects.
func (c PassConfig) Deleting() bool {
	return c.State == StateAbsent
}
