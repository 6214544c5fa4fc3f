// Package config loads the host argument record for a reconciliation pass.
package config

import (
	"strings"
	"time"

	"github.com/alexisbeaulieu97/ccreconcile/internal/domain/reconcile"
	"github.com/alexisbeaulieu97/ccreconcile/internal/schema"
)

// Defaults applied before the argument file is decoded.
const (
	DefaultPort         = 443
	DefaultLogLevel     = "warning"
	DefaultTaskTimeout  = 1200
	DefaultPollInterval = 2
)

// ModuleArgs is the argument record handed over by the automation host.
type ModuleArgs struct {
	Host     string `yaml:"host" validate:"required,hostname_rfc1123|ip"`
	Port     int    `yaml:"port" validate:"min=1,max=65535"`
	Username string `yaml:"username" validate:"required"`
	Password string `yaml:"password" validate:"required"`
	Verify   bool   `yaml:"verify"`

	Debug       bool   `yaml:"debug"`
	Log         bool   `yaml:"log"`
	LogLevel    string `yaml:"log_level" validate:"loglevel"`
	LogFilePath string `yaml:"log_file_path" validate:"omitempty,filepath"`
	LogAppend   bool   `yaml:"log_append"`

	ValidateResponseSchema bool `yaml:"validate_response_schema"`

	// Version is the lowest controller release the pass accepts.
	Version string `yaml:"version" validate:"omitempty,semver"`
	// TaskTimeout and PollInterval are in seconds.
	TaskTimeout  int `yaml:"task_timeout" validate:"gt=0"`
	PollInterval int `yaml:"poll_interval" validate:"gt=0,ltefield=TaskTimeout"`

	State        string          `yaml:"state" validate:"ccstate"`
	ConfigVerify bool            `yaml:"config_verify"`
	CheckMode    bool            `yaml:"check_mode"`
	Kind         string          `yaml:"kind"`
	PageSize     int             `yaml:"page_size" validate:"min=1,max=10000"`
	RateLimit    float64         `yaml:"rate_limit" validate:"gte=0"`
	Config       []schema.Record `yaml:"config" validate:"required,min=1"`
}

// Defaults returns the record with every documented default set.
func Defaults() ModuleArgs {
	return ModuleArgs{
		Port:                   DefaultPort,
		Verify:                 true,
		LogLevel:               DefaultLogLevel,
		LogAppend:              true,
		ValidateResponseSchema: true,
		TaskTimeout:            DefaultTaskTimeout,
		PollInterval:           DefaultPollInterval,
		State:                  "merged",
		PageSize:               reconcile.DefaultPageSize,
	}
}

// PassConfig derives the immutable pass parameters.
func (a ModuleArgs) PassConfig() (reconcile.PassConfig, error) {
	state, err := reconcile.ParseState(a.State)
	if err != nil {
		return reconcile.PassConfig{}, err
	}
	cfg := reconcile.PassConfig{
		State:        state,
		Kind:         a.Kind,
		MinVersion:   a.Version,
		TaskTimeout:  time.Duration(a.TaskTimeout) * time.Second,
		PollInterval: time.Duration(a.PollInterval) * time.Second,
		Verify:       a.ConfigVerify,
		DryRun:       a.CheckMode,
		PageSize:     a.PageSize,
	}
	cfg = cfg.ApplyDefaults()
	return cfg, cfg.Validate()
}

// EffectiveLogLevel maps the host level names onto logger levels. The debug
// flag forces debug output.
func (a ModuleArgs) EffectiveLogLevel() string {
	if a.Debug {
		return "debug"
	}
	switch strings.ToLower(a.LogLevel) {
	case "debug":
		return "debug"
	case "info":
		return "info"
	case "error", "critical":
		return "error"
	}
	return "warn"
}

// Records returns the config list.
func (a ModuleArgs) Records() []schema.Record {
	return append([]schema.Record(nil), a.Config...)
}

// Redacted returns a copy safe to log.
func (a ModuleArgs) Redacted() ModuleArgs {
	clone := a
	if clone.Password != "" {
		clone.Password = "********"
	}
	clone.Config = nil
	return clone
}
