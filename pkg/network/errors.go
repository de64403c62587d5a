package network

import (
	"errors"
	"fmt"
)

var (
	ErrNoTier          = errors.New("no capacity expansion tier configured for year")
	ErrUnknownRegion   = errors.New("unknown region")
	ErrInvalidCorridor = errors.New("invalid corridor")
	ErrInvalidTier     = errors.New("invalid capacity expansion tier")
	ErrNoSnapshots     = errors.New("no snapshots")
	ErrSeriesLength    = errors.New("series length does not match snapshots")
)

// ConfigError is a fatal configuration problem for one planning year.
// No default is substituted when one is returned.
type ConfigError struct {
	Year    int
	Subject string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("config error (year %d): %v", e.Year, e.Err)
	}
	return fmt.Sprintf("config error (year %d) %s: %v", e.Year, e.Subject, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// WarningKind classifies recoverable data gaps found during assembly.
type WarningKind string

const (
	MissingLoad        WarningKind = "missing_load"
	MissingProfile     WarningKind = "missing_profile"
	DuplicateGenerator WarningKind = "duplicate_generator"
)

// Warning is a recoverable data gap. The affected entity was omitted or fell
// back to a safe default.
type Warning struct {
	Kind       WarningKind `yaml:"kind"`
	Region     string      `yaml:"region"`
	Technology string      `yaml:"technology,omitempty"`
	Message    string      `yaml:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("[%s] %s", w.Kind, w.Message)
}
