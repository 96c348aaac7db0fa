package app

import (
	"errors"
	"fmt"
)

var (
	// ErrInterrupted is returned by Run when the process stops because of a
	// user signal rather than a failure.
	ErrInterrupted = errors.New("interrupted")
)

// ConfigError wraps a configuration or manifest-parsing failure: a missing
// required attribute, more than one representation per adaptation set, a
// malformed duration. Fatal at start-up (exit code 1).
type ConfigError struct {
	Err error
}

func newConfigError(err error) error { return &ConfigError{Err: err} }

func (e *ConfigError) Error() string { return fmt.Sprintf("config: %s", e.Err) }
func (e *ConfigError) Unwrap() error { return e.Err }

// DiscoveryError wraps a failure to find or validate the on-disk segment
// range for a track: missing files, a numbering gap, or a startNumber /
// segment duration mismatch across tracks. Fatal at start-up (exit code 1).
type DiscoveryError struct {
	Err error
}

func newDiscoveryError(err error) error { return &DiscoveryError{Err: err} }

func (e *DiscoveryError) Error() string { return fmt.Sprintf("discovery: %s", e.Err) }
func (e *DiscoveryError) Unwrap() error { return e.Err }

// UnsupportedInputError flags an MPD shape the core does not support: a mux
// mode selected for an MPD without both an audio and a video AdaptationSet
// (exit code 2). MPD parse failures, including more than one Representation
// in an AdaptationSet, are ConfigErrors.
type UnsupportedInputError struct {
	Err error
}

func newUnsupportedInputError(err error) error { return &UnsupportedInputError{Err: err} }

func (e *UnsupportedInputError) Error() string { return fmt.Sprintf("unsupported input: %s", e.Err) }
func (e *UnsupportedInputError) Unwrap() error { return e.Err }

// UnknownMuxTypeError is returned when --muxtype does not name a mode the
// muxer implements (exit code 3).
type UnknownMuxTypeError struct {
	MuxType string
}

func (e *UnknownMuxTypeError) Error() string { return fmt.Sprintf("unrecognized mux type %q", e.MuxType) }

// SinkError wraps a failure to open the destination sink (Op "open").
// Write and delete failures do not use it: the WebDAV worker logs them and
// continues, and a local sink's failures are returned from Run unwrapped.
type SinkError struct {
	Op   string
	Path string
	Err  error
}

func newSinkError(op, path string, err error) error {
	return &SinkError{Op: op, Path: path, Err: err}
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %s %q: %s", e.Op, e.Path, e.Err)
}
func (e *SinkError) Unwrap() error { return e.Err }

// ExitCode maps an error returned from Run to the process exit code spelled
// out for the daemon: 0 clean stop, 1 config/discovery, 2 unsupported
// input, 3 unrecognized mux type.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var unsupported *UnsupportedInputError
	var unknownMux *UnknownMuxTypeError
	switch {
	case errors.Is(err, ErrInterrupted):
		return 0
	case errors.As(err, &unsupported):
		return 2
	case errors.As(err, &unknownMux):
		return 3
	default:
		return 1
	}
}
