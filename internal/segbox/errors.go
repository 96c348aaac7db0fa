// Package segbox rewrites ISO BMFF init and media segments for the live
// loop: extracting track metadata, reading segment durations, and patching
// mfhd/tfdt/trun/styp/sidx so that a replayed VoD segment carries the right
// sequence number and timestamp.
package segbox

import "fmt"

// MalformedSegmentError wraps a box-decoding failure for a named segment.
// The scheduler treats it as fatal for the whole process (spec §7).
type MalformedSegmentError struct {
	Path string
	Err  error
}

func (e *MalformedSegmentError) Error() string {
	return fmt.Sprintf("malformed segment %q: %s", e.Path, e.Err)
}

func (e *MalformedSegmentError) Unwrap() error {
	return e.Err
}

func newMalformedSegmentError(path string, err error) error {
	return &MalformedSegmentError{Path: path, Err: err}
}
