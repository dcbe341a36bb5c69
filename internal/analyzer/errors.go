// ABOUTME: Error type for audio graph failures
// ABOUTME: Audio errors are reported to the caller but never stop rendering
package analyzer

import "fmt"

// AudioError describes a failed graph operation
type AudioError struct {
	Op  string
	Err error
}

func (e *AudioError) Error() string {
	return fmt.Sprintf("audio %s: %v", e.Op, e.Err)
}

func (e *AudioError) Unwrap() error { return e.Err }
