// ABOUTME: Classified resolver failures
// ABOUTME: Kinds match their sentinel values through errors.Is
package resolver

import (
	"errors"
	"fmt"
)

// Kind classifies a resolver failure
type Kind int

const (
	KindAuthDenied Kind = iota + 1
	KindNotFound
	KindNoStreamableMedia
	KindTransport
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindAuthDenied:
		return "auth denied"
	case KindNotFound:
		return "not found"
	case KindNoStreamableMedia:
		return "no streamable media"
	case KindTransport:
		return "transport error"
	case KindUpstream:
		return "upstream error"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is
var (
	ErrAuthDenied        = &Error{Kind: KindAuthDenied}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrNoStreamableMedia = &Error{Kind: KindNoStreamableMedia}
	ErrTransport         = &Error{Kind: KindTransport}
	ErrUpstream          = &Error{Kind: KindUpstream}
)

// Error is returned by every failing Resolve call.
// Status carries the HTTP status for AuthDenied, NotFound and Upstream.
type Error struct {
	Kind   Kind
	Status int
	Stage  string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindAuthDenied:
		return "Access Denied. A valid Web Client ID is required for API v2."
	case KindNotFound:
		return "Track not found."
	case KindNoStreamableMedia:
		if e.Stage == stageStream {
			return "Failed to get final streaming URL."
		}
		return "No streamable media found."
	case KindUpstream:
		return fmt.Sprintf("Resolve Error: %d", e.Status)
	case KindTransport:
		if e.Err != nil {
			return fmt.Sprintf("Network error during %s: %v", e.Stage, e.Err)
		}
		return "Network error"
	default:
		return "resolver error"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any Error of the same kind
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// IsAuthDenied reports whether err is an authorization failure
func IsAuthDenied(err error) bool {
	return errors.Is(err, ErrAuthDenied)
}

func statusError(stage string, status int) *Error {
	switch {
	case status == 401 || status == 403:
		return &Error{Kind: KindAuthDenied, Status: status, Stage: stage}
	case status == 404 && stage == stageResolve:
		return &Error{Kind: KindNotFound, Status: status, Stage: stage}
	default:
		return &Error{Kind: KindUpstream, Status: status, Stage: stage}
	}
}

func transportError(stage string, err error) *Error {
	return &Error{Kind: KindTransport, Stage: stage, Err: err}
}
