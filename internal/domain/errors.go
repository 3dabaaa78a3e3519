package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies the failures the pipeline distinguishes.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindConfiguration aborts the run before any network activity.
	KindConfiguration
	// KindReferenceParse fails a single repository.
	KindReferenceParse
	// KindUpstreamAPI fails a single repository.
	KindUpstreamAPI
	// KindRateLimitExceeded fails a single repository and is never retried.
	KindRateLimitExceeded
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "ConfigurationError"
	case KindReferenceParse:
		return "ReferenceParseError"
	case KindUpstreamAPI:
		return "UpstreamApiError"
	case KindRateLimitExceeded:
		return "RateLimitExceeded"
	default:
		return "UnknownError"
	}
}

// Error is the tagged error used throughout the pipeline.
// Status, Header and Body are only set for errors coming from the API.
type Error struct {
	Kind   ErrorKind
	Op     string
	Status int
	Header http.Header
	Body   string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ConfigurationError builds a KindConfiguration error.
func ConfigurationError(format string, args ...any) error {
	return &Error{Kind: KindConfiguration, Err: fmt.Errorf(format, args...)}
}
