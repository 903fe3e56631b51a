package imagesource

import (
	"errors"
	"fmt"
)

// Failure classifies why a source could not be normalized.
type Failure int

const (
	FailureEmpty Failure = iota + 1
	FailureIoOrFormat
	FailureNetwork
)

func (f Failure) String() string {
	switch f {
	case FailureEmpty:
		return "empty"
	case FailureIoOrFormat:
		return "io_or_format"
	case FailureNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is checks against a *SourceError.
var (
	ErrEmpty      = errors.New("no image present")
	ErrIoOrFormat = errors.New("image unreadable or unsupported")
	ErrNetwork    = errors.New("image download failed")
)

// SourceError reports a normalization failure together with the source kind
// and the step that failed.
type SourceError struct {
	Failure Failure
	Source  Kind
	Op      string
	Err     error
}

func (e *SourceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("imagesource: %s %s: %s", e.Source, e.Op, e.sentinel())
	}
	return fmt.Sprintf("imagesource: %s %s: %v", e.Source, e.Op, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Is matches the sentinel corresponding to the failure class.
func (e *SourceError) Is(target error) bool {
	return target == e.sentinel()
}

func (e *SourceError) sentinel() error {
	switch e.Failure {
	case FailureEmpty:
		return ErrEmpty
	case FailureIoOrFormat:
		return ErrIoOrFormat
	case FailureNetwork:
		return ErrNetwork
	default:
		return nil
	}
}

func newError(f Failure, src Kind, op string, err error) *SourceError {
	return &SourceError{Failure: f, Source: src, Op: op, Err: err}
}
