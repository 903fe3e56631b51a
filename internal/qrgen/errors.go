package qrgen

import (
	"errors"
	"fmt"
)

// ErrorKind classifies encode failures.
type ErrorKind int

const (
	KindEmptyInput ErrorKind = iota + 1
	KindCapacity
	KindInvalidInput
)

func (k ErrorKind) String() string {
	switch k {
	case KindEmptyInput:
		return "empty input"
	case KindCapacity:
		return "capacity exceeded"
	case KindInvalidInput:
		return "invalid input"
	default:
		return "unknown"
	}
}

var (
	ErrEmptyInput   = errors.New("nothing to encode")
	ErrCapacity     = errors.New("text too long for a QR code")
	ErrInvalidInput = errors.New("text cannot be encoded")
)

// EncodeError wraps an encoder failure with its classification.
type EncodeError struct {
	Kind ErrorKind
	Err  error
}

func (e *EncodeError) Error() string {
	if e.Err == nil {
		return "qrgen: " + e.Kind.String()
	}
	return fmt.Sprintf("qrgen: %s: %v", e.Kind, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// Is matches the sentinel for the error kind.
func (e *EncodeError) Is(target error) bool {
	switch e.Kind {
	case KindEmptyInput:
		return target == ErrEmptyInput
	case KindCapacity:
		return target == ErrCapacity
	case KindInvalidInput:
		return target == ErrInvalidInput
	}
	return false
}
