package controller

import (
	"errors"
	"fmt"
)

var (
	// ErrNothingToGenerate is returned by Generate when the pending text is
	// empty. The encoder is not called.
	ErrNothingToGenerate = errors.New("nothing to generate")
	// ErrNothingGenerated is returned by Copy and Save before any successful
	// Generate.
	ErrNothingGenerated = errors.New("no generated QR code")
	// ErrNoResult is returned by CopyResult when the last scan decoded nothing.
	ErrNoResult = errors.New("no decoded text to copy")
	// ErrUnsupportedDrop is returned by Drop for payloads carrying neither
	// files nor links.
	ErrUnsupportedDrop = errors.New("drop payload has no files or links")
	// ErrDialogCanceled matches a PersistError of kind DialogCanceled.
	ErrDialogCanceled = errors.New("dialog canceled")

	errClipboardUnavailable     = errors.New("clipboard unavailable")
	errTextClipboardUnavailable = errors.New("text clipboard unavailable")
)

// PersistKind classifies copy and save failures.
type PersistKind int

const (
	PersistDialogCanceled PersistKind = iota + 1
	PersistIoFailure
)

func (k PersistKind) String() string {
	switch k {
	case PersistDialogCanceled:
		return "dialog canceled"
	case PersistIoFailure:
		return "io failure"
	default:
		return "unknown"
	}
}

// PersistError reports a failed copy or save of the generated image.
type PersistError struct {
	Kind PersistKind
	Op   string
	Err  error
}

func (e *PersistError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrDialogCanceled) match canceled dialogs.
func (e *PersistError) Is(target error) bool {
	return e.Kind == PersistDialogCanceled && target == ErrDialogCanceled
}
