// Package scan turns a normalized image into a ScanOutcome.
package scan

import (
	"encoding/json"
	"image"
)

// Status tags the variant held by an Outcome.
type Status int

const (
	StatusInitial Status = iota
	StatusSuccess
	StatusNoImage
	StatusNoCode
	StatusSourceError
)

// String returns the wire name used in JSON responses.
func (s Status) String() string {
	switch s {
	case StatusInitial:
		return "initial"
	case StatusSuccess:
		return "success"
	case StatusNoImage:
		return "no_image"
	case StatusNoCode:
		return "no_code"
	case StatusSourceError:
		return "source_error"
	default:
		return "unknown"
	}
}

// Display strings for the non-success outcomes.
const (
	MessageInitial     = "not yet scanned"
	MessageNoImage     = "no image on clipboard"
	MessageNoCode      = "no QR code found"
	MessageSourceError = "scan failed"
)

// Outcome is the immutable result of one decode attempt.
type Outcome struct {
	Status Status
	// Text is the decoded payload, set only for StatusSuccess.
	Text string
	// ECLevel and Bounds describe the decoded symbol. Bounds are in the
	// coordinates of the normalized image, which may have been downscaled.
	ECLevel string
	Bounds  image.Rectangle
	// Err keeps the cause of a StatusSourceError or StatusNoCode for logging.
	Err error
}

// Initial is the outcome before any scan has run.
func Initial() Outcome { return Outcome{Status: StatusInitial} }

// Success wraps decoded text.
func Success(text string) Outcome { return Outcome{Status: StatusSuccess, Text: text} }

// NoImage reports that there was nothing to decode.
func NoImage() Outcome { return Outcome{Status: StatusNoImage} }

// NoCode reports that the decoder ran but found no symbol.
func NoCode(err error) Outcome { return Outcome{Status: StatusNoCode, Err: err} }

// SourceFailure reports that the image could not be obtained or read.
func SourceFailure(err error) Outcome { return Outcome{Status: StatusSourceError, Err: err} }

// OK reports whether the outcome carries decoded text.
func (o Outcome) OK() bool { return o.Status == StatusSuccess }

// Message returns the single status string shown for this outcome.
func (o Outcome) Message() string {
	switch o.Status {
	case StatusSuccess:
		return o.Text
	case StatusNoImage:
		return MessageNoImage
	case StatusNoCode:
		return MessageNoCode
	case StatusSourceError:
		return MessageSourceError
	default:
		return MessageInitial
	}
}

type boundsJSON struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

type outcomeJSON struct {
	Status  string      `json:"status"`
	Text    string      `json:"text,omitempty"`
	Message string      `json:"message"`
	ECLevel string      `json:"ec_level,omitempty"`
	Bounds  *boundsJSON `json:"bounds,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// MarshalJSON renders the outcome in the shape returned by the HTTP surface
// and `scan --format json`.
func (o Outcome) MarshalJSON() ([]byte, error) {
	out := outcomeJSON{
		Status:  o.Status.String(),
		Text:    o.Text,
		Message: o.Message(),
		ECLevel: o.ECLevel,
	}
	if !o.Bounds.Empty() {
		out.Bounds = &boundsJSON{X: o.Bounds.Min.X, Y: o.Bounds.Min.Y, Width: o.Bounds.Dx(), Height: o.Bounds.Dy()}
	}
	if o.Err != nil {
		out.Error = o.Err.Error()
	}
	return json.Marshal(out)
}
