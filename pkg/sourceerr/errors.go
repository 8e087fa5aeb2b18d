// Package sourceerr defines the error taxonomy surfaced by source adapters.
package sourceerr

import (
	"errors"
	"fmt"
)

// Kind classifies a source failure.
type Kind int

const (
	// KindMarkup means an expected node, marker or field was missing.
	KindMarkup Kind = iota
	// KindDecode means an encrypted or encoded payload could not be decoded.
	KindDecode
	// KindNetwork means a request failed or returned a non-success status.
	KindNetwork
	// KindUnsupported means the source does not implement the operation.
	KindUnsupported
	// KindUnknownSource means no source is registered under the requested id.
	KindUnknownSource
)

func (k Kind) String() string {
	switch k {
	case KindMarkup:
		return "markup"
	case KindDecode:
		return "decode"
	case KindNetwork:
		return "network"
	case KindUnsupported:
		return "unsupported"
	case KindUnknownSource:
		return "unknown source"
	default:
		return "unknown"
	}
}

// Error is a classified source failure.
type Error struct {
	Kind    Kind
	Source  string
	Message string
	URL     string
	Status  int
	Cause   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Source, e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.URL != "" {
		msg += fmt.Sprintf(" (url=%s", e.URL)
		if e.Status != 0 {
			msg += fmt.Sprintf(" status=%d", e.Status)
		}
		msg += ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Markup reports that expected markup was not found.
func Markup(source, expected string) *Error {
	return &Error{Kind: KindMarkup, Source: source, Message: "expected " + expected}
}

// Decode reports a failed decryption or decoding step.
func Decode(source, step string, cause error) *Error {
	return &Error{Kind: KindDecode, Source: source, Message: step, Cause: cause}
}

// Network reports a failed request. status is 0 when no response arrived.
func Network(source, url string, status int, cause error) *Error {
	return &Error{Kind: KindNetwork, Source: source, URL: url, Status: status, Cause: cause}
}

// Unsupported reports that source does not implement op.
func Unsupported(source, op string) *Error {
	return &Error{Kind: KindUnsupported, Source: source, Message: op}
}

// UnknownSource reports that no source is registered under id.
func UnknownSource(id string) *Error {
	return &Error{Kind: KindUnknownSource, Source: id}
}

// IsKind reports whether err is, or wraps, a source error of the given kind.
func IsKind(err error, kind Kind) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// KindOf returns the kind of err and whether err is a source error at all.
func KindOf(err error) (Kind, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}
