package inference

import (
	"errors"
	"fmt"
)

// Kind classifies a failed request.
type Kind int

const (
	InvalidInput Kind = iota + 1
	NotFound
	PredictionNotAllowed
	InsufficientHistory
	ModelUnavailable
	Internal
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "InvalidInput"
	case NotFound:
		return "NotFound"
	case PredictionNotAllowed:
		return "PredictionNotAllowed"
	case InsufficientHistory:
		return "InsufficientHistory"
	case ModelUnavailable:
		return "ModelUnavailable"
	case Internal:
		return "Internal"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is the structured failure returned by the executor.
type Error struct {
	Kind    Kind
	Message string
	// Alternatives lists valid inverter ids for NotFound, when known.
	Alternatives []int
	// Found is the number of usable readings for InsufficientHistory.
	Found int
	// Err is the underlying cause. It is never part of Error().
	Err error
}

func (e *Error) Error() string {
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Retriable reports whether the caller may retry the same request later.
func (e *Error) Retriable() bool {
	return e.Kind == ModelUnavailable
}

// KindOf returns the Kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func newError(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}
