package model

import (
	"errors"
	"fmt"
)

// ErrorKind tags a scan error with its place in the taxonomy.
type ErrorKind string

const (
	KindDataUnavailable ErrorKind = "DATA_UNAVAILABLE"
	KindFeature         ErrorKind = "FEATURE_ERROR"
	KindModel           ErrorKind = "MODEL_ERROR"
	KindDecision        ErrorKind = "DECISION_ERROR"
	KindInvalidInput    ErrorKind = "INVALID_INPUT"
	KindInternal        ErrorKind = "INTERNAL"
)

// Common reasons. They are part of ScanFailure messages and are matched by tests.
const (
	ReasonInsufficientHistory = "insufficient history"
	ReasonEmptyResponse       = "empty response"
	ReasonMissingField        = "missing required field"
	ReasonTimeout             = "timeout"
	ReasonProvider            = "provider error"
	ReasonInsufficientWindow  = "insufficient window"
	ReasonDegenerateInput     = "degenerate input"
	ReasonModelNotLoaded      = "model not loaded"
	ReasonInvalidPrice        = "invalid price"
)

// Sentinels usable with errors.Is against any *Error of the same kind.
var (
	ErrDataUnavailable = &Error{Kind: KindDataUnavailable}
	ErrFeature         = &Error{Kind: KindFeature}
	ErrModel           = &Error{Kind: KindModel}
	ErrDecision        = &Error{Kind: KindDecision}
	ErrInvalidInput    = &Error{Kind: KindInvalidInput}
)

// Error is the typed error carried through the scan pipeline.
type Error struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind only, so errors.Is(err, ErrFeature) holds for every feature error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Reason == "" || t.Reason == e.Reason)
}

func newError(kind ErrorKind, reason string, cause error) error {
	return &Error{Kind: kind, Reason: reason, Err: cause}
}

func DataUnavailable(reason string, cause error) error {
	return newError(KindDataUnavailable, reason, cause)
}

func FeatureError(reason string, cause error) error {
	return newError(KindFeature, reason, cause)
}

func ModelError(reason string, cause error) error {
	return newError(KindModel, reason, cause)
}

func DecisionError(reason string, cause error) error {
	return newError(KindDecision, reason, cause)
}

func InvalidInput(reason string) error {
	return newError(KindInvalidInput, reason, nil)
}

// KindOf returns the kind of a pipeline error, or KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ReasonOf returns the reason of a pipeline error, or the error text for foreign errors.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return err.Error()
}
