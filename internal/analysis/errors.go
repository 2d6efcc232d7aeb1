package analysis

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a pipeline run did not produce a result.
type ErrorKind string

const (
	KindDecode           ErrorKind = "DecodeError"
	KindInsufficientData ErrorKind = "InsufficientDataError"
	KindUnsupportedTest  ErrorKind = "UnsupportedTestError"
	KindStageTimeout     ErrorKind = "StageTimeoutError"
	KindModelUnavailable ErrorKind = "ModelUnavailableError"
	KindCancelled        ErrorKind = "Cancelled"
)

func (k ErrorKind) String() string {
	return string(k)
}

// Retryable reports whether the same input can succeed on a later attempt.
// Input errors need new input, logic errors need a catalog change.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindStageTimeout, KindModelUnavailable, KindCancelled:
		return true
	default:
		return false
	}
}

// Error is the typed failure every analysis component returns.
// The orchestrator stamps Stage and never rewrites Kind.
type Error struct {
	Kind   ErrorKind
	Stage  State
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Stage != "" {
		msg += " at " + string(e.Stage)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors of the same kind, so errors.Is(err, ErrDecode) works
// regardless of stage and reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Stage == "" && t.Reason == "" && t.Err == nil
}

var (
	ErrDecode           = &Error{Kind: KindDecode}
	ErrInsufficientData = &Error{Kind: KindInsufficientData}
	ErrUnsupportedTest  = &Error{Kind: KindUnsupportedTest}
	ErrStageTimeout     = &Error{Kind: KindStageTimeout}
	ErrModelUnavailable = &Error{Kind: KindModelUnavailable}
	ErrCancelled        = &Error{Kind: KindCancelled}
)

func NewError(kind ErrorKind, reason string, err error) *Error {
	return &Error{
		Kind:   kind,
		Reason: reason,
		Err:    err,
	}
}

func DecodeError(format string, args ...any) *Error {
	return NewError(KindDecode, fmt.Sprintf(format, args...), nil)
}

func InsufficientDataError(format string, args ...any) *Error {
	return NewError(KindInsufficientData, fmt.Sprintf(format, args...), nil)
}

func UnsupportedTestError(testID string) *Error {
	return NewError(KindUnsupportedTest, fmt.Sprintf("no metric extractor registered for test [%s]", testID), nil)
}

func ModelUnavailableError(reason string, err error) *Error {
	return NewError(KindModelUnavailable, reason, err)
}

// AsError extracts the analysis error from err, if there is one.
func AsError(err error) (*Error, bool) {
	var aErr *Error
	if errors.As(err, &aErr) {
		return aErr, true
	}
	return nil, false
}

// AtStage returns err as an *Error stamped with stage. Errors that are not
// analysis errors are returned as nil, ok=false.
func AtStage(err error, stage State) (*Error, bool) {
	aErr, ok := AsError(err)
	if !ok {
		return nil, false
	}
	stamped := *aErr
	if stamped.Stage == "" {
		stamped.Stage = stage
	}
	return &stamped, true
}
