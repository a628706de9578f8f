package cipher

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ytget/ytsig/errs"
)

// Error codes
const (
	ErrCodeUnsupportedStart     = "UNSUPPORTED_START"
	ErrCodeUnbalancedBrackets   = "UNBALANCED_BRACKETS"
	ErrCodeAnchorNotFound       = "ANCHOR_NOT_FOUND"
	ErrCodeExtractionFailed     = "EXTRACTION_FAILED"
	ErrCodeEvaluationFailed     = "EVALUATION_FAILED"
	ErrCodeTokenGrammarMismatch = "TOKEN_GRAMMAR_MISMATCH"
	ErrCodeIndexOutOfRange      = "INDEX_OUT_OF_RANGE"
)

var codeSentinels = map[string]error{
	ErrCodeUnsupportedStart:     errs.ErrUnsupportedStart,
	ErrCodeUnbalancedBrackets:   errs.ErrUnbalancedBrackets,
	ErrCodeAnchorNotFound:       errs.ErrAnchorNotFound,
	ErrCodeExtractionFailed:     errs.ErrExtractionFailed,
	ErrCodeEvaluationFailed:     errs.ErrEvaluationFailed,
	ErrCodeTokenGrammarMismatch: errs.ErrTokenGrammarMismatch,
	ErrCodeIndexOutOfRange:      errs.ErrIndexOutOfRange,
}

// Error represents a structured error with code and details.
// errors.Is matches both the sentinel in package errs that belongs to Code
// and anything in the wrapped cause chain.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Details != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Details)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e.Code.
func (e *Error) Is(target error) bool {
	sentinel, ok := codeSentinels[e.Code]
	return ok && sentinel == target
}

// MarshalJSON implements json.Marshaler
func (e *Error) MarshalJSON() ([]byte, error) {
	type Alias Error
	out := &struct {
		*Alias
		Error string `json:"error"`
		Cause string `json:"cause,omitempty"`
	}{
		Alias: (*Alias)(e),
		Error: e.Error(),
	}
	if e.Err != nil {
		out.Cause = e.Err.Error()
	}
	return json.Marshal(out)
}

// NewError creates a new Error with the given code and message
func NewError(code string, message string, details ...any) *Error {
	e := &Error{
		Code:    code,
		Message: message,
	}
	if len(details) > 0 {
		e.Details = details[0]
	}
	return e
}

// WrapError is NewError with a cause.
func WrapError(code string, message string, cause error, details ...any) *Error {
	e := NewError(code, message, details...)
	e.Err = cause
	return e
}

func hasCode(err error, codes ...string) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	for _, c := range codes {
		if e.Code == c {
			return true
		}
	}
	return false
}

// IsExtractionError returns true if a routine could not be pulled out of the bundle.
func IsExtractionError(err error) bool {
	return hasCode(err, ErrCodeExtractionFailed, ErrCodeAnchorNotFound, ErrCodeUnsupportedStart, ErrCodeUnbalancedBrackets)
}

// IsEvaluationError returns true if an extracted routine failed to run.
func IsEvaluationError(err error) bool {
	return hasCode(err, ErrCodeEvaluationFailed)
}

// IsGrammarMismatch returns true if the token grammars did not match the bundle.
func IsGrammarMismatch(err error) bool {
	return hasCode(err, ErrCodeTokenGrammarMismatch)
}

// IsIndexOutOfRange returns true if a token addressed a position outside the signature.
func IsIndexOutOfRange(err error) bool {
	return hasCode(err, ErrCodeIndexOutOfRange)
}
