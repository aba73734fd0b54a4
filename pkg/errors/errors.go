// Package errors provides coded errors for grib2pf.
//
// Every failure that leaves a package carries a [Code] naming its class.
// Callers branch on the code with [Is] or [GetCode] and show
// [UserMessage] to people.
//
// Codes follow the failure classes of a render request. INVALID_* codes
// reject malformed input such as palette text, settings or flags.
// ALLOCATION reports a grid or pixel buffer that could not be created and
// GEOMETRY_MISMATCH two grids that disagree on their bounding box. DECODE,
// NETWORK_ERROR and TIMEOUT come from transport or decoding.
//
// A structural error aborts the render request it belongs to. Sibling
// requests sharing the same decoded payload carry on.
//
//	err := errors.New(errors.ErrCodeInvalidPalette, "line %d: bad channel %q", n, tok)
//	if errors.Is(err, errors.ErrCodeInvalidPalette) {
//	    // skip this output
//	}
//
//	err = errors.Wrap(errors.ErrCodeNetwork, cause, "GET %s", url)
package errors

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error class.
type Code string

const (
	ErrCodeInvalidInput   Code = "INVALID_INPUT"
	ErrCodeInvalidPalette Code = "INVALID_PALETTE"
	ErrCodeInvalidConfig  Code = "INVALID_CONFIG"
	ErrCodeInvalidMode    Code = "INVALID_MODE"
	ErrCodeInvalidArea    Code = "INVALID_AREA"

	ErrCodeAllocation       Code = "ALLOCATION"
	ErrCodeGeometryMismatch Code = "GEOMETRY_MISMATCH"

	ErrCodeDecode   Code = "DECODE"
	ErrCodeNetwork  Code = "NETWORK_ERROR"
	ErrCodeTimeout  Code = "TIMEOUT"
	ErrCodeNotFound Code = "NOT_FOUND"

	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Invalid reports whether c rejects user input: flags, settings,
// palettes, modes or areas.
func (c Code) Invalid() bool {
	switch c {
	case ErrCodeInvalidInput, ErrCodeInvalidPalette, ErrCodeInvalidConfig, ErrCodeInvalidMode, ErrCodeInvalidArea:
		return true
	}
	return false
}

// Error is a coded error with an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Code) + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New returns an error with code and a formatted message.
func New(code Code, format string, args ...any) *Error {
	return Wrap(code, nil, format, args...)
}

// Wrap returns an error with code and a formatted message that wraps cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// outermost returns the first *Error in err's chain, or nil.
func outermost(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// Is reports whether the outermost *Error in err's chain has code. Codes
// of errors it wraps are not consulted: a fetch that wraps a NOT_FOUND
// as TIMEOUT is a timeout.
func Is(err error, code Code) bool {
	e := outermost(err)
	return e != nil && e.Code == code
}

// GetCode returns the code of the outermost *Error in err's chain, or ""
// when there is none.
func GetCode(err error) Code {
	if e := outermost(err); e != nil {
		return e.Code
	}
	return ""
}

// UserMessage returns err's message without the code prefix. Errors
// without a code are returned as-is.
func UserMessage(err error) string {
	if e := outermost(err); e != nil {
		return e.Message
	}
	return err.Error()
}
