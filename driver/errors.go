// Package driver implements the Device/Unit/Opener data model, the command
// dispatcher, the unit task, and the session entry points that sit above the
// soc/bcm2711/genet MAC driver.
package driver

import (
	"errors"
	"fmt"
)

// ErrorCode is the high-level error taxonomy reported back to callers.
type ErrorCode string

const (
	ErrOpenFailure   ErrorCode = "open failure"
	ErrOutOfService  ErrorCode = "out of service"
	ErrNoResources   ErrorCode = "no resources"
	ErrBadArgument   ErrorCode = "bad argument"
	ErrNotSupported  ErrorCode = "not supported"
	ErrAborted       ErrorCode = "aborted"
	ErrTimeout       ErrorCode = "timeout"
	ErrSoftware      ErrorCode = "software error"
	ErrHardware      ErrorCode = "hardware error"
)

// WireError is the secondary, protocol-specific error code carried alongside
// ErrorCode.
type WireError string

const (
	WireErrorNone          WireError = ""
	WireErrorBadUnitNumber WireError = "bad unit number"
	WireErrorBadLength     WireError = "bad request length"
	WireErrorExclusivity   WireError = "exclusivity denied"
	WireErrorUnitOffline   WireError = "unit offline"
	WireErrorBuffError     WireError = "buff error"
	WireErrorBadEvent      WireError = "bad event"
	WireErrorNoCommand     WireError = "no command"
	WireErrorBadPhyMode    WireError = "bad phy mode"
	WireErrorBadCoalesce   WireError = "bad coalesce argument"
)

// Error is a structured driver error carrying the operation, the taxonomy
// code, the wire error, the affected unit number, and any wrapped cause.
//
// Grounded on ehrlich-b-go-ublk/errors.go's *Error{Op, Code, Errno, Inner}
// shape, adapted to this driver's taxonomy in place of ublk's errno mapping.
type Error struct {
	Op        string
	Code      ErrorCode
	WireError WireError
	Unit      int
	Err       error
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.WireError != "" {
		msg = fmt.Sprintf("%s/%s", e.Code, e.WireError)
	}
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return "genet: " + msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code && (te.WireError == "" || e.WireError == te.WireError)
}

// NewError builds a structured Error.
func NewError(op string, code ErrorCode, wire WireError) *Error {
	return &Error{Op: op, Code: code, WireError: wire}
}

// WrapError wraps an existing error under the given op/code/wire, preserving
// the original as Err for errors.Is/As/Unwrap.
func WrapError(op string, code ErrorCode, wire WireError, err error) *Error {
	return &Error{Op: op, Code: code, WireError: wire, Err: err}
}

// IsCode reports whether err is a *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}
