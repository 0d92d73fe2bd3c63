package zipcore

import (
	"errors"
	"fmt"

	"github.com/arlyn/zipcore/internal/centraldir"
	"github.com/arlyn/zipcore/internal/entrystream"
	"github.com/arlyn/zipcore/internal/header"
	"github.com/arlyn/zipcore/internal/winzipaes"
	"github.com/arlyn/zipcore/internal/zipcrypto"
)

// Code classifies an *Error into one of the archive's failure kinds.
type Code int

const (
	CodeParam Code = iota
	CodeMem
	CodeStream
	CodeFormat
	CodeCRC
	CodeSupport
	CodeExist
	CodeEndOfList
	CodeInternal
)

func (c Code) String() string {
	switch c {
	case CodeParam:
		return "PARAM"
	case CodeMem:
		return "MEM"
	case CodeStream:
		return "STREAM"
	case CodeFormat:
		return "FORMAT"
	case CodeCRC:
		return "CRC"
	case CodeSupport:
		return "SUPPORT"
	case CodeExist:
		return "EXIST"
	case CodeEndOfList:
		return "END_OF_LIST"
	default:
		return "INTERNAL"
	}
}

// Error is the error type every exported Archive operation returns on
// failure. Op names the failing method; Err, when present, is the
// underlying cause.
type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("zipcore: %s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("zipcore: %s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(op string, code Code, err error) *Error {
	return &Error{Op: op, Code: code, Err: err}
}

// wrapErr classifies an internal-package error into the appropriate Code,
// falling back to CodeInternal for anything unrecognized.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var zerr *Error
	if errors.As(err, &zerr) {
		return err
	}
	switch {
	case errors.Is(err, header.ErrEndOfList), errors.Is(err, centraldir.ErrNoEOCDFound):
		return newErr(op, CodeEndOfList, err)
	case errors.Is(err, centraldir.ErrFormat), errors.Is(err, header.ErrInvalidDate):
		return newErr(op, CodeFormat, err)
	case errors.Is(err, entrystream.ErrCRCMismatch):
		return newErr(op, CodeCRC, err)
	case errors.Is(err, entrystream.ErrUnsupportedMethod):
		return newErr(op, CodeSupport, err)
	case errors.Is(err, zipcrypto.ErrBadPassword), errors.Is(err, winzipaes.ErrBadPassword), errors.Is(err, winzipaes.ErrAuthentication):
		return newErr(op, CodeCRC, err)
	default:
		return newErr(op, CodeStream, err)
	}
}
