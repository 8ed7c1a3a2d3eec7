// Package svrerr defines the error taxonomy shared by every SVR component.
// Each error type carries the numeric code used on the wire by Comm
// responses, so a server-side error can round-trip to a client unchanged.
package svrerr

import (
	stdErrors "errors"
	"fmt"
)

// Code is the numeric error code exchanged in Comm response messages.
type Code int

const (
	Success         Code = 0
	ParseError_     Code = 1
	NoSuchEncoding  Code = 2
	InvalidState    Code = 3
	InvalidArgument Code = 4
	CommFailure     Code = 5
	NameClash       Code = 6
	NoSuchSource    Code = 7
)

func (c Code) String() string {
	switch c {
	case Success:
		return "SUCCESS"
	case ParseError_:
		return "PARSEERROR"
	case NoSuchEncoding:
		return "NOSUCHENCODING"
	case InvalidState:
		return "INVALIDSTATE"
	case InvalidArgument:
		return "INVALIDARGUMENT"
	case CommFailure:
		return "COMMFAILURE"
	case NameClash:
		return "NAMECLASH"
	case NoSuchSource:
		return "NOSUCHSOURCE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(c))
	}
}

// svrMarker is implemented by every error type in this package so callers can
// classify "is this one of ours" without enumerating each concrete type.
type svrMarker interface {
	error
	Code() Code
	isSVR()
}

// ParseError reports a malformed option string, with the byte offset and rune
// at which parsing failed.
type ParseError struct {
	Op       string // e.g. "optstring.Parse"
	Input    string
	Position int
	Rune     rune
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: parse error in %q at position %d %q", e.Op, e.Input, e.Position, e.Rune)
}
func (e *ParseError) Code() Code { return ParseError_ }
func (e *ParseError) isSVR()     {}

// NoSuchEncodingError is returned when an option string names an encoding not
// present in the registry consulted (client-side or broker-side).
type NoSuchEncodingError struct {
	Op   string
	Name string
}

func (e *NoSuchEncodingError) Error() string {
	return fmt.Sprintf("%s: no such encoding %q", e.Op, e.Name)
}
func (e *NoSuchEncodingError) Code() Code { return NoSuchEncoding }
func (e *NoSuchEncodingError) isSVR()     {}

// InvalidStateError is returned when an operation is attempted against a
// source or stream that is not in a state that permits it.
type InvalidStateError struct {
	Op    string
	State string
	Err   error
}

func (e *InvalidStateError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: invalid state %s", e.Op, e.State)
	}
	return fmt.Sprintf("%s: invalid state %s: %v", e.Op, e.State, e.Err)
}
func (e *InvalidStateError) Unwrap() error { return e.Err }
func (e *InvalidStateError) Code() Code    { return InvalidState }
func (e *InvalidStateError) isSVR()        {}

// InvalidArgumentError is returned for well-formed but semantically invalid
// input, such as a frame whose dimensions no longer match the source's
// committed frame properties.
type InvalidArgumentError struct {
	Op  string
	Err error
}

func (e *InvalidArgumentError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: invalid argument", e.Op)
	}
	return fmt.Sprintf("%s: invalid argument: %v", e.Op, e.Err)
}
func (e *InvalidArgumentError) Unwrap() error { return e.Err }
func (e *InvalidArgumentError) Code() Code    { return InvalidArgument }
func (e *InvalidArgumentError) isSVR()        {}

// CommFailureError indicates the underlying connection to the broker was
// lost or reset mid-request. It is never retried automatically; the caller
// owns reconnection policy.
type CommFailureError struct {
	Op  string
	Err error
}

func (e *CommFailureError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: comm failure", e.Op)
	}
	return fmt.Sprintf("%s: comm failure: %v", e.Op, e.Err)
}
func (e *CommFailureError) Unwrap() error { return e.Err }
func (e *CommFailureError) Code() Code    { return CommFailure }
func (e *CommFailureError) isSVR()        {}

// NameClashError is returned when opening a source or registering a name
// that is already in use.
type NameClashError struct {
	Op   string
	Name string
}

func (e *NameClashError) Error() string {
	return fmt.Sprintf("%s: name %q already in use", e.Op, e.Name)
}
func (e *NameClashError) Code() Code { return NameClash }
func (e *NameClashError) isSVR()     {}

// NoSuchSourceError is returned when an operation names a source that does
// not exist in the broker's registry.
type NoSuchSourceError struct {
	Op   string
	Name string
}

func (e *NoSuchSourceError) Error() string {
	return fmt.Sprintf("%s: no such source %q", e.Op, e.Name)
}
func (e *NoSuchSourceError) Code() Code { return NoSuchSource }
func (e *NoSuchSourceError) isSVR()     {}

// SourceClosedError is returned to a stream reader blocked waiting for the
// next frame when its source is closed out from under it (spec.md §9
// "Orphaning on source close"). It is broker-internal and never crosses the
// wire as a numeric code — the eight codes above are exhaustive for that —
// so it does not implement svrMarker/Code().
type SourceClosedError struct {
	Source string
}

func (e *SourceClosedError) Error() string {
	return fmt.Sprintf("source %q closed", e.Source)
}

// IsSourceClosed reports whether err's chain contains a SourceClosedError.
func IsSourceClosed(err error) bool {
	var e *SourceClosedError
	return stdErrors.As(err, &e)
}

// CodeOf returns the wire code for err, or Success if err is nil, or
// CommFailure if err is non-nil but not one of this package's types (a
// defensive default: an unclassified failure is treated as connection-fatal
// rather than silently reported as success).
func CodeOf(err error) Code {
	if err == nil {
		return Success
	}
	var m svrMarker
	if stdErrors.As(err, &m) {
		return m.Code()
	}
	return CommFailure
}

// Is reports whether err's chain contains any error from this package.
func Is(err error) bool {
	if err == nil {
		return false
	}
	var m svrMarker
	return stdErrors.As(err, &m)
}

// IsCommFailure reports whether err's chain contains a CommFailureError.
func IsCommFailure(err error) bool {
	var e *CommFailureError
	return stdErrors.As(err, &e)
}

// IsParseError reports whether err's chain contains a ParseError.
func IsParseError(err error) bool {
	var e *ParseError
	return stdErrors.As(err, &e)
}

// IsInvalidState reports whether err's chain contains an InvalidStateError.
func IsInvalidState(err error) bool {
	var e *InvalidStateError
	return stdErrors.As(err, &e)
}

// IsNoSuchSource reports whether err's chain contains a NoSuchSourceError.
func IsNoSuchSource(err error) bool {
	var e *NoSuchSourceError
	return stdErrors.As(err, &e)
}

// FromCode builds a generic error carrying the given wire code, for the
// client side of Comm where only the numeric code (not a typed cause)
// crosses the wire. op and detail are used for the message only.
func FromCode(code Code, op, detail string) error {
	switch code {
	case Success:
		return nil
	case ParseError_:
		return &ParseError{Op: op, Input: detail}
	case NoSuchEncoding:
		return &NoSuchEncodingError{Op: op, Name: detail}
	case InvalidState:
		return &InvalidStateError{Op: op, State: detail}
	case InvalidArgument:
		return &InvalidArgumentError{Op: op, Err: stdErrors.New(detail)}
	case CommFailure:
		return &CommFailureError{Op: op, Err: stdErrors.New(detail)}
	case NameClash:
		return &NameClashError{Op: op, Name: detail}
	case NoSuchSource:
		return &NoSuchSourceError{Op: op, Name: detail}
	default:
		return &CommFailureError{Op: op, Err: fmt.Errorf("unknown error code %d: %s", int(code), detail)}
	}
}
