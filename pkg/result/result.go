// Package result defines the HAL's typed error kinds, the last-error
// reporter and the version string.
package result

import (
	"errors"
	"fmt"
)

// Kind classifies the outcome of a HAL operation.
type Kind int

const (
	Success Kind = iota
	InvalidParameter
	NoDevice
	NotSupported
	NoMemory
	AccessDenied
	DeviceBusy
	Timeout
	Hardware
	OsSpecific
)

var kindNames = [...]string{
	Success:          "success",
	InvalidParameter: "invalid parameter",
	NoDevice:         "no device",
	NotSupported:     "not supported",
	NoMemory:         "no memory",
	AccessDenied:     "access denied",
	DeviceBusy:       "device busy",
	Timeout:          "timeout",
	Hardware:         "hardware error",
	OsSpecific:       "OS-specific error",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Code returns the numeric result code (0 for success, negative otherwise).
func (k Kind) Code() int {
	return -int(k)
}

// Error is a failed HAL operation.
type Error struct {
	// Op is the operation that failed (e.g. "set_vlan_tag").
	Op   string
	Kind Kind
	Msg  string
	// Err is the underlying OS or library error, if any.
	Err error
}

func (e *Error) Error() string {
	s := e.Kind.String()
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below can be used
// with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// Sentinels for errors.Is.
var (
	ErrInvalidParameter = &Error{Kind: InvalidParameter}
	ErrNoDevice         = &Error{Kind: NoDevice}
	ErrNotSupported     = &Error{Kind: NotSupported}
	ErrNoMemory         = &Error{Kind: NoMemory}
	ErrAccessDenied     = &Error{Kind: AccessDenied}
	ErrDeviceBusy       = &Error{Kind: DeviceBusy}
	ErrTimeout          = &Error{Kind: Timeout}
	ErrHardware         = &Error{Kind: Hardware}
	ErrOsSpecific       = &Error{Kind: OsSpecific}
)

// New returns an *Error with a formatted message.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap returns an *Error carrying err as its cause.
func Wrap(kind Kind, op string, err error, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// WithOp re-labels err with op. A typed error keeps its kind; anything else
// becomes OsSpecific.
func WithOp(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Op == op {
			return e
		}
		cp := *e
		if cp.Op != "" {
			cp.Msg = joinMsg(cp.Op, cp.Msg)
		}
		cp.Op = op
		return &cp
	}
	return &Error{Op: op, Kind: OsSpecific, Err: err}
}

func joinMsg(prefix, msg string) string {
	if msg == "" {
		return prefix
	}
	return prefix + ": " + msg
}

// KindOf returns the kind of err: Success for nil, OsSpecific for untyped errors.
func KindOf(err error) Kind {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return OsSpecific
}
