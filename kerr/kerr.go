// Package kerr defines the recoverable error codes returned from the
// concurrency core's public API, plus the panic used for
// kernel-internal invariant violations.
package kerr

import (
	"errors"
	"fmt"
)

// Code is one of the fixed error codes the public API may return.
type Code int

const (
	// EINVAL indicates a bad argument.
	EINVAL Code = iota + 1
	// EAGAIN indicates no free slot or a failed page allocation.
	EAGAIN
	// EBUSY indicates the target is in use or locked.
	EBUSY
	// EBADF indicates an invalid handle or a thread/task in the wrong state.
	EBADF
	// EPROTO indicates a trywait-style call failed without blocking.
	EPROTO
)

func (c Code) String() string {
	switch c {
	case EINVAL:
		return "EINVAL"
	case EAGAIN:
		return "EAGAIN"
	case EBUSY:
		return "EBUSY"
	case EBADF:
		return "EBADF"
	case EPROTO:
		return "EPROTO"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// Error wraps a Code with the operation that produced it and an optional
// cause, satisfying errors.Is/errors.As against both the Code and the
// cause.
type Error struct {
	Code  Code
	Op    string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, kerr.EAGAIN) work by comparing codes through a
// codeSentinel (see the package-level sentinels below).
func (e *Error) Is(target error) bool {
	var sentinel *codeSentinel
	if errors.As(target, &sentinel) {
		return sentinel.code == e.Code
	}
	return false
}

type codeSentinel struct{ code Code }

func (s *codeSentinel) Error() string { return s.code.String() }

// Sentinels usable with errors.Is(err, kerr.ErrEINVAL) etc.
var (
	ErrEINVAL = &codeSentinel{EINVAL}
	ErrEAGAIN = &codeSentinel{EAGAIN}
	ErrEBUSY  = &codeSentinel{EBUSY}
	ErrEBADF  = &codeSentinel{EBADF}
	ErrEPROTO = &codeSentinel{EPROTO}
)

// New returns a new *Error for op with the given code and no cause.
func New(op string, code Code) error {
	return &Error{Code: code, Op: op}
}

// Wrap returns a new *Error for op with the given code, wrapping cause.
func Wrap(op string, code Code, cause error) error {
	return &Error{Code: code, Op: op, Cause: cause}
}

// Panicf panics with a fixed, greppable message for conditions that
// indicate a kernel-internal bug rather than caller misuse: corrupted
// state, dangling queue links, a lock held across release, a context
// pointer that isn't kernel-addressable.
func Panicf(format string, args ...any) {
	panic(fmt.Sprintf("kernel invariant violated: "+format, args...))
}
