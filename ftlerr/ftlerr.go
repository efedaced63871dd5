// Package ftlerr defines the error taxonomy the FTL core recognizes and the
// retry helpers used at its two suspension points (request-slot and
// temp-buffer admission).
package ftlerr

import (
	"errors"
	"fmt"
)

// Code enumerates the FTL core's error categories.
type Code int

const (
	// Unknown is an unspecified error condition.
	Unknown Code = iota
	// NoVictim means the only reachable victim list is empty. Fatal: the
	// device has genuinely exhausted reclaimable space.
	NoVictim
	// NoFreeSlot means the request-pool or temp-buffer is exhausted.
	// Transient: the caller yields and retries after completion draining.
	NoFreeSlot
	// BadBlock means an erase failed. Classic GC marks the block bad; FDP
	// GC marks nothing and leaves the RU out of both its free queue and its
	// victim buckets. Either way the victim is excluded from free
	// circulation. The error is returned to the GC's caller; the core does
	// not retry GC with another victim.
	BadBlock
	// InvalidHandle means a placement handle index is >= nphs for the
	// namespace. Host-visible.
	InvalidHandle
	// FdpDisabled means a placement hint (or an FDP GC pass) was requested
	// but the core has no enabled Endurance Group. Host-visible.
	FdpDisabled
)

func (c Code) String() string {
	switch c {
	case NoVictim:
		return "NoVictim"
	case NoFreeSlot:
		return "NoFreeSlot"
	case BadBlock:
		return "BadBlock"
	case InvalidHandle:
		return "InvalidHandle"
	case FdpDisabled:
		return "FdpDisabled"
	default:
		return "Unknown"
	}
}

// Error is the FTL core's structured error: a code, an optional wrapped
// cause, and optional caller-supplied context data.
type Error struct {
	Code     Code
	Err      error
	UserData any
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("ftl error %s: user data: %v", e.Code, e.UserData)
	}
	return fmt.Errorf("ftl error %s: user data: %v, details: %w", e.Code, e.UserData, e.Err).Error()
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error with the given code and optional context data.
func New(code Code, userData any, err error) *Error {
	return &Error{Code: code, Err: err, UserData: userData}
}

// Is reports whether err is an *Error carrying the given code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
