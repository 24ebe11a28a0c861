// Package resilience provides bounded retry with backoff and the transient
// store-failure taxonomy used to decide what is worth retrying.
package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
)

// Kind classifies a transient infrastructure failure.
type Kind int

const (
	// KindUnavailable means the store could not be reached or refused work.
	KindUnavailable Kind = iota + 1
	// KindTimeout means the store did not answer within the call deadline.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindUnavailable:
		return "store_unavailable"
	case KindTimeout:
		return "store_timeout"
	default:
		return "unknown"
	}
}

var (
	// ErrStoreUnavailable matches any TransientError of KindUnavailable.
	ErrStoreUnavailable = eris.New("store unavailable")
	// ErrStoreTimeout matches any TransientError of KindTimeout.
	ErrStoreTimeout = eris.New("store timeout")
)

// TransientError wraps an error that is safe to retry.
type TransientError struct {
	Kind Kind
	Err  error
}

func (e *TransientError) Error() string {
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the kind sentinels.
func (e *TransientError) Is(target error) bool {
	switch target {
	case ErrStoreUnavailable:
		return e.Kind == KindUnavailable
	case ErrStoreTimeout:
		return e.Kind == KindTimeout
	}
	return false
}

// Unavailable tags err as a StoreUnavailable failure.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Kind: KindUnavailable, Err: err}
}

// Timeout tags err as a StoreTimeout failure.
func Timeout(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Kind: KindTimeout, Err: err}
}

// IsTransient returns true if err (or any error in its chain) is a
// TransientError or looks like a transient network or store fault.
func IsTransient(err error) bool {
	return KindOf(err) != 0
}

// KindOf reports the transient kind of err, or 0 when err is not transient.
func KindOf(err error) Kind {
	if err == nil {
		return 0
	}

	var te *TransientError
	if errors.As(err, &te) {
		return te.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, net.ErrClosed) {
		return KindUnavailable
	}

	msg := strings.ToLower(err.Error())
	for _, p := range timeoutPatterns {
		if strings.Contains(msg, p) {
			return KindTimeout
		}
	}
	for _, p := range unavailablePatterns {
		if strings.Contains(msg, p) {
			return KindUnavailable
		}
	}

	return 0
}

var timeoutPatterns = []string{
	"i/o timeout",
	"context deadline exceeded",
	"timeout: context already done",
	"canceling statement due to statement timeout",
}

var unavailablePatterns = []string{
	"connection reset by peer",
	"connection refused",
	"broken pipe",
	"no such host",
	"closed pool",
	"conn closed",
	"server closed the connection",
	"failed to connect",
	"database is locked",
	"sqlite_busy",
}

// Classify wraps err with msg and tags it with its transient kind, if any.
// Nil stays nil.
func Classify(err error, msg string) error {
	if err == nil {
		return nil
	}
	wrapped := eris.Wrap(err, msg)
	switch KindOf(err) {
	case KindTimeout:
		return Timeout(wrapped)
	case KindUnavailable:
		return Unavailable(wrapped)
	default:
		return wrapped
	}
}
