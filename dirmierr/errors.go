// Package dirmierr collects the error taxonomy shared by Dirmi's dispatch
// and channel layers: close-cascade errors, malformed-frame errors, and the
// wrapping used to carry a failed async invocation's cause back to the
// caller of Skeleton.Invoke.
package dirmierr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel kinds. Compare with errors.Is; the errors this module builds
// itself for these kinds wrap one of them, so callers can classify failures
// without caring about the wrapping chain. Errors from an underlying reader
// or transport are returned unchanged, and AsynchronousInvocationException
// and Remote wrap no sentinel (match them with errors.As).
var (
	// ErrInvalidArgument marks a malformed caller-side request: a zero or
	// oversize Send, a nil Receiver, and similar local contract violations.
	ErrInvalidArgument = errors.New("dirmi: invalid argument")

	// ErrMalformedFrame marks peer-supplied bytes that fail to parse: an
	// unknown tag, a negative or oversize length, or an undecodable bencode
	// blob. A truncated parameter surfaces as the reader's own
	// io.ErrUnexpectedEOF instead.
	ErrMalformedFrame = errors.New("dirmi: malformed frame")

	// ErrNoSuchMethod marks a MethodID absent from a MethodTable.
	ErrNoSuchMethod = errors.New("dirmi: no such method")

	// ErrIoClosed marks an operation attempted on, or interrupted by, a
	// closed channel, acceptor, or buffered reader.
	ErrIoClosed = errors.New("dirmi: closed")

	// ErrInvocationError marks an internal consistency failure while
	// constructing a dispatcher (introspection/codegen mismatch).
	ErrInvocationError = errors.New("dirmi: invocation error")
)

// NoSuchMethod wraps ErrNoSuchMethod with the offending MethodID's string
// form so callers of Skeleton.Invoke can log which call could not be routed.
type NoSuchMethod struct {
	ID fmt.Stringer
}

func (e *NoSuchMethod) Error() string {
	return fmt.Sprintf("dirmi: no such method: %s", e.ID)
}

func (e *NoSuchMethod) Unwrap() error { return ErrNoSuchMethod }

// AsynchronousInvocationException wraps an error thrown by an asynchronous
// target method. Since no reply frame exists for async methods, this
// is raised to Skeleton.Invoke's caller instead, so the surrounding runtime
// can log or drop it.
type AsynchronousInvocationException struct {
	Cause error
}

func (e *AsynchronousInvocationException) Error() string {
	return fmt.Sprintf("dirmi: asynchronous invocation failed: %v", e.Cause)
}

func (e *AsynchronousInvocationException) Unwrap() error { return e.Cause }

// Remote represents a throwable decoded off the wire: the peer's error type
// name and message, reconstructed without requiring the peer's concrete Go
// type to be registered locally.
type Remote struct {
	TypeName string
	Message  string
}

func (e *Remote) Error() string {
	return fmt.Sprintf("%s: %s", e.TypeName, e.Message)
}

// NewRemote builds a Remote from a local error for encoding onto the wire.
func NewRemote(err error) *Remote {
	if r, ok := err.(*Remote); ok {
		return r
	}
	return &Remote{TypeName: fmt.Sprintf("%T", err), Message: err.Error()}
}

// Wrap adds context to err while preserving Is/As compatibility with the
// sentinel kinds above, mirroring kryptco-kr's plain sentinel style but with
// a cause chain (that repo's fmt.Errorf sentinels carry no cause; Dirmi's
// async wrapping requires one, so pkg/errors.Wrap is used instead).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, message)
}
