// Package breader implements a buffered, auto-closing input reader with no
// mark/reset support: the first error (including io.EOF) from the
// underlying reader closes the stream and is returned from that call; every
// later call returns dirmierr.ErrIoClosed.
// package channel wraps a Transport in one to drive MessageChannel's frame
// reads.
package breader

import (
	"bufio"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/bluelightning32/Dirmi/dirmierr"
)

// Availabler is implemented by an underlying reader that can report how
// many bytes are available without blocking.
type Availabler interface {
	Available() (int, error)
}

// Reader is a buffered reader that closes itself (and the underlying
// reader, if it is an io.Closer) the first time the underlying reader
// produces any error, including io.EOF, and returns that error from the
// call that observed it. Every subsequent call returns dirmierr.ErrIoClosed,
// wrapped with the first error's message when that error was not io.EOF.
// No mark/reset is supported.
type Reader struct {
	mu     sync.Mutex
	under  io.Reader
	buf    *bufio.Reader
	closed bool
	err    error // ErrIoClosed (wrapping the first error's message), returned after close
}

// New wraps under in a Reader with the given buffer size.
func New(under io.Reader, size int) *Reader {
	if size <= 0 {
		size = 4096
	}
	return &Reader{under: under, buf: bufio.NewReaderSize(under, size)}
}

// Read implements io.Reader. Any error from the underlying reader
// (including EOF) closes the stream automatically before being returned.
// The lock is not held across the underlying read, so Close can interrupt a
// Read blocked on the underlying reader.
func (r *Reader) Read(p []byte) (int, error) {
	r.mu.Lock()
	if r.closed {
		err := r.errLocked()
		r.mu.Unlock()
		return 0, err
	}
	r.mu.Unlock()

	n, err := r.buf.Read(p)
	if err != nil {
		r.mu.Lock()
		r.closeLocked(err)
		r.mu.Unlock()
		return n, err
	}
	return n, nil
}

// Available returns buffered bytes plus the underlying stream's reported
// availability. A negative underlying availability is treated as the
// stream being closed, the conservative reading that a negative value
// signals the peer is gone.
func (r *Reader) Available() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, r.errLocked()
	}

	buffered := r.buf.Buffered()
	availabler, ok := r.under.(Availabler)
	if !ok {
		return buffered, nil
	}

	underAvail, err := availabler.Available()
	if err != nil {
		r.closeLocked(err)
		return 0, err
	}
	if underAvail < 0 {
		r.closeLocked(dirmierr.ErrIoClosed)
		return 0, dirmierr.ErrIoClosed
	}
	return buffered + underAvail, nil
}

// Close is idempotent and propagates to the underlying reader if it is an
// io.Closer.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked(nil)
}

func (r *Reader) closeLocked(cause error) error {
	if r.closed {
		return nil
	}
	r.closed = true
	if cause != nil && cause != io.EOF {
		r.err = errors.Wrap(dirmierr.ErrIoClosed, cause.Error())
	} else {
		r.err = dirmierr.ErrIoClosed
	}
	if closer, ok := r.under.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (r *Reader) errLocked() error {
	if r.err != nil {
		return r.err
	}
	return dirmierr.ErrIoClosed
}
