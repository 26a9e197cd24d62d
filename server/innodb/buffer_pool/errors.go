package buffer_pool

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
)

// The sentinel errors a caller can match against with errors.Is. These
// are the seven outcomes fix/unfix/flush ever return (spec.md §7);
// BufferPoolError wraps whichever of them applies with the operation
// name and any underlying I/O error, the way the teacher's
// BufferPoolError carried Op/Err.
var (
	// ErrInterrupted means the caller's thread had an interrupt pending
	// when the fix started or while it was blocked waiting for a latch
	// (spec.md §7 Interrupted).
	ErrInterrupted = errors.New("buffer_pool: fix interrupted")

	// ErrPageTimeout means an unconditional request's wait_msec bound
	// elapsed before the latch was granted, or a conditional request
	// could not be granted at once (spec.md §7 PageTimeout).
	ErrPageTimeout = errors.New("buffer_pool: latch wait timed out")

	// ErrBadPageID means the VPID names a page outside its volume's
	// allocated range (spec.md §7 BadPageId).
	ErrBadPageID = errors.New("buffer_pool: page id out of range")

	// ErrAllBuffersFixedOrDirty means the victim sweep exhausted every
	// LRU list without finding an unfixed, clean BCB to reclaim (spec.md
	// §7 AllBuffersFixedOrDirty).
	ErrAllBuffersFixedOrDirty = errors.New("buffer_pool: no victim available")

	// ErrIO wraps a disk-layer failure (spec.md §7 IoError).
	ErrIO = errors.New("buffer_pool: disk i/o error")

	// ErrInvariantViolated means an internal consistency check failed —
	// a caller bug (double unfix, wrong latch mode) rather than a
	// runtime condition (spec.md §7 InvariantViolated).
	ErrInvariantViolated = errors.New("buffer_pool: invariant violated")

	// ErrOutOfMemory means a fixed-size table (buffer-lock chain,
	// holder table) could not grow to cover a new thread index (spec.md
	// §7 OutOfMemory).
	ErrOutOfMemory = errors.New("buffer_pool: out of memory")
)

// BufferPoolError annotates a sentinel error with the operation that
// raised it and, where applicable, the underlying cause.
type BufferPoolError struct {
	Op    string
	Err   error
	Cause error
}

func (e *BufferPoolError) Error() string {
	switch {
	case e.Err == nil:
		return e.Op
	case e.Cause == nil:
		return e.Op + ": " + e.Err.Error()
	default:
		return e.Op + ": " + e.Err.Error() + ": " + e.Cause.Error()
	}
}

func (e *BufferPoolError) Unwrap() error { return e.Err }

func newError(op string, sentinel error) error {
	return &BufferPoolError{Op: op, Err: sentinel}
}

func wrapIO(op string, cause error) error {
	return &BufferPoolError{Op: op, Err: ErrIO, Cause: pkgerrors.WithStack(cause)}
}

func IsInterrupted(err error) bool           { return errors.Is(err, ErrInterrupted) }
func IsPageTimeout(err error) bool           { return errors.Is(err, ErrPageTimeout) }
func IsBadPageID(err error) bool             { return errors.Is(err, ErrBadPageID) }
func IsAllBuffersFixedOrDirty(err error) bool { return errors.Is(err, ErrAllBuffersFixedOrDirty) }
func IsIOError(err error) bool               { return errors.Is(err, ErrIO) }
func IsInvariantViolated(err error) bool     { return errors.Is(err, ErrInvariantViolated) }
func IsOutOfMemory(err error) bool           { return errors.Is(err, ErrOutOfMemory) }
