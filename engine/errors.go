package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors for link failure classification.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrLinkClosed indicates an operation on a terminated link.
	ErrLinkClosed = errors.New("link closed")

	// ErrStreamClosed indicates the engine's output ended before a
	// terminator line arrived (the child crashed or exited).
	ErrStreamClosed = errors.New("engine stream closed")

	// ErrProtocolDesync indicates the engine emitted output that does not
	// fit the expected response shape. The link is unusable afterwards.
	ErrProtocolDesync = errors.New("protocol desync")

	// ErrProtocolTimeout indicates a bounded read expired.
	ErrProtocolTimeout = errors.New("protocol timeout")

	// ErrNoMovesAvailable indicates the engine reported an empty legal-move list.
	ErrNoMovesAvailable = errors.New("no moves available")

	// ErrIllegalMove indicates the engine rejected a move with a negative victim count.
	ErrIllegalMove = errors.New("illegal move")

	// ErrCanceled indicates the caller's context ended during a blocking read.
	ErrCanceled = errors.New("request canceled")
)

// LinkError wraps an underlying error with link failure classification.
// It preserves the original error in the chain for inspection via errors.As.
type LinkError struct {
	// Kind is the sentinel error for classification (e.g., ErrStreamClosed).
	Kind error
	// Link is the link's name.
	Link string
	// Op is the protocol operation that failed (e.g., "search", "eval").
	Op string
	// Err is the underlying error, if any.
	Err error
}

func (e *LinkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v: %v", e.Link, e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Link, e.Op, e.Kind)
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *LinkError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *LinkError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// IsWorkerFatal reports whether err leaves the link unusable, so the owning
// worker must stop. ErrNoMovesAvailable is a terminal game condition and is
// not fatal.
func IsWorkerFatal(err error) bool {
	return errors.Is(err, ErrLinkClosed) ||
		errors.Is(err, ErrStreamClosed) ||
		errors.Is(err, ErrProtocolDesync) ||
		errors.Is(err, ErrProtocolTimeout) ||
		errors.Is(err, ErrIllegalMove) ||
		errors.Is(err, ErrCanceled)
}
