// Package iox holds small cleanup helpers.
package iox

import (
	"io"

	"go.uber.org/multierr"
)

// DiscardClose closes c, ignoring the error. For defers where a close
// failure cannot be acted on.
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a func closing c, for t.Cleanup.
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr calls fn and drops its error.
func DiscardErr(fn func() error) { _ = fn() }

// CloseAll closes every non-nil closer in order and combines the errors.
func CloseAll(closers ...io.Closer) error {
	var err error
	for _, c := range closers {
		if c != nil {
			err = multierr.Append(err, c.Close())
		}
	}
	return err
}
