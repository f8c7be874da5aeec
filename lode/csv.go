package lode

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sync"

	"go.uber.org/multierr"

	"github.com/justapithecus/sparring/policy"
	"github.com/justapithecus/sparring/types"
)

// DefaultCSVPath is the dataset file written when no output is configured.
const DefaultCSVPath = "games_tuning_output.txt"

// CSVSink appends rows to a comma-separated dataset file, one row per line:
// the coefficients followed by the label. The file is opened in append mode
// so successive runs accumulate.
type CSVSink struct {
	path string

	mu     sync.Mutex
	file   *os.File
	w      *csv.Writer
	closed bool
}

// NewCSVSink opens path for appending, creating it if needed.
func NewCSVSink(path string) (*CSVSink, error) {
	if path == "" {
		path = DefaultCSVPath
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, WrapInitError(err, path)
	}
	return &CSVSink{path: path, file: f, w: csv.NewWriter(f)}, nil
}

// Path returns the dataset file path.
func (s *CSVSink) Path() string {
	return s.path
}

// WriteRows implements policy.Sink. Rows are buffered until Flush.
func (s *CSVSink) WriteRows(_ context.Context, rows []*types.DataRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("write %s: sink closed", s.path)
	}
	for _, row := range rows {
		if err := s.w.Write(row.Fields()); err != nil {
			return WrapWriteError(err, s.path)
		}
	}
	return nil
}

// Flush implements policy.Sink, handing buffered rows to the OS.
func (s *CSVSink) Flush(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return s.flushLocked()
}

func (s *CSVSink) flushLocked() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return WrapWriteError(err, s.path)
	}
	return nil
}

// Close flushes and closes the file. Close is idempotent.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return multierr.Combine(s.flushLocked(), s.file.Close())
}

var _ policy.Sink = (*CSVSink)(nil)
