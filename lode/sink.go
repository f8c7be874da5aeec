// Package lode persists dataset rows, either as a plain CSV file or as a
// Lode dataset on the filesystem or S3.
package lode

import (
	"context"
	"sync"

	"github.com/justapithecus/sparring/policy"
	"github.com/justapithecus/sparring/types"
)

// Sink is a Lode-backed policy.Sink. Every WriteRows call commits a
// snapshot, so Flush has nothing left to do.
type Sink struct {
	client Client
}

// NewSink creates a new Lode sink.
func NewSink(client Client) *Sink {
	return &Sink{client: client}
}

// WriteRows implements policy.Sink.
func (s *Sink) WriteRows(ctx context.Context, rows []*types.DataRow) error {
	return s.client.WriteRows(ctx, rows)
}

// Flush implements policy.Sink.
func (s *Sink) Flush(context.Context) error {
	return nil
}

// Close implements policy.Sink.
func (s *Sink) Close() error {
	return s.client.Close()
}

var _ policy.Sink = (*Sink)(nil)

// StubClient records writes without persisting.
type StubClient struct {
	mu      sync.Mutex
	Batches [][]*types.DataRow
	Closed  bool
	// Err is returned from WriteRows when set.
	Err error
}

// NewStubClient creates a new stub client.
func NewStubClient() *StubClient {
	return &StubClient{}
}

// WriteRows implements Client.
func (c *StubClient) WriteRows(_ context.Context, rows []*types.DataRow) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.Batches = append(c.Batches, rows)
	return nil
}

// Close implements Client.
func (c *StubClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closed = true
	return nil
}

var _ Client = (*StubClient)(nil)
