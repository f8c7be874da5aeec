// Package sink moves dataset rows from many producers to one persisting
// consumer.
//
// Shutdown protocol: producers push rows; once every producer has been
// joined, the orchestrator calls Seal, which enqueues exactly one sentinel.
// The drainer stops on the sentinel and never inspects row content to
// decide termination.
package sink

import (
	"context"
	"errors"
	"sync"

	"github.com/justapithecus/sparring/types"
)

// ErrSealed is returned when pushing to, or sealing, a sealed channel.
var ErrSealed = errors.New("channel sealed")

// DefaultBuffer is the channel capacity used when none is configured.
const DefaultBuffer = 256

// Channel is a bounded multi-producer, single-consumer queue of records.
type Channel struct {
	records chan types.ChannelRecord

	mu     sync.RWMutex
	sealed bool
}

// NewChannel creates a channel with the given capacity.
func NewChannel(buffer int) *Channel {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Channel{records: make(chan types.ChannelRecord, buffer)}
}

// Push enqueues a data row, blocking while the channel is full.
// Ownership of row transfers to the channel.
func (c *Channel) Push(ctx context.Context, row *types.DataRow) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.sealed {
		return ErrSealed
	}
	select {
	case c.records <- types.DataRecord(row):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Seal enqueues the sentinel. It waits for in-flight pushes to finish, so
// every row pushed before Seal precedes the sentinel. Only the orchestrator
// calls Seal, after joining every producer. A second call returns ErrSealed.
func (c *Channel) Seal(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sealed {
		return ErrSealed
	}
	select {
	case c.records <- types.SentinelRecord():
		c.sealed = true
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sealed reports whether the sentinel has been enqueued.
func (c *Channel) Sealed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sealed
}

// Pop dequeues the next record, blocking until one is available.
func (c *Channel) Pop(ctx context.Context) (types.ChannelRecord, error) {
	select {
	case rec := <-c.records:
		return rec, nil
	case <-ctx.Done():
		return types.ChannelRecord{}, ctx.Err()
	}
}

// Len returns the number of queued records.
func (c *Channel) Len() int {
	return len(c.records)
}
