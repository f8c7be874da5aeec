// Package adapter defines the boundary for run-completion notifications.
// Adapters publish one event when a check or datagen run finishes.
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// EventTypeRunCompleted is the only event type published.
const EventTypeRunCompleted = "run_completed"

// RunCompletedEvent is the payload published when a run finishes.
type RunCompletedEvent struct {
	Version   string `json:"version"`
	EventType string `json:"event_type"`
	RunID     string `json:"run_id"`
	// Mode is check or datagen.
	Mode string `json:"mode"`
	// Outcome is the run outcome status, e.g. pass or divergence.
	Outcome   string `json:"outcome"`
	ExitCode  int    `json:"exit_code"`
	Workers   int    `json:"workers"`
	Timestamp string `json:"timestamp"`

	GamesPlayed   int64 `json:"games_played"`
	PliesChecked  int64 `json:"plies_checked,omitempty"`
	Divergences   int64 `json:"divergences,omitempty"`
	RowsPersisted int64 `json:"rows_persisted,omitempty"`

	// StoragePath locates the dataset, or the diagnostic archive for check.
	StoragePath string `json:"storage_path,omitempty"`
	DurationMs  int64  `json:"duration_ms"`
}

// Adapter publishes run completion events to a downstream system.
type Adapter interface {
	// Publish sends a run completion event. Must respect ctx.
	Publish(ctx context.Context, event *RunCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// baseBackoff is the delay before the first retry; it doubles per retry.
const baseBackoff = 500 * time.Millisecond

// Retry calls op up to 1+retries times with exponential backoff between
// attempts. stop, if non-nil, marks errors that must not be retried.
// name prefixes every returned error.
func Retry(ctx context.Context, name string, retries int, op func(ctx context.Context) error, stop func(error) bool) error {
	var lastErr error
	attempts := 1 + retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}
		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * baseBackoff
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-time.After(backoff):
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if stop != nil && stop(lastErr) {
			return fmt.Errorf("%s: non-retriable error: %w", name, lastErr)
		}
	}
	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}

// Delivery bounds how one event is sent: each attempt gets Timeout, and a
// failed attempt is retried up to Retries times.
type Delivery struct {
	Timeout time.Duration
	Retries int
}

// NewDelivery validates a delivery bound. A non-positive timeout falls back
// to defaultTimeout.
func NewDelivery(timeout time.Duration, retries int, defaultTimeout time.Duration) (Delivery, error) {
	if retries < 0 {
		return Delivery{}, fmt.Errorf("retries must be >= 0, got %d", retries)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return Delivery{Timeout: timeout, Retries: retries}, nil
}

// Send encodes event as JSON once and hands the body to send on every
// attempt, under a per-attempt deadline.
func (d Delivery) Send(ctx context.Context, name string, event *RunCompletedEvent,
	send func(ctx context.Context, body []byte) error, stop func(error) bool) error {
	if event == nil {
		return fmt.Errorf("%s: nil event", name)
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s: marshal event: %w", name, err)
	}
	return Retry(ctx, name, d.Retries, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, d.Timeout)
		defer cancel()
		return send(attemptCtx, body)
	}, stop)
}
