package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestRetry_SucceedsAfterFailure(t *testing.T) {
	calls := 0
	err := Retry(t.Context(), "test", 2, func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("flaky")
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRetry_StopsOnNonRetriable(t *testing.T) {
	fatal := errors.New("bad request")
	calls := 0
	err := Retry(t.Context(), "test", 3, func(context.Context) error {
		calls++
		return fatal
	}, func(err error) bool { return errors.Is(err, fatal) })
	if !errors.Is(err, fatal) {
		t.Fatalf("Retry() error = %v, want wrapped fatal", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	err := Retry(ctx, "test", 0, func(context.Context) error { return nil }, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry() error = %v, want context.Canceled", err)
	}
}

func TestNewDelivery(t *testing.T) {
	d, err := NewDelivery(0, 2, time.Second)
	if err != nil {
		t.Fatalf("NewDelivery() error = %v", err)
	}
	if d.Timeout != time.Second || d.Retries != 2 {
		t.Errorf("Delivery = %+v, want default timeout and 2 retries", d)
	}
	if _, err := NewDelivery(time.Second, -1, time.Second); err == nil {
		t.Error("negative retries must be rejected")
	}
}

func TestDelivery_SendEncodesOnceWithDeadline(t *testing.T) {
	d := Delivery{Timeout: time.Minute, Retries: 1}
	var bodies [][]byte
	err := d.Send(t.Context(), "test", &RunCompletedEvent{RunID: "run-7", Outcome: "pass"},
		func(ctx context.Context, body []byte) error {
			if _, ok := ctx.Deadline(); !ok {
				t.Error("attempt context has no deadline")
			}
			bodies = append(bodies, body)
			if len(bodies) == 1 {
				return errors.New("flaky")
			}
			return nil
		}, nil)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(bodies) != 2 || string(bodies[0]) != string(bodies[1]) {
		t.Fatalf("bodies = %q, want the same body twice", bodies)
	}
	var got RunCompletedEvent
	if err := json.Unmarshal(bodies[0], &got); err != nil || got.RunID != "run-7" {
		t.Errorf("body = %s (err %v)", bodies[0], err)
	}
}

func TestDelivery_SendNilEvent(t *testing.T) {
	err := Delivery{Timeout: time.Second}.Send(t.Context(), "test", nil,
		func(context.Context, []byte) error { t.Error("send called"); return nil }, nil)
	if err == nil {
		t.Error("Send(nil) error = nil")
	}
}
