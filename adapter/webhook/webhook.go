// Package webhook POSTs run-completed events as JSON to a URL.
package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/justapithecus/sparring/adapter"
	"github.com/justapithecus/sparring/iox"
)

// Defaults for Config.
const (
	DefaultTimeout = 10 * time.Second
	DefaultRetries = 3
)

// Config configures the webhook adapter.
type Config struct {
	URL string
	// Headers are set on every request, after Content-Type.
	Headers map[string]string
	// Timeout bounds each request; zero means DefaultTimeout.
	Timeout time.Duration
	Retries int
}

// Adapter POSTs run-completed events.
type Adapter struct {
	url      string
	headers  http.Header
	delivery adapter.Delivery
	client   *http.Client
}

// New creates a webhook adapter.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook adapter requires a URL")
	}
	delivery, err := adapter.NewDelivery(cfg.Timeout, cfg.Retries, DefaultTimeout)
	if err != nil {
		return nil, fmt.Errorf("webhook adapter: %w", err)
	}
	headers := http.Header{"Content-Type": []string{"application/json"}}
	for k, v := range cfg.Headers {
		headers.Set(k, v)
	}
	return &Adapter{url: cfg.URL, headers: headers, delivery: delivery, client: &http.Client{}}, nil
}

// StatusError is returned for a non-2xx response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Publish implements adapter.Adapter. Network errors and 5xx responses are
// retried; a 4xx response fails at once.
func (a *Adapter) Publish(ctx context.Context, event *adapter.RunCompletedEvent) error {
	return a.delivery.Send(ctx, "webhook", event, a.post, func(err error) bool {
		var status *StatusError
		return errors.As(err, &status) && status.Code >= 400 && status.Code < 500
	})
}

func (a *Adapter) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header = a.headers.Clone()

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer iox.DiscardClose(resp.Body)
	// Draining lets the transport reuse the connection.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// Close implements adapter.Adapter.
func (a *Adapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

var _ adapter.Adapter = (*Adapter)(nil)
