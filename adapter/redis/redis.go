// Package redis publishes run-completed events as JSON on a Redis pub/sub
// channel.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/justapithecus/sparring/adapter"
)

// Defaults for Config.
const (
	DefaultChannel = "sparring:run_completed"
	DefaultTimeout = 5 * time.Second
	DefaultRetries = 3
)

// Config configures the Redis pub/sub adapter.
type Config struct {
	// URL is redis://[:password@]host:port[/db].
	URL     string
	Channel string
	// Timeout bounds each PUBLISH; zero means DefaultTimeout.
	Timeout time.Duration
	Retries int
}

// Adapter publishes run-completed events with PUBLISH. Subscribers that are
// not connected when a run ends miss its event.
type Adapter struct {
	channel  string
	delivery adapter.Delivery
	client   *goredis.Client
}

// New parses the URL and creates a client; it does not connect.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}
	delivery, err := adapter.NewDelivery(cfg.Timeout, cfg.Retries, DefaultTimeout)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: %w", err)
	}
	channel := cfg.Channel
	if channel == "" {
		channel = DefaultChannel
	}
	return &Adapter{channel: channel, delivery: delivery, client: goredis.NewClient(opts)}, nil
}

// Publish implements adapter.Adapter.
func (a *Adapter) Publish(ctx context.Context, event *adapter.RunCompletedEvent) error {
	return a.delivery.Send(ctx, "redis", event, func(ctx context.Context, body []byte) error {
		return a.client.Publish(ctx, a.channel, body).Err()
	}, nil)
}

// Close implements adapter.Adapter.
func (a *Adapter) Close() error {
	return a.client.Close()
}

var _ adapter.Adapter = (*Adapter)(nil)
