package lode

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/sparring/types"
)

// DeriveDay computes the partition day from run start time, YYYY-MM-DD UTC.
func DeriveDay(startTime time.Time) string {
	return startTime.UTC().Format("2006-01-02")
}

// Config holds the partition values stamped on every record.
type Config struct {
	// Dataset is the Lode dataset ID.
	Dataset string
	// Engine names the engine build that generated the rows.
	Engine string
	// Day is derived from run start time (YYYY-MM-DD UTC).
	Day string
	// RunID identifies the run.
	RunID string
}

// Validate checks that every partition value is present.
func (c *Config) Validate() error {
	switch {
	case c.Dataset == "":
		return errors.New("dataset is required")
	case c.Engine == "":
		return errors.New("engine partition is required")
	case c.Day == "":
		return errors.New("day partition is required")
	case c.RunID == "":
		return errors.New("run_id partition is required")
	}
	return nil
}

// Client abstracts dataset row storage.
type Client interface {
	// WriteRows writes a batch of rows as one committed snapshot.
	// Order within the batch is preserved.
	WriteRows(ctx context.Context, rows []*types.DataRow) error
	// Close releases client resources.
	Close() error
}

// LodeClient writes rows to a Lode dataset with Hive layout
// engine/day/run_id.
type LodeClient struct {
	dataset lode.Dataset
	config  Config

	storeFactory lode.StoreFactory
	storeOnce    sync.Once
	store        lode.Store
	storeErr     error
}

// NewLodeClient creates a client with filesystem storage rooted at root.
func NewLodeClient(cfg Config, root string) (*LodeClient, error) {
	return NewLodeClientWithFactory(cfg, lode.NewFSFactory(root))
}

// NewLodeClientWithFactory creates a client with a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func NewLodeClientWithFactory(cfg Config, factory lode.StoreFactory) (*LodeClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ds, err := NewDataset(cfg.Dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, cfg.Dataset)
	}
	return &LodeClient{dataset: ds, config: cfg, storeFactory: factory}, nil
}

// WriteRows writes rows as JSONL records.
func (c *LodeClient) WriteRows(ctx context.Context, rows []*types.DataRow) error {
	if len(rows) == 0 {
		return nil
	}
	records := make([]any, 0, len(rows))
	for _, row := range rows {
		records = append(records, toRowRecordMap(row, c.config))
	}
	if _, err := c.dataset.Write(ctx, records, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.partitionPath())
	}
	return nil
}

// Close releases client resources. The dataset holds none.
func (c *LodeClient) Close() error {
	return nil
}

func (c *LodeClient) partitionPath() string {
	return "engine=" + c.config.Engine + "/day=" + c.config.Day + "/run_id=" + c.config.RunID
}

var _ Client = (*LodeClient)(nil)
