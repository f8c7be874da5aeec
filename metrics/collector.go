// Package metrics provides per-run metrics collection.
//
// The Collector accumulates counters during a single run. It is a leaf package
// with no internal dependencies. Persistence policy metrics are absorbed from
// policy.Stats at run completion rather than recorded live, avoiding double-counting.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all run metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Run lifecycle
	RunsStarted   int64
	RunsCompleted int64
	RunsFailed    int64

	// Engine links
	LinksSpawned      int64
	LinkSpawnFailures int64
	LinkFailures      int64

	// Games
	GamesPlayed  int64
	GamesCapped  int64
	PliesChecked int64
	Divergences  int64

	// Dataset rows
	RowsKept           int64
	RowsFiltered       int64
	RowsPersisted      int64
	RowsPersistFailure int64

	// Policy (absorbed from policy.Stats at run completion)
	PolicyRowsReceived  int64
	PolicyRowsPersisted int64
	PolicyRowsDiscarded int64

	// Lode / Storage
	LodeWriteSuccess int64
	LodeWriteFailure int64

	// Diagnostics archive
	DiagFramesWritten int64
	DiagDecodeErrors  int64

	// Dimensions (informational, set at construction)
	Mode           string
	StorageBackend string
	RunID          string
}

// Collector accumulates metrics during a single run.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex
	s  Snapshot
}

// NewCollector creates a Collector with dimension labels.
// mode and storageBackend are required; runID is optional.
func NewCollector(mode, storageBackend, runID string) *Collector {
	return &Collector{s: Snapshot{
		Mode:           mode,
		StorageBackend: storageBackend,
		RunID:          runID,
	}}
}

func (c *Collector) add(field *int64, n int64) {
	c.mu.Lock()
	*field += n
	c.mu.Unlock()
}

// --- Run lifecycle ---

// IncRunStarted records a run start.
func (c *Collector) IncRunStarted() {
	if c == nil {
		return
	}
	c.add(&c.s.RunsStarted, 1)
}

// IncRunCompleted records a run that finished with a verdict or a dataset.
func (c *Collector) IncRunCompleted() {
	if c == nil {
		return
	}
	c.add(&c.s.RunsCompleted, 1)
}

// IncRunFailed records a run that stopped on an engine, configuration or
// persistence failure.
func (c *Collector) IncRunFailed() {
	if c == nil {
		return
	}
	c.add(&c.s.RunsFailed, 1)
}

// --- Engine links ---

// IncLinkSpawned records a successfully started engine process.
func (c *Collector) IncLinkSpawned() {
	if c == nil {
		return
	}
	c.add(&c.s.LinksSpawned, 1)
}

// IncLinkSpawnFailure records an engine process that failed to start.
func (c *Collector) IncLinkSpawnFailure() {
	if c == nil {
		return
	}
	c.add(&c.s.LinkSpawnFailures, 1)
}

// IncLinkFailure records a worker stopped by a protocol or stream failure.
func (c *Collector) IncLinkFailure() {
	if c == nil {
		return
	}
	c.add(&c.s.LinkFailures, 1)
}

// --- Games ---

// AddGamesPlayed records n started games.
func (c *Collector) AddGamesPlayed(n int) {
	if c == nil {
		return
	}
	c.add(&c.s.GamesPlayed, int64(n))
}

// IncGamesCapped records a game stopped by the ply cap.
func (c *Collector) IncGamesCapped() {
	if c == nil {
		return
	}
	c.add(&c.s.GamesCapped, 1)
}

// AddPliesChecked records n compared positions.
func (c *Collector) AddPliesChecked(n int) {
	if c == nil {
		return
	}
	c.add(&c.s.PliesChecked, int64(n))
}

// IncDivergences records a divergent verdict.
func (c *Collector) IncDivergences() {
	if c == nil {
		return
	}
	c.add(&c.s.Divergences, 1)
}

// --- Dataset rows ---

// AddRowsKept records n rows that passed the quiescence filter.
func (c *Collector) AddRowsKept(n int) {
	if c == nil {
		return
	}
	c.add(&c.s.RowsKept, int64(n))
}

// AddRowsFiltered records n positions rejected by the quiescence filter.
func (c *Collector) AddRowsFiltered(n int) {
	if c == nil {
		return
	}
	c.add(&c.s.RowsFiltered, int64(n))
}

// IncRowsPersisted records a row accepted by the persistence policy.
func (c *Collector) IncRowsPersisted() {
	if c == nil {
		return
	}
	c.add(&c.s.RowsPersisted, 1)
}

// IncRowsPersistFailure records a row the persistence policy rejected.
func (c *Collector) IncRowsPersistFailure() {
	if c == nil {
		return
	}
	c.add(&c.s.RowsPersistFailure, 1)
}

// --- Lode / Storage ---
// Lode counters are per-call, not per-record. A single WriteRows call
// with N rows counts as 1 success.

// IncLodeWriteSuccess records a successful Lode write operation (per-call).
func (c *Collector) IncLodeWriteSuccess() {
	if c == nil {
		return
	}
	c.add(&c.s.LodeWriteSuccess, 1)
}

// IncLodeWriteFailure records a failed Lode write operation (per-call).
func (c *Collector) IncLodeWriteFailure() {
	if c == nil {
		return
	}
	c.add(&c.s.LodeWriteFailure, 1)
}

// --- Diagnostics ---

// IncDiagFramesWritten records a frame appended to the diagnostics archive.
func (c *Collector) IncDiagFramesWritten() {
	if c == nil {
		return
	}
	c.add(&c.s.DiagFramesWritten, 1)
}

// IncDiagDecodeErrors records a non-fatal frame decode error.
func (c *Collector) IncDiagDecodeErrors() {
	if c == nil {
		return
	}
	c.add(&c.s.DiagDecodeErrors, 1)
}

// --- Policy (absorbed from policy.Stats) ---

// AbsorbPolicyStats copies row counters from policy.Stats into the collector.
// Called once after the sink drains with the final policy stats snapshot.
func (c *Collector) AbsorbPolicyStats(total, persisted, discarded int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.s.PolicyRowsReceived = total
	c.s.PolicyRowsPersisted = persisted
	c.s.PolicyRowsDiscarded = discarded
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s
}
