// Package types defines the core domain types shared by the engine driver,
// the drift checker and the self-play data generator.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"fmt"
)

// Mode selects what a run does with its engines.
type Mode string

const (
	// ModeCheck compares two engine binaries ply by ply.
	ModeCheck Mode = "check"
	// ModeDatagen plays self-play games and persists labeled feature rows.
	ModeDatagen Mode = "datagen"
)

// RunMeta identifies a single CLI invocation.
type RunMeta struct {
	// RunID is the run identifier. Must be non-empty.
	RunID string
	// Mode is the run mode.
	Mode Mode
}

// Validate checks that the run identity is usable.
func (r *RunMeta) Validate() error {
	if r.RunID == "" {
		return errors.New("run_id must be non-empty")
	}
	switch r.Mode {
	case ModeCheck, ModeDatagen:
		return nil
	default:
		return fmt.Errorf("unknown mode %q", r.Mode)
	}
}

// OutcomeStatus represents the final status of a run.
type OutcomeStatus string

const (
	// OutcomePass indicates every compared position matched.
	OutcomePass OutcomeStatus = "pass"
	// OutcomeDivergence indicates at least one worker found diverging features.
	OutcomeDivergence OutcomeStatus = "divergence"
	// OutcomeCompleted indicates a data generation run finished and its rows were persisted.
	OutcomeCompleted OutcomeStatus = "completed"
	// OutcomeEngineFailure indicates an engine crashed, hung or desynced.
	OutcomeEngineFailure OutcomeStatus = "engine_failure"
	// OutcomeConfigError indicates the run could not be compared or configured at all.
	OutcomeConfigError OutcomeStatus = "config_error"
	// OutcomePersistenceFailure indicates the result sink failed.
	OutcomePersistenceFailure OutcomeStatus = "persistence_failure"
)

// RunOutcome represents the final outcome of a run.
type RunOutcome struct {
	// Status is the outcome classification.
	Status OutcomeStatus
	// Message is a human-readable description.
	Message string
}
