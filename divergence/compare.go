// Package divergence checks that two engine builds report identical
// evaluation features on every reachable position.
package divergence

import (
	"errors"
	"fmt"

	"github.com/justapithecus/sparring/types"
)

// ErrLengthMismatch indicates the two engines report feature vectors of
// different lengths, or that the length changed between plies. The builds
// are not comparable and the run must stop.
var ErrLengthMismatch = types.ErrLengthMismatch

// Verdict is the result of comparing two feature vectors.
type Verdict int

const (
	// Equal means every coefficient matches.
	Equal Verdict = iota
	// Divergent means at least one coefficient differs.
	Divergent
)

func (v Verdict) String() string {
	if v == Equal {
		return "equal"
	}
	return "divergent"
}

// Compare compares two vectors element by element with exact equality.
// Vectors of unequal length fail with ErrLengthMismatch.
func Compare(a, b types.FeatureVector) (Verdict, error) {
	if len(a) != len(b) {
		return Divergent, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			return Divergent, nil
		}
	}
	return Equal, nil
}

// Found is returned by the per-ply check when the vectors differ. It stops
// the owning game and carries the report.
type Found struct {
	Report *types.DivergenceReport
}

func (f *Found) Error() string {
	r := f.Report
	return fmt.Sprintf("divergence at ply %d of %s game %d (coefficient %d): %s",
		r.Ply, r.Kind, r.Game, r.FirstDifference(), r.Position)
}

// AsFound extracts the report from a divergence error chain.
func AsFound(err error) (*types.DivergenceReport, bool) {
	var f *Found
	if errors.As(err, &f) {
		return f.Report, true
	}
	return nil, false
}
