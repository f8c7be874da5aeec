package types

// DivergenceReport describes the first position at which two engines
// produced different feature vectors. It is immutable once created.
type DivergenceReport struct {
	// Position is the engine-native position string (diagnostic only).
	Position string `json:"position" msgpack:"position"`
	// A is the vector reported by the reference engine.
	A FeatureVector `json:"a" msgpack:"a"`
	// B is the vector reported by the candidate engine.
	B FeatureVector `json:"b" msgpack:"b"`
	// Ply is the number of moves played before the diverging position.
	Ply int `json:"ply" msgpack:"ply"`
	// Game is the zero-based index of the game within the worker's plan.
	Game int `json:"game" msgpack:"game"`
	// Kind is the kind of game being played.
	Kind GameKind `json:"kind" msgpack:"kind"`
	// Worker is the id of the worker that found the divergence.
	Worker int `json:"worker" msgpack:"worker"`
	// Moves is the history leading to the position.
	Moves MoveHistory `json:"moves" msgpack:"moves"`
}

// FirstDifference returns the index of the first differing coefficient,
// or -1 if the vectors are identical over their common length.
func (r *DivergenceReport) FirstDifference() int {
	n := min(len(r.A), len(r.B))
	for i := 0; i < n; i++ {
		if r.A[i] != r.B[i] {
			return i
		}
	}
	if len(r.A) != len(r.B) {
		return n
	}
	return -1
}

// WorkerResult is the result of one worker's full validation plan.
type WorkerResult struct {
	// Worker is the worker id.
	Worker int `json:"worker"`
	// Pass is true when every game completed without divergence.
	Pass bool `json:"pass"`
	// Divergence is set when Pass is false because two vectors differed.
	Divergence *DivergenceReport `json:"divergence,omitempty"`
	// Err is set when the worker stopped on a protocol or process failure.
	Err error `json:"-"`
	// GamesPlayed is the number of games fully or partially played.
	GamesPlayed int `json:"games_played"`
	// PliesChecked is the number of positions compared.
	PliesChecked int `json:"plies_checked"`
}

// AggregateResult reduces every worker's result.
type AggregateResult struct {
	// Pass is the logical AND of every worker's Pass.
	Pass bool `json:"pass"`
	// Workers holds each worker's result, indexed by worker id.
	Workers []WorkerResult `json:"workers"`
}

// Divergences returns every divergence report, in worker order.
func (a *AggregateResult) Divergences() []*DivergenceReport {
	var out []*DivergenceReport
	for i := range a.Workers {
		if a.Workers[i].Divergence != nil {
			out = append(out, a.Workers[i].Divergence)
		}
	}
	return out
}

// Failures returns the workers that stopped on an error.
func (a *AggregateResult) Failures() []WorkerResult {
	var out []WorkerResult
	for _, w := range a.Workers {
		if w.Err != nil {
			out = append(out, w)
		}
	}
	return out
}

// Reduce computes the aggregate verdict. The reduction is commutative:
// the result does not depend on the order workers finished in.
func Reduce(results []WorkerResult) AggregateResult {
	agg := AggregateResult{Pass: true, Workers: results}
	for _, r := range results {
		agg.Pass = agg.Pass && r.Pass
	}
	return agg
}
