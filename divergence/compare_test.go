package divergence

import (
	"errors"
	"testing"

	"github.com/justapithecus/sparring/types"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name    string
		a, b    types.FeatureVector
		want    Verdict
		wantErr error
	}{
		{"both empty", types.FeatureVector{}, types.FeatureVector{}, Equal, nil},
		{"identical", types.FeatureVector{1, -2, 3}, types.FeatureVector{1, -2, 3}, Equal, nil},
		{"first differs", types.FeatureVector{0, 2, 3}, types.FeatureVector{1, 2, 3}, Divergent, nil},
		{"last differs", types.FeatureVector{1, 2, 3}, types.FeatureVector{1, 2, 4}, Divergent, nil},
		{"longer b", types.FeatureVector{1, 2}, types.FeatureVector{1, 2, 3}, Divergent, ErrLengthMismatch},
		{"ten vs nine", make(types.FeatureVector, 10), make(types.FeatureVector, 9), Divergent, ErrLengthMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compare(tt.a, tt.b)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Compare() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Compare() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Compare() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAsFound(t *testing.T) {
	report := &types.DivergenceReport{Position: "p", A: types.FeatureVector{1}, B: types.FeatureVector{2}}
	wrapped := errors.Join(errors.New("context"), &Found{Report: report})

	got, ok := AsFound(wrapped)
	if !ok || got != report {
		t.Fatalf("AsFound() = %v, %v", got, ok)
	}
	if _, ok := AsFound(errors.New("other")); ok {
		t.Error("AsFound() matched an unrelated error")
	}
}

func TestPlanValidate(t *testing.T) {
	if err := DefaultPlan().Validate(); err != nil {
		t.Errorf("DefaultPlan().Validate() = %v", err)
	}
	bad := []Plan{
		{RandomGames: -1, MaxPlies: 1, BestDepth: 1},
		{RandomGames: 1, MaxPlies: 0, BestDepth: 1},
		{RandomGames: 1, MaxPlies: 1, BestDepth: 0},
	}
	for _, p := range bad {
		if err := p.Validate(); err == nil {
			t.Errorf("Validate(%+v) = nil, want error", p)
		}
	}
}
