package types //nolint:revive // types is a valid package name

import (
	"testing"
)

func TestRunMeta_Validate(t *testing.T) {
	tests := []struct {
		name    string
		meta    RunMeta
		wantErr bool
	}{
		{
			name:    "empty run_id",
			meta:    RunMeta{RunID: "", Mode: ModeCheck},
			wantErr: true,
		},
		{
			name:    "unknown mode",
			meta:    RunMeta{RunID: "run-001", Mode: "tune"},
			wantErr: true,
		},
		{
			name:    "missing mode",
			meta:    RunMeta{RunID: "run-001"},
			wantErr: true,
		},
		{
			name:    "valid check run",
			meta:    RunMeta{RunID: "run-001", Mode: ModeCheck},
			wantErr: false,
		},
		{
			name:    "valid datagen run",
			meta:    RunMeta{RunID: "run-002", Mode: ModeDatagen},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.meta.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
