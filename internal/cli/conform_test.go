package cli

import (
	"context"
	"encoding/json"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/audiomark/internal/conform"
	"github.com/roach88/audiomark/internal/harness"
	"github.com/roach88/audiomark/internal/pipeline"
	"github.com/roach88/audiomark/internal/pipeline/mock"
	"github.com/roach88/audiomark/internal/store"
	"github.com/roach88/audiomark/internal/testutil"
)

func TestConform_ReferencePasses(t *testing.T) {
	golden := goldenFile(t, referenceGolden(t))

	stdout, stderr, err := execute(NewConformCommand(nil), "--golden", golden)
	require.NoError(t, err)

	assert.Contains(t, stdout, "Frames           : 93\n")
	assert.Contains(t, stdout, "Inferences       : 73 (expected 73)\n")
	assert.Contains(t, stdout, "JSD violations   : 0 of 73 rows (0.00%), max=0.00000, mean=0.00000\n")
	assert.Contains(t, stdout, "Active violations: 0.00% of scored rows\n")
	assert.NotContains(t, stdout, "Noise events     : 0\n")
	assert.NotContains(t, stdout, "Scored events    : 0\n")
	assert.Contains(t, stdout, "KWS test passed\n")
	assert.NotContains(t, stdout, "Error [")
	assert.Contains(t, stderr, "conformance run complete")
}

func TestConform_MutatedRowFails(t *testing.T) {
	rows := referenceGolden(t)
	least := 0
	for j, v := range rows[10] {
		if v < rows[10][least] {
			least = j
		}
	}
	rows[10] = testutil.OneHot(least)

	stdout, _, err := execute(NewConformCommand(nil), "--golden", goldenFile(t, rows), "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, harness.HasCode(err, harness.ErrCodeDivergenceExceeded))

	var resp struct {
		Status string        `json:"status"`
		Data   ConformResult `json:"data"`
		Error  struct {
			Code    string            `json:"code"`
			Details []conform.Failure `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Data.Report)
	assert.False(t, resp.Data.Report.Pass)
	assert.True(t, resp.Data.Report.HasCondition(conform.ConditionMaxJSD))
	assert.Equal(t, string(harness.ErrCodeDivergenceExceeded), resp.Error.Code)
	assert.NotEmpty(t, resp.Error.Details)
}

func TestConform_InferenceCountMismatch(t *testing.T) {
	golden := goldenFile(t, referenceGolden(t))
	cfg := writeFile(t, "audiomark.yaml", []byte("corpus:\n  expected_inferences: 74\n"))

	stdout, _, err := execute(NewConformCommand(nil), "--config", cfg, "--golden", golden)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, harness.HasCode(err, harness.ErrCodeInferenceCountMismatch))
	assert.Contains(t, stdout, "Error [INFERENCE_COUNT_MISMATCH]: KWS expected 74 inferences but got 73\n")
	assert.Contains(t, stdout, "KWS test failed\n")
}

func TestConform_GoldenFromConfig(t *testing.T) {
	golden := goldenFile(t, referenceGolden(t))
	cfg := writeFile(t, "audiomark.yaml", []byte("corpus:\n  golden: "+golden+"\n"))

	_, _, err := execute(NewConformCommand(nil), "--config", cfg)
	require.NoError(t, err)
}

func TestConform_PipelineFailure(t *testing.T) {
	opts := &RootOptions{
		NewPipeline: func(string) (pipeline.Pipeline, error) {
			return &mock.Pipeline{Size: 64, Steps: []mock.Step{{}, {}, {}, {}, {}, {Err: mock.ErrScripted}}}, nil
		},
	}
	golden := goldenFile(t, referenceGolden(t))

	stdout, _, err := execute(NewConformCommand(opts), "--golden", golden)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.ErrorIs(t, err, mock.ErrScripted)
	assert.Contains(t, stdout, "Frames           : 6\n")
	assert.Contains(t, stdout, "Error [PIPELINE_RUN_FAILURE]: frame 5:")
	assert.Contains(t, stdout, "KWS test failed\n")
}

func TestConform_NoInferences(t *testing.T) {
	opts := &RootOptions{
		NewPipeline: func(string) (pipeline.Pipeline, error) {
			return &mock.Pipeline{Size: 64}, nil
		},
	}
	golden := goldenFile(t, referenceGolden(t))

	stdout, _, err := execute(NewConformCommand(opts), "--golden", golden, "--format", "json")
	require.Error(t, err)
	assert.True(t, harness.HasCode(err, harness.ErrCodeNoInferences))

	var resp struct {
		Data ConformResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Zero(t, resp.Data.Report.Inferences)
	assert.False(t, math.IsNaN(resp.Data.Report.MeanJSD))
}

func TestConform_RecordsRun(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	golden := goldenFile(t, referenceGolden(t))

	stdout, _, err := execute(NewConformCommand(nil), "--golden", golden, "--db", dbPath, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data ConformResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.NotEmpty(t, resp.Data.RunID)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	run, err := st.GetRun(context.Background(), resp.Data.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.KindConform, run.Kind)
	assert.True(t, run.Pass)
	assert.Equal(t, 73, run.Inferences)
	assert.Equal(t, resp.Data.CorpusDigest, run.CorpusDigest)
}

func TestConform_CommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args func(t *testing.T) []string
		want string
	}{
		{
			name: "golden required",
			args: func(t *testing.T) []string { return nil },
			want: "golden table required",
		},
		{
			name: "golden missing",
			args: func(t *testing.T) []string {
				return []string{"--golden", filepath.Join(t.TempDir(), "nope.bin")}
			},
			want: "golden table not found",
		},
		{
			name: "golden malformed",
			args: func(t *testing.T) []string {
				return []string{"--golden", writeFile(t, "bad.bin", make([]byte, 13))}
			},
			want: "invalid golden table",
		},
		{
			name: "audio missing",
			args: func(t *testing.T) []string {
				return []string{"--golden", goldenFile(t, nil), "--audio", filepath.Join(t.TempDir(), "nope.wav")}
			},
			want: "audio corpus not found",
		},
		{
			name: "unexpected argument",
			args: func(t *testing.T) []string { return []string{"extra"} },
			want: "unknown command",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(NewConformCommand(nil), tt.args(t)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
