package cli

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreCommand(t *testing.T) {
	cmd := NewScoreCommand(nil)
	require.NotNil(t, cmd)
	assert.Equal(t, "audiomark", cmd.Use)
	assert.Contains(t, cmd.Long, "AudioMarks")

	sub, _, err := cmd.Find([]string{"history"})
	require.NoError(t, err)
	assert.Equal(t, "history", sub.Name())
}

func TestConformCommand(t *testing.T) {
	cmd := NewConformCommand(nil)
	require.NotNil(t, cmd)
	assert.Equal(t, "kwsconform", cmd.Use)

	for _, name := range []string{"audio", "golden"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "flag %s", name)
	}
}

func TestGlobalFlags(t *testing.T) {
	for _, cmd := range []*cobra.Command{NewScoreCommand(nil), NewConformCommand(nil)} {
		t.Run(cmd.Name(), func(t *testing.T) {
			verboseFlag := cmd.PersistentFlags().Lookup("verbose")
			require.NotNil(t, verboseFlag)
			assert.Equal(t, "v", verboseFlag.Shorthand)
			assert.Equal(t, "false", verboseFlag.DefValue)

			formatFlag := cmd.PersistentFlags().Lookup("format")
			require.NotNil(t, formatFlag)
			assert.Equal(t, "text", formatFlag.DefValue)

			configFlag := cmd.PersistentFlags().Lookup("config")
			require.NotNil(t, configFlag)
			assert.Equal(t, "c", configFlag.Shorthand)

			require.NotNil(t, cmd.PersistentFlags().Lookup("db"))
		})
	}
}

func TestHistoryCommandFlags(t *testing.T) {
	cmd, _, err := NewScoreCommand(nil).Find([]string{"history"})
	require.NoError(t, err)

	limitFlag := cmd.Flags().Lookup("limit")
	require.NotNil(t, limitFlag)
	assert.Equal(t, "20", limitFlag.DefValue)
	assert.NotNil(t, cmd.Flags().Lookup("kind"))
}

func TestFormatValidation(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		formats []string
		ok      bool
	}{
		{"text", FormatText, []string{FormatText, FormatJSON}, true},
		{"json", FormatJSON, []string{FormatText, FormatJSON}, true},
		{"bench allowed", FormatBench, []string{FormatText, FormatJSON, FormatBench}, true},
		{"bench rejected", FormatBench, []string{FormatText, FormatJSON}, false},
		{"case sensitive", "TEXT", []string{FormatText}, false},
		{"empty", "", []string{FormatText}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkFormat(tt.format, tt.formats)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewConformCommand(nil)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "bench"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
