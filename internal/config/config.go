// Package config loads the YAML run configuration shared by the audiomark
// and kwsconform executables.
//
// A file is decoded strictly (unknown keys are errors), unset values are
// filled from [Default], relative paths are resolved against the file's
// directory, and the result is checked against an embedded CUE schema so
// range and type errors are reported with their paths.
package config

import (
	"github.com/roach88/audiomark/internal/bench"
	"github.com/roach88/audiomark/internal/conform"
	"github.com/roach88/audiomark/internal/pipeline"
)

// LogLevel is a slog level name.
type LogLevel string

// Log levels.
const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// Config is the top-level configuration.
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline" json:"pipeline"`
	Corpus   CorpusConfig   `yaml:"corpus" json:"corpus"`
	Bench    BenchConfig    `yaml:"bench" json:"bench"`
	Conform  ConformConfig  `yaml:"conform" json:"conform"`
	Store    StoreConfig    `yaml:"store" json:"store"`
	Log      LogConfig      `yaml:"log" json:"log"`
}

// PipelineConfig selects the pipeline under test.
type PipelineConfig struct {
	// Name is the pipeline implementation. Only "kws" is built in.
	Name string `yaml:"name" json:"name"`

	// ArenaMaxBytes bounds the arena allocation; -1 means unbounded.
	ArenaMaxBytes int `yaml:"arena_max_bytes" json:"arena_max_bytes"`
}

// CorpusConfig locates the input stream and golden table.
type CorpusConfig struct {
	// Audio is a .wav or raw PCM16 file. Empty selects the built-in
	// synthetic reference stream.
	Audio string `yaml:"audio" json:"audio"`

	// Golden is the raw int8 golden table. Required by kwsconform.
	Golden string `yaml:"golden" json:"golden"`

	// ExpectedInferences is the event count the stream must produce.
	ExpectedInferences int `yaml:"expected_inferences" json:"expected_inferences"`
}

// BenchConfig tunes the adaptive runner.
type BenchConfig struct {
	CalibrationMicros uint64  `yaml:"calibration_us" json:"calibration_us"`
	TargetMicros      uint64  `yaml:"target_us" json:"target_us"`
	MinIterations     uint32  `yaml:"min_iterations" json:"min_iterations"`
	RealtimeSeconds   float64 `yaml:"realtime_seconds" json:"realtime_seconds"`
}

// ConformConfig holds the divergence tolerance policy.
type ConformConfig struct {
	Thresholds conform.Thresholds `yaml:"thresholds" json:"thresholds"`
}

// StoreConfig locates the run history database.
type StoreConfig struct {
	// Path is the SQLite file. Empty disables run history.
	Path string `yaml:"path" json:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level LogLevel `yaml:"level" json:"level"`
}

// Default returns the AudioMark reference configuration.
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			Name:          "kws",
			ArenaMaxBytes: pipeline.DefaultMaxArenaBytes,
		},
		Corpus: CorpusConfig{
			ExpectedInferences: conform.DefaultExpectedInferences,
		},
		Bench: BenchConfig{
			CalibrationMicros: bench.DefaultCalibrationMicros,
			TargetMicros:      bench.DefaultTargetMicros,
			MinIterations:     bench.DefaultMinIterations,
			RealtimeSeconds:   bench.DefaultRealtimeSeconds,
		},
		Conform: ConformConfig{
			Thresholds: conform.DefaultThresholds(),
		},
		Log: LogConfig{Level: LogInfo},
	}
}

// BenchOptions converts the bench section to runner options.
func (c *Config) BenchOptions() bench.Options {
	return bench.Options{
		CalibrationMicros: c.Bench.CalibrationMicros,
		TargetMicros:      c.Bench.TargetMicros,
		MinIterations:     c.Bench.MinIterations,
		RealtimeSeconds:   c.Bench.RealtimeSeconds,
	}
}

// ConformOptions converts the corpus and conform sections to validator
// options.
func (c *Config) ConformOptions() conform.Options {
	th := c.Conform.Thresholds
	return conform.Options{
		Thresholds: &th,
		Expected:   c.Corpus.ExpectedInferences,
	}
}
