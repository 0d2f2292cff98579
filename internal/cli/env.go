package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/roach88/audiomark/internal/canon"
	"github.com/roach88/audiomark/internal/config"
	"github.com/roach88/audiomark/internal/corpus"
	"github.com/roach88/audiomark/internal/pipeline"
	"github.com/roach88/audiomark/internal/pipeline/kws"
	"github.com/roach88/audiomark/internal/store"
)

// environment is the resolved input shared by both executables.
type environment struct {
	cfg          *config.Config
	logger       *slog.Logger
	corpus       *corpus.Corpus
	corpusDigest string
	configDigest string
}

// loadEnvironment resolves the config file and flag overrides, sets up
// logging on errOut and loads the audio corpus.
func loadEnvironment(opts *RootOptions, errOut io.Writer, audioOverride string) (*environment, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if audioOverride != "" {
		cfg.Corpus.Audio = audioOverride
	}

	env := &environment{
		cfg:    cfg,
		logger: newLogger(errOut, cfg.Log.Level, opts.Verbose),
	}
	env.configDigest, err = canon.Digest(canon.DomainConfig, cfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to digest config", err)
	}

	env.corpus, err = loadCorpus(cfg.Corpus.Audio)
	if err != nil {
		return nil, err
	}
	env.corpusDigest = canon.DigestBytes(canon.DomainCorpus, env.corpus.EncodeRaw())
	env.logger.Debug("corpus loaded",
		"path", cfg.Corpus.Audio,
		"frames", env.corpus.Len(),
		"digest", env.corpusDigest,
	)
	return env, nil
}

// loadConfig reads --config, or the defaults when it is unset, and
// applies --db.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		var err error
		cfg, err = config.Load(opts.ConfigPath)
		if errors.Is(err, os.ErrNotExist) {
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("config not found: %s", opts.ConfigPath), err)
		}
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid config", err)
		}
	}
	if opts.Database != "" {
		cfg.Store.Path = opts.Database
	}
	return cfg, nil
}

func newLogger(w io.Writer, level config.LogLevel, verbose bool) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// loadCorpus loads the audio file at path, or the built-in reference
// stream when path is empty.
func loadCorpus(path string) (*corpus.Corpus, error) {
	if path == "" {
		return corpus.Reference(), nil
	}
	c, err := corpus.LoadAudio(path, pipeline.FrameSamples)
	if errors.Is(err, os.ErrNotExist) {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("audio corpus not found: %s", path), err)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid audio corpus", err)
	}
	return c, nil
}

// loadGolden loads the golden table at path.
func loadGolden(path string) (*corpus.Golden, error) {
	if path == "" {
		return nil, NewExitError(ExitCommandError, "golden table required: set corpus.golden or --golden")
	}
	g, err := corpus.LoadGolden(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("golden table not found: %s", path), err)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid golden table", err)
	}
	return g, nil
}

// newPipeline builds the configured pipeline under test.
func newPipeline(opts *RootOptions, name string) (pipeline.Pipeline, error) {
	if opts.NewPipeline != nil {
		return opts.NewPipeline(name)
	}
	switch name {
	case "kws":
		return kws.New(), nil
	default:
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown pipeline %q", name))
	}
}

// openStore opens the run history, or returns nil when path is empty.
func openStore(path string) (*store.Store, error) {
	if path == "" {
		return nil, nil
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}
