package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/audiomark/internal/bench"
	"github.com/roach88/audiomark/internal/canon"
	"github.com/roach88/audiomark/internal/conform"
)

// Run kinds.
const (
	KindScore   = "score"
	KindConform = "conform"
)

// ErrNotFound is returned by GetRun for an unknown id.
var ErrNotFound = errors.New("run not found")

// Run is the common header of a stored run.
type Run struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	StartedAt    time.Time `json:"started_at"`
	Pipeline     string    `json:"pipeline"`
	CorpusDigest string    `json:"corpus_digest"`
	ConfigDigest string    `json:"config_digest"`
	Pass         bool      `json:"pass"`
	Error        string    `json:"error,omitempty"`

	// Report is the canonical JSON of the run's result.
	Report       string `json:"-"`
	ReportDigest string `json:"report_digest"`
}

// NewRun returns a run header with a fresh UUIDv7 id.
func NewRun(kind, pipeline string, startedAt time.Time) Run {
	return Run{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Kind:      kind,
		StartedAt: startedAt.UTC(),
		Pipeline:  pipeline,
	}
}

// Summary is a run header with its headline numbers, as listed by
// ListRuns. Fields of the other kind are zero.
type Summary struct {
	Run

	Iterations    uint32  `json:"iterations,omitempty"`
	ElapsedMicros uint64  `json:"elapsed_us,omitempty"`
	Score         float64 `json:"score,omitempty"`

	Inferences int     `json:"inferences,omitempty"`
	Expected   int     `json:"expected,omitempty"`
	Violations int     `json:"violations,omitempty"`
	MeanJSD    float64 `json:"mean_jsd,omitempty"`
	MaxJSD     float64 `json:"max_jsd,omitempty"`
}

// WriteScoreRun records a score run. res may be partial when runErr is
// non-nil; the run is then stored as failed.
func (s *Store) WriteScoreRun(ctx context.Context, run Run, res *bench.Result, runErr error) error {
	run.Kind = KindScore
	if res == nil {
		res = &bench.Result{}
	}
	if err := run.finish(res, runErr == nil, runErr); err != nil {
		return fmt.Errorf("write score run: %w", err)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertRun(ctx, tx, run); err != nil {
			return fmt.Errorf("write score run: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO score_runs
			(run_id, cal_iterations, cal_elapsed_us, iterations, elapsed_us, score)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			run.ID,
			res.Calibration.Iterations,
			int64(res.Calibration.ElapsedMicros),
			res.Measurement.Iterations,
			int64(res.Measurement.ElapsedMicros),
			res.Score,
		)
		if err != nil {
			return fmt.Errorf("write score run: %w", err)
		}
		return nil
	})
}

// WriteConformanceRun records a conformance run. rep may be partial when
// runErr is non-nil.
func (s *Store) WriteConformanceRun(ctx context.Context, run Run, rep *conform.Report, runErr error) error {
	run.Kind = KindConform
	if rep == nil {
		rep = &conform.Report{}
	}
	if err := run.finish(rep, rep.Pass && runErr == nil, runErr); err != nil {
		return fmt.Errorf("write conformance run: %w", err)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertRun(ctx, tx, run); err != nil {
			return fmt.Errorf("write conformance run: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO conformance_runs
			(run_id, frames, inferences, expected, noise_events, violations, mean_jsd, max_jsd)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			run.ID,
			rep.Frames,
			rep.Inferences,
			rep.Expected,
			rep.NoiseEvents,
			rep.Violations,
			rep.MeanJSD,
			rep.MaxJSD,
		)
		if err != nil {
			return fmt.Errorf("write conformance run: %w", err)
		}
		return nil
	})
}

// finish fills the verdict, error and canonical report fields.
func (r *Run) finish(result any, pass bool, runErr error) error {
	report, err := canon.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	r.Report = string(report)
	r.ReportDigest = canon.DigestBytes(canon.DomainReport, report)
	r.Pass = pass
	if runErr != nil {
		r.Error = runErr.Error()
	}
	return nil
}

func insertRun(ctx context.Context, tx *sql.Tx, run Run) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, kind, started_at, pipeline, corpus_digest, config_digest, pass, error, report, report_digest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Kind,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.Pipeline,
		run.CorpusDigest,
		run.ConfigDigest,
		run.Pass,
		run.Error,
		run.Report,
		run.ReportDigest,
	)
	return err
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const summaryColumns = `
	r.id, r.kind, r.started_at, r.pipeline, r.corpus_digest, r.config_digest,
	r.pass, r.error, r.report, r.report_digest,
	COALESCE(s.iterations, 0), COALESCE(s.elapsed_us, 0), COALESCE(s.score, 0),
	COALESCE(c.inferences, 0), COALESCE(c.expected, 0), COALESCE(c.violations, 0),
	COALESCE(c.mean_jsd, 0), COALESCE(c.max_jsd, 0)
`

// ListRuns returns up to limit runs, newest first. An empty kind lists
// both kinds; limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, kind string, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+summaryColumns+`
		FROM runs r
		LEFT JOIN score_runs s ON s.run_id = r.id
		LEFT JOIN conformance_runs c ON c.run_id = r.id
		WHERE ? = '' OR r.kind = ?
		ORDER BY r.id COLLATE BINARY DESC
		LIMIT ?
	`, kind, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	summaries := []Summary{}
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return summaries, nil
}

// GetRun returns one run by id.
func (s *Store) GetRun(ctx context.Context, id string) (Summary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+summaryColumns+`
		FROM runs r
		LEFT JOIN score_runs s ON s.run_id = r.id
		LEFT JOIN conformance_runs c ON c.run_id = r.id
		WHERE r.id = ?
	`, id)
	sum, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Summary{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return sum, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner) (Summary, error) {
	var (
		sum       Summary
		startedAt string
		elapsed   int64
	)
	err := row.Scan(
		&sum.ID, &sum.Kind, &startedAt, &sum.Pipeline, &sum.CorpusDigest, &sum.ConfigDigest,
		&sum.Pass, &sum.Error, &sum.Report, &sum.ReportDigest,
		&sum.Iterations, &elapsed, &sum.Score,
		&sum.Inferences, &sum.Expected, &sum.Violations,
		&sum.MeanJSD, &sum.MaxJSD,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Summary{}, err
		}
		return Summary{}, fmt.Errorf("scan run: %w", err)
	}
	sum.ElapsedMicros = uint64(elapsed)
	sum.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Summary{}, fmt.Errorf("parse started_at %q: %w", startedAt, err)
	}
	return sum, nil
}
