package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/roach88/audiomark/internal/bench"
	"github.com/roach88/audiomark/internal/canon"
	"github.com/roach88/audiomark/internal/conform"
)

func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"runs", "score_runs", "conformance_runs"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	if _, err := Open("/nonexistent/dir/history.db"); err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func pragma(t *testing.T, s *Store, name string) string {
	t.Helper()
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		t.Fatalf("PRAGMA %s failed: %v", name, err)
	}
	return value
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name, want string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
		{"user_version", "1"},
	}
	for _, tt := range tests {
		if got := pragma(t, s, tt.name); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if _, err := s.db.Exec("PRAGMA user_version = 2"); err != nil {
		t.Fatalf("set user_version: %v", err)
	}
	s.Close()

	_, err = Open(path)
	if err == nil {
		t.Fatal("expected error for newer schema, got nil")
	}
	if !strings.Contains(err.Error(), "newer than supported") {
		t.Errorf("error = %v", err)
	}
}

func TestOpen_HistoryIndex(t *testing.T) {
	s := createTestStore(t)

	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_runs_kind_id'",
	).Scan(&name)
	if err != nil {
		t.Fatalf("history index missing: %v", err)
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func scoreResult() *bench.Result {
	return &bench.Result{
		Calibration: bench.Measurement{Iterations: 1024, ElapsedMicros: 1_024_000},
		Measurement: bench.Measurement{Iterations: 11000, ElapsedMicros: 11_000_000},
		Score:       666666.6666666666,
	}
}

func TestWriteScoreRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run := NewRun(KindScore, "kws", started)
	run.CorpusDigest = "corpus-abc"
	run.ConfigDigest = "config-abc"
	if err := s.WriteScoreRun(ctx, run, scoreResult(), nil); err != nil {
		t.Fatalf("WriteScoreRun() failed: %v", err)
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() failed: %v", err)
	}
	if got.Kind != KindScore {
		t.Errorf("kind = %q, want %q", got.Kind, KindScore)
	}
	if !got.Pass {
		t.Error("score run without error should pass")
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("started_at = %v, want %v", got.StartedAt, started)
	}
	if got.Iterations != 11000 || got.ElapsedMicros != 11_000_000 {
		t.Errorf("measurement = %d/%d, want 11000/11000000", got.Iterations, got.ElapsedMicros)
	}
	if got.Score != 666666.6666666666 {
		t.Errorf("score = %v", got.Score)
	}
	if got.CorpusDigest != "corpus-abc" || got.ConfigDigest != "config-abc" {
		t.Errorf("digests = %q/%q", got.CorpusDigest, got.ConfigDigest)
	}

	want, err := canon.Marshal(scoreResult())
	if err != nil {
		t.Fatalf("canon.Marshal() failed: %v", err)
	}
	if got.Report != string(want) {
		t.Errorf("report = %s, want %s", got.Report, want)
	}
	if got.ReportDigest != canon.DigestBytes(canon.DomainReport, want) {
		t.Errorf("report_digest = %q", got.ReportDigest)
	}
}

func TestWriteScoreRun_Failure(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run := NewRun(KindScore, "kws", time.Now())
	partial := &bench.Result{Calibration: bench.Measurement{Iterations: 4, ElapsedMicros: 40}}
	if err := s.WriteScoreRun(ctx, run, partial, errors.New("frame 3: boom")); err != nil {
		t.Fatalf("WriteScoreRun() failed: %v", err)
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() failed: %v", err)
	}
	if got.Pass {
		t.Error("failed run stored as pass")
	}
	if got.Error != "frame 3: boom" {
		t.Errorf("error = %q", got.Error)
	}
}

func TestWriteConformanceRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rep := &conform.Report{
		Frames:      93,
		Inferences:  73,
		Expected:    73,
		NoiseEvents: 5,
		Scored:      68,
		Violations:  1,
		SumJSD:      0.06,
		MaxJSD:      0.02,
		MeanJSD:     0.0008219178082191781,
		Thresholds:  conform.DefaultThresholds(),
		Pass:        true,
	}
	run := NewRun(KindConform, "kws", time.Now())
	if err := s.WriteConformanceRun(ctx, run, rep, nil); err != nil {
		t.Fatalf("WriteConformanceRun() failed: %v", err)
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() failed: %v", err)
	}
	if !got.Pass {
		t.Error("passing report stored as fail")
	}
	if got.Inferences != 73 || got.Expected != 73 || got.Violations != 1 {
		t.Errorf("counts = %d/%d/%d", got.Inferences, got.Expected, got.Violations)
	}
	if got.MaxJSD != 0.02 {
		t.Errorf("max_jsd = %v", got.MaxJSD)
	}
	if got.Score != 0 || got.Iterations != 0 {
		t.Error("conformance run carries score columns")
	}
	if !strings.Contains(got.Report, `"inferences":73`) {
		t.Errorf("report missing inferences: %s", got.Report)
	}
}

func TestWriteConformanceRun_FailingVerdict(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run := NewRun(KindConform, "kws", time.Now())
	rep := &conform.Report{Expected: 73, Thresholds: conform.DefaultThresholds()}
	if err := s.WriteConformanceRun(ctx, run, rep, nil); err != nil {
		t.Fatalf("WriteConformanceRun() failed: %v", err)
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() failed: %v", err)
	}
	if got.Pass {
		t.Error("failing report stored as pass")
	}
}

func TestWriteRun_DuplicateIDRollsBack(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run := NewRun(KindScore, "kws", time.Now())
	if err := s.WriteScoreRun(ctx, run, scoreResult(), nil); err != nil {
		t.Fatalf("first WriteScoreRun() failed: %v", err)
	}
	if err := s.WriteScoreRun(ctx, run, scoreResult(), nil); err == nil {
		t.Fatal("expected duplicate id to fail")
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM score_runs").Scan(&count); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("score_runs = %d, want 1", count)
	}
}

func TestListRuns(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		run := NewRun(KindScore, "kws", time.Now())
		if err := s.WriteScoreRun(ctx, run, scoreResult(), nil); err != nil {
			t.Fatalf("WriteScoreRun() failed: %v", err)
		}
		ids = append(ids, run.ID)
	}
	conf := NewRun(KindConform, "kws", time.Now())
	if err := s.WriteConformanceRun(ctx, conf, &conform.Report{}, nil); err != nil {
		t.Fatalf("WriteConformanceRun() failed: %v", err)
	}

	all, err := s.ListRuns(ctx, "", 0)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("len = %d, want 4", len(all))
	}
	if all[0].ID != conf.ID {
		t.Errorf("newest run = %q, want %q", all[0].ID, conf.ID)
	}

	scores, err := s.ListRuns(ctx, KindScore, 2)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("len = %d, want 2", len(scores))
	}
	if scores[0].ID != ids[2] || scores[1].ID != ids[1] {
		t.Errorf("order = %q, %q; want %q, %q", scores[0].ID, scores[1].ID, ids[2], ids[1])
	}
}

func TestListRuns_Empty(t *testing.T) {
	s := createTestStore(t)

	runs, err := s.ListRuns(context.Background(), KindConform, 10)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if runs == nil || len(runs) != 0 {
		t.Errorf("runs = %v, want empty slice", runs)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetRun(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
