package migrate

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/splax/installer/internal/domain"
)

const runsMigration = `-- +goose Up
CREATE TABLE installer_runs (
    id VARCHAR(36) PRIMARY KEY,
    stage VARCHAR(32) NOT NULL,
    completed_at TIMESTAMP NOT NULL
);

-- +goose Down
DROP TABLE installer_runs;
`

func sqliteRunner(t *testing.T) Runner {
	t.Helper()
	dir := t.TempDir()
	migrations := filepath.Join(dir, "migrations")
	if err := os.Mkdir(migrations, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(migrations, "00001_installer_runs.sql"), []byte(runsMigration), 0o644); err != nil {
		t.Fatalf("write migration: %v", err)
	}
	desc := domain.ConnectionDescriptor{Driver: "sqlite", Database: filepath.Join(dir, "app.sqlite")}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner, err := Open(context.Background(), desc, migrations, time.Minute, logger)
	if err != nil {
		t.Fatalf("open runner: %v", err)
	}
	t.Cleanup(func() { _ = runner.Close() })
	return runner
}

func TestEnsureRecordAndRollback(t *testing.T) {
	runner := sqliteRunner(t)
	ctx := context.Background()

	if err := runner.Ensure(ctx); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if v, err := runner.Version(); err != nil || v != 1 {
		t.Fatalf("expected version 1, got %d (%v)", v, err)
	}
	if err := runner.RecordRun(ctx, "run-1", "database", time.Now()); err != nil {
		t.Fatalf("record run: %v", err)
	}
	var count int
	if err := runner.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM installer_runs").Scan(&count); err != nil || count != 1 {
		t.Fatalf("expected one recorded run, got %d (%v)", count, err)
	}

	if err := runner.Ensure(ctx); err != nil {
		t.Fatalf("second ensure should be a no-op: %v", err)
	}
	if err := runner.Down(ctx, 0); err != nil {
		t.Fatalf("down: %v", err)
	}
	if v, err := runner.Version(); err != nil || v != 0 {
		t.Fatalf("expected version 0 after rollback, got %d (%v)", v, err)
	}
}

func TestOpenRejectsUnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), domain.ConnectionDescriptor{Driver: "sqlsrv"}, t.TempDir(), time.Minute, nil)
	if err == nil {
		t.Fatal("expected unsupported driver error")
	}
}

func TestNewValidatesArguments(t *testing.T) {
	if _, err := New(nil, "sqlite3", t.TempDir(), 0, nil); err == nil {
		t.Fatal("expected nil db error")
	}
}
