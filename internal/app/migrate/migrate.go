package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/splax/installer/internal/database"
	"github.com/splax/installer/internal/domain"
)

// goose keeps its dialect in package state.
var gooseMu sync.Mutex

// Runner applies the application's schema to the configured database.
type Runner struct {
	db            *sql.DB
	dialect       string
	migrationsDir string
	timeout       time.Duration
	log           *slog.Logger
}

// New returns a migration runner backed by goose.
func New(db *sql.DB, dialect, migrationsDir string, timeout time.Duration, log *slog.Logger) (Runner, error) {
	if db == nil {
		return Runner{}, errors.New("nil database handle provided")
	}
	if dialect == "" {
		return Runner{}, errors.New("empty database dialect")
	}
	if migrationsDir == "" {
		return Runner{}, errors.New("empty migrations directory")
	}
	if _, err := os.Stat(migrationsDir); err != nil {
		return Runner{}, fmt.Errorf("locate migrations dir: %w", err)
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return Runner{db: db, dialect: dialect, migrationsDir: migrationsDir, timeout: timeout, log: log}, nil
}

// Open connects to the database described by desc and returns a Runner for it.
func Open(ctx context.Context, desc domain.ConnectionDescriptor, migrationsDir string, timeout time.Duration, log *slog.Logger) (Runner, error) {
	dialect, err := database.Dialect(desc.Driver)
	if err != nil {
		return Runner{}, err
	}
	db, err := database.Open(ctx, desc)
	if err != nil {
		return Runner{}, fmt.Errorf("open database: %w", err)
	}
	runner, err := New(db, dialect, migrationsDir, timeout, log)
	if err != nil {
		_ = db.Close()
		return Runner{}, err
	}
	if err := runner.Ping(ctx); err != nil {
		_ = db.Close()
		return Runner{}, err
	}
	return runner, nil
}

// Ensure applies pending migrations.
func (r Runner) Ensure(ctx context.Context) error {
	return r.withGoose(func() error {
		runCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		r.log.Info("applying migrations", "dir", r.migrationsDir, "dialect", r.dialect)
		if err := goose.UpContext(runCtx, r.db, r.migrationsDir); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		r.log.Info("migrations applied")
		return nil
	})
}

// Status reports applied and pending migrations.
func (r Runner) Status(ctx context.Context) error {
	return r.withGoose(func() error {
		r.log.Info("migration status", "dir", r.migrationsDir)
		if err := goose.Status(r.db, r.migrationsDir); err != nil {
			return fmt.Errorf("migration status: %w", err)
		}
		return nil
	})
}

// Version returns the most recently applied migration version.
func (r Runner) Version() (int64, error) {
	var version int64
	err := r.withGoose(func() error {
		v, err := goose.GetDBVersion(r.db)
		if err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		version = v
		return nil
	})
	return version, err
}

// Down rolls back migrations either to the previous version or a specific target version.
func (r Runner) Down(ctx context.Context, targetVersion int64) error {
	return r.withGoose(func() error {
		runCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		if targetVersion > 0 {
			r.log.Info("rolling back migrations", "target", targetVersion)
			if err := goose.DownToContext(runCtx, r.db, r.migrationsDir, targetVersion); err != nil {
				return fmt.Errorf("rollback to version %d: %w", targetVersion, err)
			}
		} else {
			r.log.Info("rolling back latest migration")
			if err := goose.DownContext(runCtx, r.db, r.migrationsDir); err != nil {
				return fmt.Errorf("rollback latest migration: %w", err)
			}
		}

		r.log.Info("rollback complete")
		return nil
	})
}

// RecordRun stores a completed installer stage.
func (r Runner) RecordRun(ctx context.Context, id, stage string, at time.Time) error {
	query := "INSERT INTO installer_runs (id, stage, completed_at) VALUES (?, ?, ?)"
	if r.dialect == "postgres" {
		query = "INSERT INTO installer_runs (id, stage, completed_at) VALUES ($1, $2, $3)"
	}
	if _, err := r.db.ExecContext(ctx, query, id, stage, at.UTC()); err != nil {
		return fmt.Errorf("record installer run: %w", err)
	}
	return nil
}

// Ping ensures the database connection is alive.
func (r Runner) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// Close releases underlying connections.
func (r Runner) Close() error {
	return r.db.Close()
}

func (r Runner) withGoose(fn func() error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := goose.SetDialect(r.dialect); err != nil {
		return fmt.Errorf("configure goose: %w", err)
	}
	return fn()
}
