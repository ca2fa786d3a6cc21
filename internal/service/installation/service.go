package installation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/splax/installer/internal/domain"
)

// StageDatabase names the migration stage in recorded runs.
const StageDatabase = "database"

// ErrNoConnection reports that the saved environment names no database connection.
var ErrNoConnection = errors.New("no database connection configured")

// Environment exposes the saved environment values.
type Environment interface {
	Values() (domain.EnvironmentConfiguration, error)
}

// DescriptorBuilder maps saved variables to a connection descriptor.
type DescriptorBuilder interface {
	DescriptorFromEnvironment(env domain.EnvironmentConfiguration) domain.ConnectionDescriptor
}

// Migrator applies the schema and records completed stages.
type Migrator interface {
	Ensure(ctx context.Context) error
	Version() (int64, error)
	RecordRun(ctx context.Context, id, stage string, at time.Time) error
	Close() error
}

// MigratorFactory connects a Migrator to the described database.
type MigratorFactory func(ctx context.Context, desc domain.ConnectionDescriptor) (Migrator, error)

// Notifier emits fire-and-forget notices.
type Notifier interface {
	Notify(ctx context.Context, notice domain.Notice)
}

// Result describes a completed database stage.
type Result struct {
	RunID      string    `json:"run_id"`
	Connection string    `json:"connection"`
	Version    int64     `json:"version"`
	FinishedAt time.Time `json:"finished_at"`
}

// Service runs the database stage that follows environment activation.
type Service struct {
	env         Environment
	descriptors DescriptorBuilder
	migrators   MigratorFactory
	notifier    Notifier
	logger      *slog.Logger
	now         func() time.Time
}

// New returns an installation service.
func New(env Environment, descriptors DescriptorBuilder, migrators MigratorFactory, notifier Notifier, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{env: env, descriptors: descriptors, migrators: migrators, notifier: notifier, logger: logger, now: time.Now}
}

// Complete migrates the database saved in the environment file and announces completion.
func (s Service) Complete(ctx context.Context) (Result, error) {
	values, err := s.env.Values()
	if err != nil {
		return Result{}, fmt.Errorf("read environment: %w", err)
	}
	desc := s.descriptors.DescriptorFromEnvironment(values)
	if strings.TrimSpace(desc.Driver) == "" {
		return Result{}, ErrNoConnection
	}

	migrator, err := s.migrators(ctx, desc)
	if err != nil {
		return Result{}, fmt.Errorf("connect %s: %w", desc.Driver, err)
	}
	defer func() {
		if cerr := migrator.Close(); cerr != nil {
			s.logger.Warn("close migration handle", "error", cerr)
		}
	}()

	if err := migrator.Ensure(ctx); err != nil {
		return Result{}, err
	}
	version, err := migrator.Version()
	if err != nil {
		return Result{}, err
	}
	res := Result{
		RunID:      uuid.NewString(),
		Connection: desc.Driver,
		Version:    version,
		FinishedAt: s.now().UTC(),
	}
	if err := migrator.RecordRun(ctx, res.RunID, StageDatabase, res.FinishedAt); err != nil {
		return Result{}, err
	}
	s.logger.Info("database stage completed", "run_id", res.RunID, "connection", desc, "version", version)

	s.notifier.Notify(ctx, domain.Notice{
		ID:         res.RunID,
		Kind:       domain.NoticeInstallationCompleted,
		OccurredAt: res.FinishedAt,
	})
	return res, nil
}
