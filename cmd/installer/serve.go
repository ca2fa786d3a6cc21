package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/splax/installer/internal/app/migrate"
	"github.com/splax/installer/internal/database"
	"github.com/splax/installer/internal/domain"
	"github.com/splax/installer/internal/envfile"
	httpx "github.com/splax/installer/internal/http"
	"github.com/splax/installer/internal/license"
	"github.com/splax/installer/internal/notify"
	"github.com/splax/installer/internal/service/activation"
	"github.com/splax/installer/internal/service/installation"
	"github.com/splax/installer/internal/validation"
	"github.com/splax/installer/internal/ws"
	"github.com/splax/installer/pkg/config"
	"github.com/splax/installer/pkg/logger"
)

func newServeCmd(cfg config.InstallerConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the installer HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	cmd.Flags().StringVar(&cfg.EnvFilePath, "env-file", cfg.EnvFilePath, "environment file to manage")
	return cmd
}

func serve(cfg config.InstallerConfig) error {
	log := logger.New("installer", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	envManager := envfile.New(cfg.EnvFilePath, cfg.EnvExamplePath, log)
	if err := envManager.Load(); err != nil {
		log.Warn("env file not loaded", "path", envManager.Path(), "error", err)
	}
	validator, err := validation.NewWizard()
	if err != nil {
		log.Error("failed to compile wizard rules", "error", err)
		return err
	}
	licenseClient, err := license.New(cfg.LicenseAPIURL, license.WithTimeout(cfg.LicenseTimeout), license.WithLogger(log))
	if err != nil {
		log.Error("failed to configure license client", "error", err)
		return err
	}
	connections := database.DefaultConnections(cfg.DatabaseSSLMode)
	prober := database.NewProber(nil, cfg.ProbeTimeout, log)

	hub := ws.NewHub(ctx)
	subscribers := []notify.Subscriber{notify.NewLogSubscriber(log), notify.NewHubSink(hub)}
	limiter := httpx.NewMemoryRateLimiter()
	var publisher *notify.RedisPublisher
	if addr := strings.TrimSpace(cfg.RedisAddr); addr != "" {
		publisher, err = notify.NewRedisPublisher(ctx, addr, cfg.RedisPassword, cfg.RedisDB, cfg.NoticeChannel)
		if err != nil {
			log.Warn("redis notice publisher unavailable", "error", err)
		} else {
			defer publisher.Close()
			subscribers = append(subscribers, publisher)
		}
		redisLimiter, err := httpx.NewRedisRateLimiter(ctx, addr, cfg.RedisPassword, cfg.RedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter.Close()
			limiter = redisLimiter
		}
	}
	dispatcher := notify.NewDispatcher(log, subscribers...)
	defer dispatcher.Wait()

	activationSvc := activation.New(
		envManager,
		validator,
		connections,
		prober,
		licenseClient,
		dispatcher,
		config.EnvReader{},
		cfg.AppURL,
		log,
	)
	installationSvc := installation.New(envManager, connections, migratorFactory(cfg, log), dispatcher, log)

	router := httpx.NewRouter(log, activationSvc, installationSvc, envManager, hub, limiter, cfg.RateLimit, cfg.RateLimitWindow)
	defer router.Close()
	router.AddHealthCheck("environment_file", func(context.Context) error {
		_, err := os.Stat(filepath.Dir(envManager.Path()))
		return err
	})
	if publisher != nil {
		router.AddHealthCheck("redis", publisher.Ping)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("installer server starting", "addr", cfg.Addr, "env_file", envManager.Path(), "license_endpoint", licenseClient.Endpoint())
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("installer server stopped")
		return nil
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	}
}

func migratorFactory(cfg config.InstallerConfig, log *slog.Logger) installation.MigratorFactory {
	return func(ctx context.Context, desc domain.ConnectionDescriptor) (installation.Migrator, error) {
		runner, err := migrate.Open(ctx, desc, cfg.MigrationsDir, cfg.MigrationTimeout, log)
		if err != nil {
			return nil, err
		}
		return runner, nil
	}
}
