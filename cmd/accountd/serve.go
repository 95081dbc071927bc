// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package main

import (
	"context"
	cryptotls "crypto/tls"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/accountd/accountd/internal/access"
	"github.com/accountd/accountd/internal/auth"
	"github.com/accountd/accountd/internal/auth/postgres"
	"github.com/accountd/accountd/internal/config"
	"github.com/accountd/accountd/internal/httpapi"
	"github.com/accountd/accountd/internal/logging"
	"github.com/accountd/accountd/internal/mail"
	"github.com/accountd/accountd/internal/observability"
	"github.com/accountd/accountd/internal/store"
	acctls "github.com/accountd/accountd/internal/tls"
	"github.com/accountd/accountd/internal/xdg"
)

// serveOptions holds flags that are not part of the config file.
type serveOptions struct {
	autoMigrate   bool
	pruneInterval time.Duration
}

const (
	defaultPruneInterval = time.Hour
	readinessTimeout     = 2 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return newServeCmd(nil)
}

func newServeCmd(deps *Deps) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the account API",
		Long: `Run the account HTTP API and, when metrics-addr is set, the metrics
and health endpoints. Pending migrations are applied first unless
--auto-migrate=false.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, opts, deps)
		},
	}

	def := config.Default()
	cmd.Flags().String("listen", def.HTTP.Addr, "API listen address")
	cmd.Flags().String("metrics-addr", def.HTTP.MetricsAddr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("log-format", def.Log.Format, "log format (json or text)")
	cmd.Flags().String("log-level", def.Log.Level, "log level (debug, info, warn, error)")
	cmd.Flags().String("database-url", "", "PostgreSQL connection URL")
	cmd.Flags().String("app-url", def.AppURL, "public base URL used in emailed links")
	cmd.Flags().BoolVar(&opts.autoMigrate, "auto-migrate", true, "apply pending migrations on startup")
	cmd.Flags().DurationVar(&opts.pruneInterval, "prune-interval", defaultPruneInterval, "how often expired refresh sessions are deleted (0 = never)")

	return cmd
}

// runServeWithDeps runs the API with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, opts *serveOptions, deps *Deps) error {
	deps = deps.withDefaults()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return oops.Wrapf(err, "invalid configuration")
	}

	logger := logging.Setup("accountd", version, cfg.Log.Format, cfg.LogLevel(), cmd.ErrOrStderr())
	slog.SetDefault(logger)

	logger.Info("starting accountd",
		"addr", cfg.HTTP.Addr,
		"metrics_addr", cfg.HTTP.MetricsAddr,
		"mail_driver", cfg.Mail.Driver,
	)

	if opts.autoMigrate {
		if err := migrateUp(deps, cfg.Database.URL); err != nil {
			return err
		}
		logger.Info("database schema is current")
	}

	db, err := deps.DatabaseFactory(ctx, cfg.Database.URL, cfg.Database.Pool)
	if err != nil {
		return oops.Wrapf(err, "failed to connect to database")
	}
	defer db.Close()

	logger.Info("connected to database")

	svc, profiles, policy, err := buildServices(cfg, db, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.HTTP.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.HTTP.MetricsAddr,
			store.ReadinessCheck(db, readinessTimeout),
			auth.RegisterMetrics,
			access.RegisterMetrics,
		)
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.Wrapf(err, "failed to start observability server")
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		metrics = obsServer.Metrics()
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	api, err := httpapi.New(httpapi.Deps{
		Auth:     svc,
		Profiles: profiles,
		Policy:   policy,
		Metrics:  metrics,
		Logger:   logger,
	}, httpapi.Config{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		SecureCookies:  cfg.HTTP.SecureCookies,
		RefreshTTL:     cfg.Tokens.RefreshTTL,
		RateLimit:      cfg.HTTP.RateLimit,
	})
	if err != nil {
		stopObservability(obsServer, cfg.HTTP.ShutdownTimeout)
		return err
	}

	tlsConfig, err := acctls.ServerConfig(cfg.HTTP.TLS, xdg.CertsDir(), time.Now())
	if err != nil {
		stopObservability(obsServer, cfg.HTTP.ShutdownTimeout)
		return err
	}

	listener, err := deps.ListenerFactory("tcp", cfg.HTTP.Addr)
	if err != nil {
		stopObservability(obsServer, cfg.HTTP.ShutdownTimeout)
		return oops.Code("LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}
	if tlsConfig != nil {
		listener = cryptotls.NewListener(listener, tlsConfig)
	}

	srv := &http.Server{
		Handler:           api.Handler(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return oops.Code("SERVE_FAILED").Wrap(err)
		}
		return nil
	})
	if opts.pruneInterval > 0 {
		g.Go(func() error {
			runPruner(gctx, svc, opts.pruneInterval, logger)
			return nil
		})
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("accountd listening on " + listener.Addr().String())
	logger.Info("accountd ready", "addr", listener.Addr().String(), "tls", tlsConfig != nil)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-gctx.Done():
		logger.Info("context cancelled, shutting down")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping API server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// buildServices assembles the auth services on top of db.
func buildServices(cfg config.Config, db Database, logger *slog.Logger) (*auth.Service, *auth.ProfileService, *access.Policy, error) {
	hasher, err := auth.NewArgon2idHasherWithParams(cfg.Hash.Argon2)
	if err != nil {
		return nil, nil, nil, err
	}
	tokens, err := auth.NewTokenIssuer(cfg.Tokens)
	if err != nil {
		return nil, nil, nil, err
	}
	mailer, err := mail.New(cfg.Mail, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	accounts := postgres.NewAccountRepository(db)
	sessions := postgres.NewRefreshSessionRepository(db)

	svc, err := auth.NewService(auth.ServiceDeps{
		Accounts: accounts,
		Sessions: sessions,
		Hasher:   hasher,
		Tokens:   tokens,
		Mailer:   mailer,
	}, cfg.ServiceConfig(), auth.WithLogger(logger))
	if err != nil {
		return nil, nil, nil, oops.Wrapf(err, "failed to create auth service")
	}
	profiles, err := auth.NewProfileService(accounts, sessions, auth.WithProfileLogger(logger))
	if err != nil {
		return nil, nil, nil, oops.Wrapf(err, "failed to create profile service")
	}
	policy, err := access.NewPolicy(cfg.Access.Rules)
	if err != nil {
		return nil, nil, nil, err
	}
	return svc, profiles, policy, nil
}

// migrateUp applies pending migrations and releases the migrator.
func migrateUp(deps *Deps, databaseURL string) error {
	migrator, err := deps.MigratorFactory(databaseURL)
	if err != nil {
		return oops.Wrapf(err, "failed to create migrator")
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Warn("failed to close migrator", "error", closeErr)
		}
	}()
	if err := migrator.Up(); err != nil {
		return oops.Wrapf(err, "failed to apply migrations")
	}
	return nil
}

// runPruner deletes expired refresh sessions every interval until ctx ends.
func runPruner(ctx context.Context, svc *auth.Service, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.PruneSessions(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn("failed to prune refresh sessions", "error", err)
				}
				continue
			}
			logger.Debug("pruned refresh sessions", "deleted", n)
		}
	}
}

// monitorServerErrors cancels ctx when a background server reports an error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}

func stopObservability(s ObservabilityServer, timeout time.Duration) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		slog.Warn("failed to stop observability server during cleanup", "error", err)
	}
}
