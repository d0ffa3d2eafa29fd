// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"copyforge/internal/database"
	"copyforge/internal/handlers"
	"copyforge/internal/middleware"
	"copyforge/internal/prefs"
	"copyforge/internal/router"
	"copyforge/internal/storage"
)

const shutdownTimeout = 30 * time.Second

var serveNoMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveNoMigrate, "no-migrate", false, "Skip pending migrations on startup")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("configuration loaded", zap.String("env", cfg.Env), zap.String("addr", cfg.Addr()))

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	if !serveNoMigrate {
		if err := database.Migrate(ctx, a.db, log); err != nil {
			return err
		}
	}

	options, err := prefs.LoadOptions()
	if err != nil {
		return err
	}

	api := handlers.NewAPI(a.svc, a.templates, options, log)
	if a.reports != nil {
		api = api.WithReports(a.reports, storage.Key)
	}
	public := handlers.NewPublic(a.svc, map[string]handlers.Check{
		"postgres": a.db.PingContext,
		"redis":    func(ctx context.Context) error { return a.redis.Ping(ctx).Err() },
	}, log)

	limiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.RateWindow)
	defer limiter.Stop()

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: router.New(router.Config{
			API:     api,
			Public:  public,
			Auth:    middleware.NewAuthenticator(cfg.JWTSecret),
			Limiter: limiter,
			Metrics: a.metrics.Handler(),
			Log:     log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Batches run inside the request.
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}
