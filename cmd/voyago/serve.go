package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/voyago-dev/voyago"
	"github.com/voyago-dev/voyago/internal/observability"
	pobs "github.com/voyago-dev/voyago/pkg/observability"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the planner API and metrics servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := observability.InitFromEnv(); err != nil {
				return err
			}
			defer func() {
				if err := observability.Shutdown(context.Background()); err != nil {
					log.Printf("[serve] tracing shutdown: %v", err)
				}
			}()

			app, err := voyago.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			api := app.Server()
			metrics := pobs.NewServer(cfg.MetricsPort)

			// Hourly usage report keeps the rotation counters visible in logs.
			reporter := cron.New()
			if _, err := reporter.AddFunc("@hourly", func() {
				log.Printf("[serve] oracle usage: %v", app.Pool.Usage())
			}); err != nil {
				return err
			}
			reporter.Start()
			defer reporter.Stop()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return api.Run(cfg.ServerPort)
			})
			g.Go(func() error {
				return metrics.Start()
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = metrics.Shutdown(shutdownCtx)
				return api.Shutdown(shutdownCtx)
			})

			err = g.Wait()
			if err != nil && ctx.Err() != nil {
				// Shutdown triggered by a signal; the listener errors that
				// follow are expected.
				return nil
			}
			return err
		},
	}
}
