package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AntonStoeckl/library-lending-go/config"
	"github.com/AntonStoeckl/library-lending-go/overdue"
)

var sweepOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daily overdue sweep until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return withRuntime(cmd, func(_ context.Context, rt *runtime) error {
			sweeper, err := rt.sweeper()
			if err != nil {
				return err
			}

			scheduler, err := overdue.NewScheduler(sweeper, rt.cfg.SweepHour)
			if err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				return scheduler.Run(gctx)
			})

			if configPath != "" {
				g.Go(func() error {
					return config.Watch(gctx, configPath,
						func(reloaded config.Config) {
							if err := scheduler.Reschedule(gctx, reloaded.SweepHour); err != nil {
								slog.Warn("ignoring reloaded sweep hour", "error", err.Error())
							}
						},
						func(err error) {
							slog.Warn("config reload failed", "error", err.Error())
						})
				})
			}

			if sweepOnStart {
				g.Go(func() error {
					if _, err := scheduler.RunOnce(gctx); err != nil {
						slog.Warn("startup sweep failed", "error", err.Error())
					}

					return nil
				})
			}

			slog.Info("librarian serving", "sweep_hour", rt.cfg.SweepHour, "adapter", rt.cfg.AdapterType)

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			slog.Info("librarian stopped")

			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&sweepOnStart, "sweep-now", false, "Also sweep once right after start")
}
