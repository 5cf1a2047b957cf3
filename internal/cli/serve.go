package cli

import (
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"sakinah/internal/config"
	"sakinah/internal/httpapi"
	"sakinah/internal/records"
	"sakinah/internal/scheduler"
)

func (a *app) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local API and the midnight rollover",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := a.load(cmd)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			if !a.verbose {
				gin.SetMode(gin.ReleaseMode)
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sess, closeFn, err := a.openSession(ctx, cfg, logger)
			if err != nil {
				return err
			}

			watcher := scheduler.NewDayWatcher(scheduler.Options{
				Clock:      a.clock,
				Location:   loc,
				Interval:   cfg.Scheduler.Interval(),
				MaxCatchUp: cfg.Scheduler.MaxCatchUpDays,
				OnRollover: sess.Rollover,
				Logger:     logger,
			})
			watchDone := make(chan struct{})
			go func() {
				defer close(watchDone)
				_ = watcher.Run(ctx)
			}()

			serveErr := httpapi.NewServer(sess, logger).Serve(ctx, addr)
			stop()
			<-watchDone

			logger.Info("shutting down", "mode", sess.Mode())
			return errors.Join(serveErr, closeFn())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}

func (a *app) recordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Remote record store for signed-in users",
	}

	var addr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve per-user task and streak records over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := a.load(cmd)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			if !a.verbose {
				gin.SetMode(gin.ReleaseMode)
			}
			if addr == "" {
				addr = cfg.Records.Addr
			}
			if len(cfg.Records.Tokens) == 0 {
				logger.Warn("records.tokens is empty; every request will be rejected")
			}

			repo, err := records.NewFileRepo(config.ExpandHome(cfg.Records.DataDir))
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return records.NewServer(repo, records.NewTokenAuth(cfg.Records.Tokens), logger).Serve(ctx, addr)
		},
	}
	serve.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")

	cmd.AddCommand(serve)
	return cmd
}
