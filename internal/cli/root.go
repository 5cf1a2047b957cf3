// Package cli implements the sakinah command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"sakinah/internal/clock"
	"sakinah/internal/config"
	"sakinah/internal/session"
	"sakinah/internal/storage"
	"sakinah/internal/storage/remote"
	"sakinah/internal/storage/sqlite"
)

type app struct {
	version string
	clock   clock.Clock

	cfgPath string
	verbose bool
}

// Execute runs the root command.
func Execute(version string) error {
	root := newRootCmd(&app{version: version, clock: clock.RealClock{}})
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "sakinah",
		Short: "Daily practice checklist with streaks and yellow cards",
		Long: `sakinah tracks a daily checklist of devotional tasks.

Tasks reset at local midnight. Completing every critical task keeps the
streak alive; a missed day earns a yellow card and three cards in a week
reset the streak.`,
		Version:       a.version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", config.DefaultPath(), "Path to config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(a.serveCmd())
	root.AddCommand(a.tasksCmd())
	root.AddCommand(a.streakCmd())
	root.AddCommand(a.reminderCmd())
	root.AddCommand(a.statsCmd())
	root.AddCommand(a.recordsCmd())
	root.AddCommand(a.configCmd())
	root.AddCommand(a.backupCmd())
	root.AddCommand(a.restoreCmd())
	root.AddCommand(a.drillCmd())
	return root
}

func (a *app) load(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := newLogger(cfg.Log, a.verbose, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newLogger(lc config.LogConfig, verbose bool, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", lc.Level, err)
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(w, opts)), nil
}

// openSession opens the local database and starts an anonymous session on
// it. When an identity is configured the session then signs in, which
// copies the local records to the remote on first use. The returned close
// function flushes queued writes and reports any that failed.
func (a *app) openSession(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*session.Session, func() error, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	local, err := sqlite.Open(config.ExpandHome(cfg.Storage.Path))
	if err != nil {
		return nil, nil, err
	}

	var rem storage.Adapter
	if cfg.Remote.BaseURL != "" {
		rem = remote.New(cfg.Remote.BaseURL, cfg.Remote.RequestTimeout())
	}

	sess, err := session.Open(ctx, session.Options{
		Local:        local,
		Remote:       rem,
		Clock:        a.clock,
		Location:     loc,
		Logger:       logger,
		WriteTimeout: cfg.Storage.Timeout(),
		Seed:         cfg.Checklist,
		Rules:        cfg.Streak,
		Events:       local,
	})
	if err != nil {
		local.Close()
		return nil, nil, err
	}

	closeFn := func() error {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.Storage.Timeout()+time.Second)
		defer cancel()
		err := sess.Close(flushCtx)
		if cerr := local.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		if n := sess.Writer.Failures(); n > 0 {
			return fmt.Errorf("%d write(s) failed; run with --verbose for details", n)
		}
		return nil
	}

	if !cfg.Identity.Anonymous() {
		migration, err := sess.Authenticate(ctx, cfg.Identity, nil)
		if err != nil {
			return nil, nil, errors.Join(fmt.Errorf("sign in as %s: %w", cfg.Identity.UserID, err), closeFn())
		}
		logger.Debug("signed in", "user", cfg.Identity.UserID, "migration", string(migration))
	}
	return sess, closeFn, nil
}

// withSession runs fn against a session and closes it afterwards.
func (a *app) withSession(cmd *cobra.Command, fn func(ctx context.Context, sess *session.Session) error) error {
	cfg, logger, err := a.load(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	sess, closeFn, err := a.openSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	runErr := fn(ctx, sess)
	if err := closeFn(); runErr == nil {
		runErr = err
	}
	return runErr
}
