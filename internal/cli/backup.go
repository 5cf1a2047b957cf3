package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"sakinah/internal/config"
	"sakinah/internal/ops"
)

// dataDir is the directory holding the local database. The default records
// directory lives inside it too.
func dataDir(cfg *config.Config) string {
	return filepath.Dir(config.ExpandHome(cfg.Storage.Path))
}

func (a *app) backupCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive the local data directory",
		Long: `Archive the local data directory into a .tar.gz. Stop "sakinah serve"
first so the database is not written mid-copy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := a.load(cmd)
			if err != nil {
				return err
			}
			if out == "" {
				out = filepath.Join(filepath.Dir(dataDir(cfg)), "sakinah-backups", ops.ArchiveName(a.clock.Now()))
			}
			m, err := ops.Backup(dataDir(cfg), out)
			if err != nil {
				return err
			}
			logger.Debug("backup written", "archive", out, "files", m.Files, "bytes", m.Bytes, "digest", m.Digest)
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Archive path (default beside the data directory)")
	return cmd
}

func (a *app) restoreCmd() *cobra.Command {
	var target string
	var force bool
	cmd := &cobra.Command{
		Use:   "restore <archive>",
		Short: "Restore a backup archive into the data directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := a.load(cmd)
			if err != nil {
				return err
			}
			if target == "" {
				target = dataDir(cfg)
			}
			if !force {
				if entries, err := os.ReadDir(target); err == nil && len(entries) > 0 {
					return fmt.Errorf("%s is not empty (use --force to restore over it)", target)
				} else if err != nil && !errors.Is(err, os.ErrNotExist) {
					return err
				}
			}
			m, err := ops.Restore(args[0], target)
			if err != nil {
				return err
			}
			logger.Info("backup restored", "target", target, "files", m.Files, "digest", m.Digest)
			fmt.Fprintf(cmd.OutOrStdout(), "restored %d file(s) into %s\n", m.Files, target)
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "target-dir", "", "Directory to restore into (default the data directory)")
	cmd.Flags().BoolVar(&force, "force", false, "Restore over a non-empty directory")
	return cmd
}

func (a *app) drillCmd() *cobra.Command {
	var workDir string
	cmd := &cobra.Command{
		Use:   "drill",
		Short: "Back up, restore into a scratch directory and compare digests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := a.load(cmd)
			if err != nil {
				return err
			}
			if workDir == "" {
				workDir = os.TempDir()
			}
			archive, restored, err := ops.Drill(dataDir(cfg), workDir, a.clock.Now())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "backup:", archive)
			fmt.Fprintln(out, "restored:", restored)
			return nil
		},
	}
	cmd.Flags().StringVar(&workDir, "work-dir", "", "Scratch directory for drill artifacts (default system temp)")
	return cmd
}
