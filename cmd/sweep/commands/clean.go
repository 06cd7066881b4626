package commands

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"orphansweep/pkg/backup"
	"orphansweep/pkg/confirm"
	"orphansweep/pkg/journal"
	"orphansweep/pkg/purge"

	"github.com/spf13/cobra"
)

var (
	cleanYes    bool
	cleanDryRun bool
	// 测试时替换
	cleanConfirmer confirm.Confirmer
)

// ErrRunAborted 运行被信号中断
var ErrRunAborted = errors.New("run interrupted")

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Back up and delete every orphan",
	Long: `Take an inventory, print the orphan counts and, after confirmation,
back up and delete each orphan. Categories are processed in order:
previews, empty folders that own an object, empty folders in bulk,
objects without a catalog entry, catalog files without an object.

Ctrl-C stops new items from starting; items already in flight finish.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Sweep == nil {
			return fmt.Errorf("app not initialized")
		}

		// 1. 第一次 Ctrl-C: 不再开始新条目
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// 2. 备份目录与运行日志 (dry-run 不需要)
		var (
			backups *backup.Writer
			j       *journal.Journal
			err     error
		)
		if !cleanDryRun {
			if backups, err = Sweep.OpenBackups(); err != nil {
				return err
			}
			if j, err = Sweep.OpenJournal(); err != nil {
				return err
			}
		}

		c := cleanConfirmer
		if c == nil {
			c = confirm.New(cleanYes)
		}

		cfg := Sweep.Config.Sweep
		eng := newEngine(cmd, Sweep.Blobs, c, j, purge.Options{
			Blobs:     Sweep.Blobs,
			Catalog:   Sweep.Catalog,
			Backups:   backups,
			Protect:   Sweep.Protect,
			Clock:     Sweep.Clock,
			Logger:    Sweep.Logger,
			Workers:   cfg.Workers,
			Threshold: cfg.EmptyFolderThreshold,
		})

		// 3. 执行
		run, err := eng.Clean(ctx, cleanDryRun)
		if err != nil {
			if errors.Is(err, confirm.ErrAborted) {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}
			return err
		}
		if err := Sweep.WriteMetrics(); err != nil {
			Sweep.Logger.Warn("failed to write metrics", "error", err)
		}

		// 4. 退出码
		switch {
		case run.Summary == nil:
			return nil
		case run.Summary.Aborted:
			return ErrRunAborted
		case run.Failed():
			return fmt.Errorf("%d item(s) failed", run.Summary.Failed())
		}
		return nil
	},
}

func init() {
	cleanCmd.Flags().BoolVarP(&cleanYes, "yes", "y", false, "skip the confirmation prompt")
	cleanCmd.Flags().BoolVar(&cleanDryRun, "dry-run", false, "print the counts and stop")
	rootCmd.AddCommand(cleanCmd)
}
