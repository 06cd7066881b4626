package commands

import (
	"errors"
	"fmt"

	"orphansweep/pkg/config"
	"orphansweep/pkg/journal"
	"orphansweep/pkg/report"

	"github.com/spf13/cobra"
)

var journalLimit int

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect past clean runs",
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := openJournal()
		if err != nil {
			return err
		}
		defer j.Close()

		runs, err := j.RecentRuns(cmd.Context(), journalLimit)
		if err != nil {
			return fmt.Errorf("failed to read journal: %w", err)
		}
		report.PrintRuns(cmd.OutOrStdout(), runs)
		return nil
	},
}

var journalShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show every item of one run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := openJournal()
		if err != nil {
			return err
		}
		defer j.Close()

		items, err := j.Items(cmd.Context(), args[0])
		if errors.Is(err, journal.ErrRunNotFound) {
			return fmt.Errorf("run %s not found", args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to read journal: %w", err)
		}
		report.PrintItems(cmd.OutOrStdout(), items)
		return nil
	},
}

// openJournal 只依赖配置，不连接对象存储和数据库
func openJournal() (*journal.Journal, error) {
	cfg, err := config.Get()
	if err != nil {
		return nil, err
	}
	if cfg.Journal.Path == "" {
		return nil, fmt.Errorf("journal.path is not configured")
	}
	return journal.Open(cfg.Journal.Path)
}

func init() {
	journalListCmd.Flags().IntVarP(&journalLimit, "limit", "n", 20, "number of runs to show")
	journalCmd.AddCommand(journalListCmd, journalShowCmd)
	rootCmd.AddCommand(journalCmd)
}
