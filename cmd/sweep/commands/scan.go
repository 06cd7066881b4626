package commands

import (
	"fmt"

	"orphansweep/pkg/confirm"
	"orphansweep/pkg/engine"
	"orphansweep/pkg/inventory"
	"orphansweep/pkg/journal"
	"orphansweep/pkg/plan"
	"orphansweep/pkg/purge"
	"orphansweep/pkg/storage"

	"github.com/spf13/cobra"
)

var (
	scanPlan   string
	scanCached bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Count orphans without changing anything",
	Long: `Take an inventory of the bucket and the catalog, classify every orphan
and print the counts. Nothing is backed up or deleted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Sweep == nil {
			return fmt.Errorf("app not initialized")
		}

		// 1. --cached 时列举结果走 Redis
		blobs := Sweep.Blobs
		if scanCached {
			blobs = Sweep.CachedBlobs()
		}

		// 2. 盘点 + 分类 + 报告
		run, err := newEngine(cmd, blobs, nil, nil, purge.Options{}).Scan(cmd.Context())
		if err != nil {
			return err
		}

		// 3. 可选：写出计划文件
		if scanPlan != "" {
			p, err := plan.Build(run.Snapshot, run.Result, Sweep.Config.Sweep.EmptyFolderThreshold, Sweep.Catalog.Table())
			if err != nil {
				return err
			}
			if err := p.Save(scanPlan); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n📄 Plan written to %s\n", scanPlan)
		}

		return Sweep.WriteMetrics()
	},
}

// newEngine 用全局 App 组装一个引擎
func newEngine(cmd *cobra.Command, blobs storage.Store, c confirm.Confirmer, j *journal.Journal, popts purge.Options) *engine.Engine {
	return engine.New(engine.Options{
		Loader:    inventory.NewLoader(blobs, Sweep.Catalog, Sweep.Clock, Sweep.Logger),
		Purge:     popts,
		Confirmer: c,
		Journal:   j,
		Metrics:   Sweep.Metrics,
		Out:       cmd.OutOrStdout(),
		Logger:    Sweep.Logger,
	})
}

func init() {
	scanCmd.Flags().StringVar(&scanPlan, "plan", "", "write the classified orphan ids to this JSON file")
	scanCmd.Flags().BoolVar(&scanCached, "cached", false, "reuse the bucket listing cached in Redis")
	rootCmd.AddCommand(scanCmd)
}
