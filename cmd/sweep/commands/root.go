package commands

import (
	"fmt"
	"log/slog"
	"os"

	"orphansweep/pkg/app"
	"orphansweep/pkg/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	// 全局应用实例，供子命令使用
	Sweep *app.App
)

// 这些命令不需要连接对象存储和数据库
var offline = map[string]bool{
	"init":    true,
	"journal": true,
	"list":    true,
	"show":    true,
}

var rootCmd = &cobra.Command{
	Use:          "sweep",
	Short:        "Reconcile a Nextcloud file catalog with its S3 bucket",
	SilenceUsage: true,
	// PersistentPreRunE 会在所有子命令执行前运行
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if offline[cmd.Name()] {
			return nil
		}

		cfg, err := config.Get()
		if err != nil {
			return err
		}
		logger := app.NewLogger(cfg.Log, os.Stderr)
		slog.SetDefault(logger)

		// 统一初始化 App
		Sweep, err = app.NewApp(cmd.Context(), cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize sweep: %w\n(Did you run 'sweep config init'?)", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if Sweep != nil {
			Sweep.Close()
		}
	},
}

// Execute 是入口
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// 在初始化时，加载配置
	cobra.OnInitialize(initConfig)

	// 1. 全局参数 --config
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.toml or $HOME/.sweep/config.toml)")

	// 2. 常用配置项可以用参数覆盖
	flags := rootCmd.PersistentFlags()
	flags.Int("workers", 0, "items processed in parallel within a category")
	flags.Int("threshold", 0, "largest empty folder count deleted without a manual statement")
	flags.String("log-level", "", "debug, info, warn or error")
	bind := map[string]string{
		"sweep.workers":                "workers",
		"sweep.empty_folder_threshold": "threshold",
		"log.level":                    "log-level",
	}
	for key, flag := range bind {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			fmt.Println("Failed to bind flag:", err)
			os.Exit(1)
		}
	}
}

// initConfig 读取配置文件和环境变量
func initConfig() {
	if err := config.Load(cfgFile); err != nil {
		fmt.Println("Config error:", err)
		os.Exit(1)
	}
}
