package commands

import (
	"errors"
	"fmt"

	"orphansweep/pkg/config"

	"github.com/spf13/cobra"
)

var (
	configPath  string
	configForce bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration template",
	Long:  `Write a TOML configuration file with every key and its default value.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		err := config.WriteTemplate(configPath, configForce)
		if errors.Is(err, config.ErrConfigExists) {
			fmt.Fprintf(cmd.OutOrStdout(), "⚠️  %s already exists (use --force to overwrite)\n", configPath)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Wrote %s; fill in blob.bucket and the catalog credentials.\n", configPath)
		return nil
	},
}

func init() {
	configInitCmd.Flags().StringVar(&configPath, "path", "config.toml", "where to write the template")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
