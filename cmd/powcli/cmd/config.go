package cmd

import (
	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"github.com/spacemeshos/powgate/config"
)

// configCmd represents the config command.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `config prints the configuration after applying the config file, POWGATE_*
environment variables and flags to the defaults.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd, nil)
		if err != nil {
			return err
		}
		defer logger.Sync()

		spew.Fdump(cmd.OutOrStdout(), cfg)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func defaultGate() config.GateConfig {
	return config.DefaultConfig().Gate
}
