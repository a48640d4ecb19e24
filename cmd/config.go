package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aia-cli/aia/internal/config"
)

func init() {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), config.Path(config.Dir(configDir)))
		},
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective config with the API key masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.Dir(configDir))
			if err != nil {
				return err
			}
			return cfg.Show(cmd.OutOrStdout())
		},
	})
	rootCmd.AddCommand(configCmd)
}
