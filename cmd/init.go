package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aia-cli/aia/internal/config"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := config.Dir(configDir)
			wrote, err := config.WriteTemplate(dir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if wrote {
				fmt.Fprintln(out, "Created", config.Path(dir))
			} else {
				fmt.Fprintln(out, "Exists", config.Path(dir))
			}
			fmt.Fprintln(out, "Set openai_token (or $AIA_API_KEY) before starting a session.")
			return nil
		},
	})
}
