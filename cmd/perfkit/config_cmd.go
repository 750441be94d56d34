package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/logflow/perfkit/pkg/config"
)

var configInitPath string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or initialize configuration",
	Long: `Configuration is read from, in increasing priority:
  /etc/perfkit/config.yaml
  ~/.perfkit/config.yaml
  ./.perfkit.yaml
  the --config file
  PERFKIT_* environment variables
  command-line flags`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m := config.NewManager()
		if err := m.Load(configPath); err != nil {
			return err
		}
		applyFlags(cmd, m.Get())

		data, err := m.Marshal()
		if err != nil {
			return err
		}
		for _, p := range m.GetPaths() {
			fmt.Fprintf(cmd.ErrOrStderr(), "# loaded %s\n", p)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m := config.NewManager()
		if err := m.Save(configInitPath); err != nil {
			return err
		}
		path := configInitPath
		if path == "" {
			path = "~/.perfkit/config.yaml"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().StringVarP(&configInitPath, "output", "o", "", "Destination (default ~/.perfkit/config.yaml)")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
