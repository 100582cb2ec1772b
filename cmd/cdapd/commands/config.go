package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/cdapd/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration utilities",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Load the configuration the daemon would run with - file, environment
overrides and defaults - and print it as YAML.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(GetConfigFile())
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}
