package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rabits/control-interceptor/internal/config"
)

var validateConfig bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration the proxy would run with, after defaults and
environment overrides are applied, as YAML.

With --validate the command fails when the configuration is invalid.

Examples:
  control-interceptor config
  control-interceptor --config /etc/control-interceptor/control-interceptor.yaml config --validate`,
	RunE: runConfig,
}

func init() {
	configCmd.Flags().BoolVar(&validateConfig, "validate", false, "exit non-zero if the configuration is invalid")
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if validateConfig {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	w := cmd.OutOrStdout()
	if file := config.ConfigFileUsed(); file != "" {
		fmt.Fprintf(w, "# loaded from %s\n", file)
	}
	_, err = w.Write(out)
	return err
}
