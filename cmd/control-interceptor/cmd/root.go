// Package cmd provides the CLI commands for the control interceptor.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rabits/control-interceptor/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "control-interceptor",
	Short: "Control Interceptor - JSON-RPC guard for a media center",
	Long: `Control Interceptor is a local HTTP proxy in front of a media center's
JSON-RPC control interface.

Every request is relayed to the upstream web server, whose port is discovered
through the upstream's own settings. POSTs to the control path are inspected:
power methods (System.Shutdown, System.Suspend, System.Hibernate,
System.Reboot, Application.Quit) are replaced by a permission query, and the
privileged local action runs only when the upstream grants GUI control.

Quick start:
  1. Create a config file: control-interceptor.yaml (optional)
  2. Run: control-interceptor start

Configuration:
  Config is loaded from control-interceptor.yaml in the current directory,
  $HOME/.control-interceptor/, or /etc/control-interceptor/.

  Environment variables can override config values with the
  CONTROL_INTERCEPTOR_ prefix.
  Example: CONTROL_INTERCEPTOR_LISTEN_PORT=8091

Commands:
  start       Start the proxy
  stop        Stop the running proxy
  config      Print the effective configuration
  version     Print version information`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./control-interceptor.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
