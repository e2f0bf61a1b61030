package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "vm-remediator",
	Short: "Restart or start the cloud instance behind an unhealthy address",
	Long: `Receives health probe reports for a public address, finds the compute
instance that owns it, and resets or starts it depending on its state.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("project", "", "Cloud project that owns the instance")
	rootCmd.PersistentFlags().String("target-address", "", "Public IP address the probe monitors")
	rootCmd.PersistentFlags().String("credentials-file", "", "Service account key file (default: application default credentials)")
	rootCmd.PersistentFlags().String("inventory-file", "", "Static YAML inventory used instead of the cloud API")
	rootCmd.PersistentFlags().Int("zone-concurrency", 1, "Zones listed in parallel while locating the instance")
	rootCmd.PersistentFlags().String("fsm-db-path", "", "FSM store directory; enables durable runs")
	rootCmd.PersistentFlags().String("journal-path", "", "SQLite journal of remediation runs")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().String("trace-exporter", "none", "Trace exporter (none, stdout, otlp)")
	rootCmd.PersistentFlags().String("otlp-endpoint", "localhost:4317", "OTLP gRPC endpoint")

	for _, name := range []string{
		"project", "target-address", "credentials-file", "inventory-file", "zone-concurrency",
		"fsm-db-path", "journal-path", "log-level", "log-format", "trace-exporter", "otlp-endpoint",
	} {
		viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}
