package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "update-agent",
	Short: "Device update agent - operator-confirmed download, verify, apply, reboot",
	Long: `Drives a device through Idle, Downloading, Verifying, Applying and Rebooting.
Every step after the download waits for an operator command and falls back to
Idle if none arrives in time.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(viper.GetString("log-level"), viper.GetString("log-format"))
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().String("artifact-source", "file", "Where artifacts come from (file, s3)")
	rootCmd.PersistentFlags().String("artifact-dir", "", "Base directory for relative artifact names")
	rootCmd.PersistentFlags().String("s3-bucket", "", "S3 bucket holding artifacts")
	rootCmd.PersistentFlags().String("s3-region", "us-east-1", "S3 region")
	rootCmd.PersistentFlags().Int64("max-artifact-size", 256*1024*1024, "Max artifact size in bytes")
	rootCmd.PersistentFlags().String("history-path", ".artifacts/history.db", "SQLite attempt history path (empty disables)")
	rootCmd.PersistentFlags().String("apply-target", ".artifacts/slot.bin", "Staging file for the file apply backend")

	for _, name := range []string{
		"log-level", "log-format", "artifact-source", "artifact-dir", "s3-bucket",
		"s3-region", "max-artifact-size", "history-path", "apply-target",
	} {
		viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}
