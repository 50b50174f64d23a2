// Ledble is a command-line tool for BLE LED controllers.
//
// It decodes advertisements and state responses, builds protocol commands,
// discovers network gateways, and drives connected controllers: power,
// color, brightness, effects, capability resolution, and a live state
// monitor.
//
// Usage:
//
//	ledble [command] [flags]
//
// See 'ledble --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/ledble/internal/logging"
	"github.com/muurk/ledble/internal/version"
)

func main() {
	if err := logging.InitializeFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging setup failed: %v\n", err)
	}
	defer logging.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ledble",
	Short: "BLE LED controller tool",
	Long: `A command-line tool for BLE LED controllers.

Decodes advertisements and state responses, builds protocol commands,
discovers bridge gateways, and drives connected controllers.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ledble %s\n", version.Full())
	},
}
