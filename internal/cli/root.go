// Package cli implements the regpool command-line interface using Cobra
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "regpool",
	Short: "regpool - run account registrations on remote browsers",
	Long: `regpool leases phone numbers and browser windows, runs the signup flow
on a fixed-width worker pool and stores every result.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "settings.toml", "Path to the TOML settings file")
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
