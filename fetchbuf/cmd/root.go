// Package cmd provides the command-line interface for the fetch buffer
// simulator.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use: "fetchbuf",
	Short: "Fetchbuf simulates a dual-line instruction fetch buffer in " +
		"front of a slow line-oriented memory.",
	Long: `Fetchbuf simulates a dual-line instruction fetch buffer in front ` +
		`of a slow line-oriented memory. A scripted consumer streams words ` +
		`through the buffer, optionally redirecting the stream mid-run, and ` +
		`the simulator reports the fetched words and the stall behavior.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
