package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var rootCmd = &cobra.Command{
	Use:   "rtkern",
	Short: "Priority-scheduled real-time kernel simulator",
	Long:  `rtkern boots a small program on a priority-inheritance kernel and streams every scheduling decision`,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(versionCmd)

	// global flags
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
}

// main executes the root command. Any command error exits with status 1.
func main() {
	rootCmd.Version = Version

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// isTerminal reports whether f is attached to a terminal
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
