package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/switchboard/pkg/cli"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "switchboard",
	Short: "Switchboard - multi-upstream LLM gateway",
	Long: `Switchboard routes LLM requests across a prioritized set of backends.

Each backend sits behind its own circuit breaker and token bucket. When a
backend fails transiently the request falls back to the next one in priority
order, and every routed request leaves an audit event with its attempt trail.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return cli.ExitCode(err)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
