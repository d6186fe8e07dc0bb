package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/switchboard/pkg/cli"
)

var backendsFlags struct {
	addr    string
	timeout time.Duration
}

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "Enable or disable backends on a running gateway",
	Long: `Toggle a backend's enabled flag at runtime. A disabled backend keeps its
breaker and bucket but is skipped by routing until it is enabled again.

Examples:
  switchboard backends disable openai-primary
  switchboard backends enable openai-primary --addr http://10.0.0.5:8080`,
}

var backendsEnableCmd = &cobra.Command{
	Use:   "enable ID",
	Short: "Enable a backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setBackend(cmd, args[0], true)
	},
}

var backendsDisableCmd = &cobra.Command{
	Use:   "disable ID",
	Short: "Disable a backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setBackend(cmd, args[0], false)
	},
}

func init() {
	rootCmd.AddCommand(backendsCmd)
	backendsCmd.AddCommand(backendsEnableCmd, backendsDisableCmd)

	backendsCmd.PersistentFlags().StringVar(&backendsFlags.addr, "addr", "http://127.0.0.1:8080", "gateway admin address")
	backendsCmd.PersistentFlags().DurationVar(&backendsFlags.timeout, "timeout", 10*time.Second, "request timeout")
}

func setBackend(cmd *cobra.Command, id string, enabled bool) error {
	client, err := newAdminClient(backendsFlags.addr, backendsFlags.timeout)
	if err != nil {
		return err
	}
	if err := client.SetEnabled(cmd.Context(), id, enabled); err != nil {
		return cli.NewCommandError("backends", err)
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Backend %s %s\n", id, state)
	return nil
}
