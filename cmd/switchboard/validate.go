package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mercator-hq/switchboard/pkg/cli"
	"mercator-hq/switchboard/pkg/config"
)

var validateFlags struct {
	credentials bool
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load a configuration file with environment overrides and defaults applied,
and report every validation error at once.

With --credentials, each backend's credential reference is also resolved so
that a missing environment variable or key file is caught before startup.

Examples:
  switchboard validate --config config.yaml
  switchboard validate --config config.yaml --credentials`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateFlags.credentials, "credentials", false, "resolve backend credential references")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		var verr config.ValidationError
		if errors.As(err, &verr) {
			printFieldErrors(out, verr.Errors)
			return cli.NewConfigError("", fmt.Sprintf("%d validation error(s) in %s", len(verr.Errors), cfgFile))
		}
		return cli.NewConfigError("", err.Error())
	}

	if validateFlags.credentials {
		var errs []config.FieldError
		for i, b := range cfg.Backends {
			if b.CredentialRef == "" {
				continue
			}
			if _, err := config.ResolveCredential(b.CredentialRef); err != nil {
				errs = append(errs, config.FieldError{
					Field:   fmt.Sprintf("backends[%d].credential_ref", i),
					Message: err.Error(),
				})
			}
		}
		if len(errs) > 0 {
			printFieldErrors(out, errs)
			return cli.NewConfigError("", fmt.Sprintf("%d credential(s) could not be resolved", len(errs)))
		}
	}

	fmt.Fprintf(out, "✓ Configuration valid (%d backends)\n", len(cfg.Backends))
	for _, b := range cfg.Backends {
		state := "enabled"
		if !b.IsEnabled() {
			state = "disabled"
		}
		fmt.Fprintf(out, "  %-20s priority=%d type=%s %s\n", b.ID, b.Priority, b.Type, state)
	}
	return nil
}

func printFieldErrors(w io.Writer, errs []config.FieldError) {
	fmt.Fprintln(w, "✗ Configuration invalid:")
	for _, e := range errs {
		fmt.Fprintf(w, "  - %s: %s\n", e.Field, e.Message)
	}
}
