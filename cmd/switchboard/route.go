package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"mercator-hq/switchboard/pkg/backends"
	"mercator-hq/switchboard/pkg/cli"
)

var routeFlags struct {
	addr      string
	file      string
	prompt    string
	system    string
	target    string
	model     string
	caller    string
	sensitive bool
	format    string
	timeout   time.Duration
}

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Send one request through a running gateway",
	Long: `Route a single request envelope through a running gateway and print the
answer. The envelope comes from --file ("-" reads stdin) or is built from
--prompt.

On failure the attempt trail is printed, one line per backend.

Examples:
  switchboard route --prompt "Say hello"
  switchboard route --prompt "Summarize" --target anthropic --sensitive
  switchboard route --file request.json --format json`,
	RunE: runRoute,
}

func init() {
	rootCmd.AddCommand(routeCmd)

	routeCmd.Flags().StringVar(&routeFlags.addr, "addr", "http://127.0.0.1:8080", "gateway admin address")
	routeCmd.Flags().StringVarP(&routeFlags.file, "file", "f", "", "request envelope JSON file (- for stdin)")
	routeCmd.Flags().StringVarP(&routeFlags.prompt, "prompt", "p", "", "user message")
	routeCmd.Flags().StringVar(&routeFlags.system, "system", "", "system message")
	routeCmd.Flags().StringVar(&routeFlags.target, "target", backends.TargetAuto, "backend id or auto")
	routeCmd.Flags().StringVar(&routeFlags.model, "model", "", "model name")
	routeCmd.Flags().StringVar(&routeFlags.caller, "caller", "", "caller identity")
	routeCmd.Flags().BoolVar(&routeFlags.sensitive, "sensitive", false, "bypass the response cache")
	routeCmd.Flags().StringVar(&routeFlags.format, "format", "text", "output format: text, json")
	routeCmd.Flags().DurationVar(&routeFlags.timeout, "timeout", 2*time.Minute, "request timeout")

	routeCmd.MarkFlagsMutuallyExclusive("file", "prompt")
	routeCmd.MarkFlagsOneRequired("file", "prompt")
}

func runRoute(cmd *cobra.Command, args []string) error {
	req, err := buildRouteRequest(cmd.InOrStdin())
	if err != nil {
		return err
	}

	client, err := newAdminClient(routeFlags.addr, routeFlags.timeout)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	resp, err := client.Route(cmd.Context(), req)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) {
			printTrail(cmd.ErrOrStderr(), apiErr)
		}
		return cli.NewCommandError("route", err)
	}

	if routeFlags.format == string(cli.FormatJSON) {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(out, resp)
	}

	fmt.Fprintln(out, resp.Content)
	fmt.Fprintln(cmd.ErrOrStderr())
	fmt.Fprintf(cmd.ErrOrStderr(), "backend=%s model=%s tokens=%d cost=$%.6f latency=%s cached=%t\n",
		resp.Backend, resp.Model, resp.Usage.TotalTokens, resp.Cost, resp.Latency.Round(time.Millisecond), resp.Cached)
	return nil
}

func buildRouteRequest(stdin io.Reader) (*backends.Request, error) {
	var req backends.Request

	if routeFlags.file != "" {
		var data []byte
		var err error
		if routeFlags.file == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(routeFlags.file)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read request: %w", err)
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("invalid request envelope: %w", err)
		}
	} else {
		if routeFlags.system != "" {
			req.Messages = append(req.Messages, backends.Message{Role: "system", Content: routeFlags.system})
		}
		req.Messages = append(req.Messages, backends.Message{Role: "user", Content: routeFlags.prompt})
		req.Target = routeFlags.target
		req.Model = routeFlags.model
		req.Caller = routeFlags.caller
		req.Sensitive = routeFlags.sensitive
	}

	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	return &req, nil
}

func printTrail(w io.Writer, apiErr *apiError) {
	detail := apiErr.Body.Error
	if detail.Code != "" {
		fmt.Fprintf(w, "Request %s: %s\n", detail.RequestID, detail.Code)
	}

	ids := make([]string, 0, len(detail.Attempts))
	for id := range detail.Attempts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "  %s: %s\n", id, detail.Attempts[id])
	}
}
