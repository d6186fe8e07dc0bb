/*
Package cli holds the helpers shared by the switchboard commands: output
formatters, a progress reporter for long audit exports, signal handling and
exit codes.

Output Formatting:

Values that implement Table print as aligned columns in text mode and as
rows in CSV mode; everything else falls back to %v or JSON:

	formatter := cli.NewFormatter(cli.FormatText)
	if err := formatter.FormatTo(os.Stdout, statusTable); err != nil {
		return err
	}

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
	// ctx is cancelled on SIGINT or SIGTERM
*/
package cli
