/*
Package cli provides command-line helpers for the interpose command.

Output Formatting:

Commands render results as text or JSON depending on --output. Results
that implement Texter control their own text rendering:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, report); err != nil {
		return err
	}

Progress Reporting:

	progress := cli.NewProgressReporter(os.Stderr, "calls")
	progress.Start(total)
	progress.Add(1)
	progress.Finish()

Errors and Exit Codes:

ConfigError marks invalid configuration or flags and maps to exit code 2;
any other error maps to 1. See ExitCode.

Signal Handling:

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()
*/
package cli
