/*
Package cli provides command-line helpers for the bluegreen command.

Output Formatting:

Command results can be rendered as human-readable text or machine-readable
JSON:

	formatter, err := cli.NewFormatter(cli.FormatJSON)
	if err != nil {
		return err
	}
	if err := formatter.FormatTo(os.Stdout, report); err != nil {
		return err
	}

Exit Codes:

Commands that distinguish "the tool broke" from "the check failed" wrap
their errors in ExitError:

	if !report.Passed {
		return &cli.ExitError{Code: cli.ExitVerifyFailed, Err: errors.New("verification failed")}
	}

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SignalContext()
	defer stop()
*/
package cli
