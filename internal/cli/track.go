package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"dirwatch/internal/app"
	"dirwatch/internal/config"
	"dirwatch/internal/log"
	"dirwatch/internal/tracker"
)

// NewTrackCommand builds the dirwatch root command.
func NewTrackCommand(stdout, stderr io.Writer) *cobra.Command {
	cfg := config.Default()

	cmd := newCommand(
		"dirwatch <directory>",
		"Report whether a directory's content changed since the last run",
		`dirwatch fingerprints every file under a directory and compares the result
with the fingerprints recorded by the previous run.

The first run records a baseline. Every later run prints either
"changes detected" or "no changes detected". Fingerprints are kept in a
SQLite file at the root of the directory (watch.db by default).

Only new or modified content is reported: a file that was removed, with
nothing else changed, is not a change. Runs against the same directory must
not overlap; serialize them externally if needed.`,
		stdout, stderr,
	)
	cmd.Args = exactArgs(1, "a directory path")
	cfg.BindTrackFlags(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, args []string) (err error) {
		cfg.Dir = args[0]
		if err := cfg.ApplyFile(cmd.Flags()); err != nil {
			return err
		}
		if err := cfg.Normalize(); err != nil {
			return err
		}
		log.Init(cfg.Verbosity, cfg.LogFormat, stderr)

		application, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeInto(&err, application)

		report, err := application.Run(cmd.Context())
		if err != nil {
			return err
		}

		printReport(cmd.OutOrStdout(), report, cfg.ShowChanged)
		return nil
	}

	return cmd
}

func printReport(w io.Writer, report tracker.Report, showChanged bool) {
	fmt.Fprintln(w, report.Outcome)
	if !showChanged {
		return
	}
	for _, record := range report.Changed {
		fmt.Fprintf(w, "  %s\n", record.Path)
	}
}
