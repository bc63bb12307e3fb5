// Package cli implements the dirwatch and securezip command-line interfaces.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// ErrUsage marks a command invoked with the wrong arguments.
var ErrUsage = errors.New("usage error")

// Execute runs cmd and returns the process exit status. Usage errors print
// the command usage after the message.
func Execute(cmd *cobra.Command) int {
	return ExecuteContext(context.Background(), cmd)
}

// ExecuteContext is Execute with an explicit context.
func ExecuteContext(ctx context.Context, cmd *cobra.Command) int {
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	stderr := cmd.ErrOrStderr()
	fmt.Fprintln(stderr, "Error:", err)
	if errors.Is(err, ErrUsage) {
		fmt.Fprint(stderr, cmd.UsageString())
	}
	return 1
}

func exactArgs(n int, what string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("%w: you need to provide %s", ErrUsage, what)
		}
		return nil
	}
}

// archiveArgs accepts the three positional arguments of securezip. Anything
// after the password is only valid as further --exclude names, so
// "--exclude a.txt b.txt" excludes both files.
func archiveArgs(what string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < 3 {
			return fmt.Errorf("%w: you need to provide %s", ErrUsage, what)
		}
		if len(args) > 3 && !cmd.Flags().Changed("exclude") {
			return fmt.Errorf("%w: unexpected arguments %v", ErrUsage, args[3:])
		}
		return nil
	}
}

// closeInto closes c and joins its error into *errp.
func closeInto(errp *error, c io.Closer) {
	if err := c.Close(); err != nil {
		*errp = errors.Join(*errp, err)
	}
}

func newCommand(use, short, long string, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		Long:          long,
		Version:       fmt.Sprintf("%s (%s)", Version, GitCommit),
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	})
	return cmd
}
