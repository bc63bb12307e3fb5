package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"dirwatch/internal/archive"
	"dirwatch/internal/config"
	"dirwatch/internal/log"
)

// NewArchiveCommand builds the securezip root command.
func NewArchiveCommand(stdout, stderr io.Writer) *cobra.Command {
	cfg := config.Default()

	cmd := newCommand(
		"securezip <zip_filename> <dir_to_zip> <password> [--exclude name...]",
		"Create a password-protected ZIP file of a directory",
		`securezip writes every file under a directory into an AES-256 encrypted
ZIP archive, preserving paths relative to the directory.

--exclude takes bare file names; a matching name is left out wherever it
appears in the tree. Names may be repeated (--exclude a --exclude b),
comma separated (--exclude a,b) or listed after the password
(--exclude a b).`,
		stdout, stderr,
	)
	cmd.Args = archiveArgs("an output file, a directory and a password")
	cfg.BindArchiveFlags(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		output, password := args[0], args[2]
		cfg.Dir = args[1]
		if err := cfg.ApplyFile(cmd.Flags()); err != nil {
			return err
		}
		cfg.Exclude = append(cfg.Exclude, args[3:]...)
		if err := cfg.Normalize(); err != nil {
			return err
		}
		log.Init(cfg.Verbosity, cfg.LogFormat, stderr)

		if _, err := archive.CreateEncrypted(output, cfg.Dir, password, cfg.ExcludeSet(), archive.Options{}); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created %s with password protection, excluding %v.\n", output, cfg.Exclude)
		return nil
	}

	return cmd
}
