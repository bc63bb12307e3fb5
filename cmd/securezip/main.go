// Securezip creates a password-protected ZIP archive of a directory.
package main

import (
	"os"

	"dirwatch/internal/cli"
)

func main() {
	os.Exit(cli.Execute(cli.NewArchiveCommand(os.Stdout, os.Stderr)))
}
