// Dirwatch reports whether a directory's content changed since its last run.
package main

import (
	"os"

	"dirwatch/internal/cli"
)

func main() {
	os.Exit(cli.Execute(cli.NewTrackCommand(os.Stdout, os.Stderr)))
}
