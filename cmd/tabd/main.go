// Command tabd runs the positional-tracking and provenance engine as a
// standalone CLI: apply an edit fixture, serve the decoration transport,
// or inspect a file's persisted log.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
