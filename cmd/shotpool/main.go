// Command shotpool is the screenshot service's CLI entrypoint: batch,
// single, server, validate, and health subcommands over a shared browser
// pool and dispatcher.
package main

import (
	"fmt"
	"os"

	"screenshotsvc/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "shotpool:", err)
		os.Exit(1)
	}
}
