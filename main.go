// tg is the CLI for taskgraph, a task tracker with dependencies and subtasks.
package main

import (
	"fmt"
	"os"

	"taskgraph/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
