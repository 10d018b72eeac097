// Command healthlog is a local-first health log backed by SQLite.
package main

import (
	"os"

	"github.com/roach88/healthlog/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
