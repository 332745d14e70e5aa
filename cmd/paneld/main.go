package main

import (
	"os"

	"github.com/paneld-dev/paneld/internal/cli"
)

var version = "dev" // Will be set during build with -ldflags

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
