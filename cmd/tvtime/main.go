package main

import (
	"os"

	"github.com/dukerupert/tvtime/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
