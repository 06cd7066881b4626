package main

import (
	"os"

	"orphansweep/cmd/sweep/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
