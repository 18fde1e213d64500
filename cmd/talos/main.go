package main

import (
	"os"

	"github.com/example/talos/cmd/talos/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
