package main

import (
	"os"

	"github.com/wonny/ussymbols/cmd/ussym/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
