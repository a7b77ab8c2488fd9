package main

import (
	"os"

	"github.com/leftmike/kvbind/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
