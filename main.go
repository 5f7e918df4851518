package main

import (
	"os"

	"github.com/aidline/aidline/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
