package main

import (
	"os"

	"slguard/cmd/slguard/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
