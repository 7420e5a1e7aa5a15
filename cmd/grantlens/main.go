// Package main provides the entry point for the grantlens CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/grantlens/cmd/grantlens/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
