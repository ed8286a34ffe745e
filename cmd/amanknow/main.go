// Package main provides the entry point for the amanknow CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/amanknow/cmd/amanknow/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
