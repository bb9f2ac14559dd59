// Package main is the entry point for the keepsake server.
//
// main stays minimal: all commands, configuration and wiring live in
// internal/cli and the packages it calls.
//
//	keepsake serve --config keepsake.yaml
//	keepsake migrate
//	keepsake token --user <uuid>
package main

import (
	"os"

	"github.com/sakif/keepsake/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
