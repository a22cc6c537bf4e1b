// Package main provides the panel-admin CLI tool for operating the relay panel.
package main

import (
	"os"

	"github.com/sirosfoundation/relay-panel/cmd/panel-admin/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
