package main

import (
	"os"

	"github.com/wonny/aegis-risk/cmd/riskd/commands"
)

// main is the entry point for the risk analytics CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/riskd [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
