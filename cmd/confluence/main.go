package main

import (
	"os"

	"github.com/wonny/confluence/backend/cmd/confluence/commands"
)

// main is the entry point for the confluence CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/confluence [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
