// Package main is the entry point for the agentloom CLI.
package main

import (
	"os"

	"github.com/AgentLoom/AgentLoom/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
