package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "issue-orch",
		Short: "Issue Orchestrator - Autonomous issue-to-PR pipeline",
		Long: `Issue Orchestrator turns tracker issues into reviewed pull requests.
It plans each issue into verifiable tasks, drives an implementer/reviewer
agent loop per task, and submits one change set per run.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
