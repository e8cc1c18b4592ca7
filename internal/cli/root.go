package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/AgentLoom/AgentLoom/internal/cli.version=1.2.3"
	version = "0.4.0"
	logo    = "\n" +
		"    _                    _   _\n" +
		"   / \\   __ _  ___ _ __ | |_| |    ___   ___  _ __ ___\n" +
		"  / _ \\ / _` |/ _ \\ '_ \\| __| |   / _ \\ / _ \\| '_ ` _ \\\n" +
		" / ___ \\ (_| |  __/ | | | |_| |__| (_) | (_) | | | | | |\n" +
		"/_/   \\_\\__, |\\___|_| |_|\\__|_____\\___/ \\___/|_| |_| |_|\n" +
		"        |___/\n"
)

var rootCmd = &cobra.Command{
	Use:   "agentloom",
	Short: "AgentLoom - Multi-Agent Collaboration Runtime",
	Long:  color.CyanString(logo) + "\nA runtime for LLM agents that share context and delegate work to each other.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println("─────────────────────")
	}
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(serveCmd)
}
