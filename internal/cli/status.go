package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AgentLoom/AgentLoom/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷️ AgentLoom Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("📊 AgentLoom Status")
		fmt.Printf("Version: %s\n", version)

		home, _ := os.UserHomeDir()
		configPath := filepath.Join(home, config.ConfigDir, config.ConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			fmt.Println("Config:  ✓ Found (" + configPath + ")")
		} else {
			fmt.Println("Config:  ✗ Not found (defaults in effect)")
		}

		if cfg, err := config.Load(); err == nil {
			if cfg.Providers.OpenAI.APIKey != "" {
				fmt.Println("API Key: ✓ Found")
			} else {
				fmt.Println("API Key: ✗ Not found")
			}
			fmt.Printf("Model:   %s\n", cfg.Model.Name)
			if cfg.Channels.Slack.Enabled {
				fmt.Println("Slack:   ✓ Enabled")
			} else {
				fmt.Println("Slack:   ✗ Disabled")
			}
			if cfg.Mirror.Enabled {
				fmt.Printf("Mirror:  ✓ Enabled (topic %s)\n", cfg.Mirror.Topic)
			} else {
				fmt.Println("Mirror:  ✗ Disabled")
			}
		} else {
			fmt.Println("API Key: ? Unable to load config")
		}

		fmt.Println("Status:  Ready")
	},
}
