package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AgentLoom/AgentLoom/internal/agent"
	"github.com/AgentLoom/AgentLoom/internal/provider"
)

var (
	chatAgentID   string
	chatSessionID string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat with an agent",
	Run:   doChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatAgentID, "agent", "a", "", "Agent ID (defaults to the configured gateway agent)")
	chatCmd.Flags().StringVarP(&chatSessionID, "session", "s", "", "Session ID to resume (empty = new session)")
}

func doChat(cmd *cobra.Command, args []string) {
	rt, err := buildRuntime()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	agentID := chatAgentID
	if agentID == "" {
		agentID = rt.cfg.Gateway.DefaultAgent
	}

	printHeader(fmt.Sprintf("Chatting with %s (type 'exit' to quit)", agentID))

	ctx := context.Background()
	sessionID := chatSessionID
	firstTurn := sessionID == ""

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		result, err := rt.machine.Run(ctx, agent.RunRequest{
			AgentID:     agentID,
			SessionID:   sessionID,
			InitiatorID: "cli",
			Messages: []provider.Message{{
				ID:      uuid.NewString(),
				Role:    "user",
				Content: line,
			}},
		})
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		sessionID = result.SessionID

		fmt.Println(result.FinalContent)
		fmt.Println()

		if err := rt.contexts.SaveToStore(ctx, rt.sessions, sessionID); err != nil {
			fmt.Printf("Warning: session persist failed: %v\n", err)
		}
		if firstTurn {
			firstTurn = false
			rt.machine.GenerateTitle(ctx, sessionID)
		}
	}

	if sessionID != "" {
		fmt.Printf("\n(session %s)\n", sessionID)
	}
}
