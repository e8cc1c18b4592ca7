package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AgentLoom/AgentLoom/internal/agent"
	"github.com/AgentLoom/AgentLoom/internal/provider"
)

var (
	runAgentID   string
	runSessionID string
	runMessage   string
	runStream    bool
	runTitle     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one agent turn from the CLI",
	Run:   doRun,
}

func init() {
	runCmd.Flags().StringVarP(&runAgentID, "agent", "a", "", "Agent ID (defaults to the configured gateway agent)")
	runCmd.Flags().StringVarP(&runSessionID, "session", "s", "", "Session ID (empty = new session)")
	runCmd.Flags().StringVarP(&runMessage, "message", "m", "", "Message to send to the agent")
	runCmd.Flags().BoolVar(&runStream, "stream", false, "Print state transitions as they happen")
	runCmd.Flags().BoolVar(&runTitle, "title", false, "Generate a session title after the turn")
}

func doRun(cmd *cobra.Command, args []string) {
	if runMessage == "" {
		fmt.Println("Error: --message is required")
		os.Exit(1)
	}

	rt, err := buildRuntime()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	agentID := runAgentID
	if agentID == "" {
		agentID = rt.cfg.Gateway.DefaultAgent
	}

	req := agent.RunRequest{
		AgentID:     agentID,
		SessionID:   runSessionID,
		InitiatorID: "cli",
		Messages: []provider.Message{{
			ID:      uuid.NewString(),
			Role:    "user",
			Content: runMessage,
		}},
	}

	ctx := context.Background()
	var sessionID, final string

	if runStream {
		for ev := range rt.machine.RunStream(ctx, req) {
			if ev.Err != nil {
				fmt.Printf("Error: %v\n", ev.Err)
				os.Exit(1)
			}
			switch ev.State {
			case agent.StateStart:
				fmt.Printf("[start] session %s\n", ev.SessionID)
			case agent.StateModel:
				if ev.Message != nil && ev.Message.Content != "" {
					fmt.Printf("[model] %s\n", ev.Message.Content)
				}
			case agent.StateTools:
				if ev.ToolCall != nil {
					fmt.Printf("[tool]  %s (%s)\n", ev.ToolCall.Name, ev.ToolCall.Status)
				}
			case agent.StateEnd:
				if ev.Result != nil {
					sessionID = ev.Result.SessionID
					final = ev.Result.FinalContent
				}
			}
		}
	} else {
		result, err := rt.machine.Run(ctx, req)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		sessionID = result.SessionID
		final = result.FinalContent
	}

	if err := rt.contexts.SaveToStore(ctx, rt.sessions, sessionID); err != nil {
		fmt.Printf("Warning: session persist failed: %v\n", err)
	}
	if runTitle {
		if title, err := rt.machine.GenerateTitle(ctx, sessionID); err == nil && title != "" {
			fmt.Printf("Title: %s\n", title)
		}
	}

	fmt.Println("\n" + final)
	fmt.Printf("\n(session %s)\n", sessionID)
}
