package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AgentLoom/AgentLoom/internal/collab"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect stored sessions",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	Run:   runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a session's history and statistics",
	Args:  cobra.ExactArgs(1),
	Run:   runSessionsShow,
}

var sessionsClearCmd = &cobra.Command{
	Use:   "clear <id>",
	Short: "Delete a session and its live context",
	Args:  cobra.ExactArgs(1),
	Run:   runSessionsClear,
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsClearCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) {
	rt, err := buildRuntime()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	sessions, err := rt.sessions.List(context.Background(), "")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions")
		return
	}
	for _, s := range sessions {
		title := s.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%-36s %-16s %s\n", s.ID, s.AgentID, title)
	}
}

func runSessionsShow(cmd *cobra.Command, args []string) {
	rt, err := buildRuntime()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	sess, err := rt.sessions.Get(ctx, args[0])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Session: %s\n", sess.ID)
	fmt.Printf("Agent:   %s\n", sess.AgentID)
	if sess.Title != "" {
		fmt.Printf("Title:   %s\n", sess.Title)
	}
	if sess.ParentID != "" {
		fmt.Printf("Parent:  %s\n", sess.ParentID)
	}
	fmt.Printf("Updated: %s\n", sess.UpdatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Metrics: %d tool calls, %d errors, %d tokens (%.2f cost units)\n",
		sess.Metrics.ToolCalls, sess.Metrics.ErrorCount, sess.Metrics.TotalTokens, sess.Metrics.CostUnits)

	// Replay the stored snapshot so the aggregate reflects the whole
	// collaboration, not just what this process saw.
	if sctx, err := rt.contexts.LoadFromStore(ctx, rt.sessions, sess.ID); err == nil {
		fmt.Print(contextSummary(sctx.Statistics()))
	}

	fmt.Println(strings.Repeat("─", 40))
	for _, entry := range sess.History {
		if entry.Role == "metadata" {
			continue
		}
		fmt.Printf("[%s] %s\n", entry.Role, entry.Content)
	}
}

// contextSummary renders the shared-context aggregate for sessions show.
func contextSummary(stats collab.Statistics) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Context: %d events, %d messages, %d tool calls, %d agent interactions\n",
		stats.TotalEvents, stats.TotalMessages, stats.TotalToolCalls, stats.TotalAgentInteractions)
	if len(stats.ActiveAgents) > 0 {
		fmt.Fprintf(&sb, "Agents:  %s\n", strings.Join(stats.ActiveAgents, ", "))
	}
	if stats.HasFinalized {
		sb.WriteString("State:   finalized\n")
	}
	return sb.String()
}

func runSessionsClear(cmd *cobra.Command, args []string) {
	rt, err := buildRuntime()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	rt.contexts.Clear(args[0])
	if err := rt.sessions.Delete(context.Background(), args[0]); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Session %s cleared\n", args[0])
}
