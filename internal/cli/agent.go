package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AgentLoom/AgentLoom/internal/agent"
)

var (
	agentName         string
	agentPersona      string
	agentInstructions string
	agentTools        string
	agentTemperature  float64
	agentTopP         float64
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Manage agent definitions",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var agentAddCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Register a new agent",
	Args:  cobra.ExactArgs(1),
	Run:   runAgentAdd,
}

var agentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered agents",
	Run:   runAgentList,
}

var agentShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an agent definition",
	Args:  cobra.ExactArgs(1),
	Run:   runAgentShow,
}

var agentUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update an agent definition",
	Args:  cobra.ExactArgs(1),
	Run:   runAgentUpdate,
}

func init() {
	for _, c := range []*cobra.Command{agentAddCmd, agentUpdateCmd} {
		c.Flags().StringVar(&agentName, "name", "", "Display name")
		c.Flags().StringVar(&agentPersona, "persona", "", "Persona description")
		c.Flags().StringVar(&agentInstructions, "instructions", "", "Operating instructions")
		c.Flags().StringVar(&agentTools, "tools", "", "Comma-separated tool names (empty = all)")
		c.Flags().Float64Var(&agentTemperature, "temperature", 0, "Sampling temperature override")
		c.Flags().Float64Var(&agentTopP, "top-p", 0, "Nucleus sampling override")
	}
	agentCmd.AddCommand(agentAddCmd)
	agentCmd.AddCommand(agentListCmd)
	agentCmd.AddCommand(agentShowCmd)
	agentCmd.AddCommand(agentUpdateCmd)
}

func splitTools(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func runAgentAdd(cmd *cobra.Command, args []string) {
	rt, err := buildRuntime()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	def := &agent.AgentDefinition{
		ID:           args[0],
		Name:         agentName,
		Persona:      agentPersona,
		Instructions: agentInstructions,
		Tools:        splitTools(agentTools),
		Temperature:  agentTemperature,
		TopP:         agentTopP,
	}
	if err := rt.definitions.Register(context.Background(), def); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Agent %s registered\n", def.ID)
}

func runAgentList(cmd *cobra.Command, args []string) {
	rt, err := buildRuntime()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	defs, err := rt.definitions.List(context.Background())
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if len(defs) == 0 {
		fmt.Println("No agents registered (use 'agentloom agent add')")
		return
	}
	for _, def := range defs {
		name := def.Name
		if name == "" {
			name = "-"
		}
		fmt.Printf("%-24s %s\n", def.ID, name)
	}
}

func runAgentShow(cmd *cobra.Command, args []string) {
	rt, err := buildRuntime()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	def, err := rt.definitions.Get(context.Background(), args[0])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("ID:           %s\n", def.ID)
	fmt.Printf("Name:         %s\n", def.Name)
	fmt.Printf("Persona:      %s\n", def.Persona)
	fmt.Printf("Instructions: %s\n", def.Instructions)
	if len(def.Tools) > 0 {
		fmt.Printf("Tools:        %s\n", strings.Join(def.Tools, ", "))
	} else {
		fmt.Println("Tools:        (all)")
	}
	if def.Temperature > 0 {
		fmt.Printf("Temperature:  %.2f\n", def.Temperature)
	}
	if def.TopP > 0 {
		fmt.Printf("TopP:         %.2f\n", def.TopP)
	}
}

func runAgentUpdate(cmd *cobra.Command, args []string) {
	rt, err := buildRuntime()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	delta := agent.DefinitionDelta{}
	if cmd.Flags().Changed("name") {
		delta.Name = &agentName
	}
	if cmd.Flags().Changed("persona") {
		delta.Persona = &agentPersona
	}
	if cmd.Flags().Changed("instructions") {
		delta.Instructions = &agentInstructions
	}
	if cmd.Flags().Changed("tools") {
		t := splitTools(agentTools)
		if t == nil {
			t = []string{}
		}
		delta.Tools = t
	}
	if cmd.Flags().Changed("temperature") {
		delta.Temperature = &agentTemperature
	}
	if cmd.Flags().Changed("top-p") {
		delta.TopP = &agentTopP
	}

	def, err := rt.definitions.Update(context.Background(), args[0], delta)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Agent %s updated\n", def.ID)
}
