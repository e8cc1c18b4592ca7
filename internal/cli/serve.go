package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AgentLoom/AgentLoom/internal/agent"
	"github.com/AgentLoom/AgentLoom/internal/bus"
	"github.com/AgentLoom/AgentLoom/internal/channels"
	"github.com/AgentLoom/AgentLoom/internal/mirror"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway with the configured channels",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	printHeader("🧵 AgentLoom Gateway")

	rt, err := buildRuntime()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	messageBus := bus.New()
	gateway := agent.NewGateway(rt.machine, messageBus, rt.cfg.Gateway.DefaultAgent)

	var active []channels.Channel
	if rt.cfg.Channels.Slack.Enabled {
		active = append(active, channels.NewSlackChannel(rt.cfg.Channels.Slack, messageBus))
	}
	for _, ch := range active {
		if err := ch.Start(ctx); err != nil {
			fmt.Printf("Channel %s failed to start: %v\n", ch.Name(), err)
			os.Exit(1)
		}
		fmt.Printf("Channel %s started\n", ch.Name())
	}

	var eventMirror *mirror.Mirror
	if rt.cfg.Mirror.Enabled {
		publisher := mirror.NewKafkaPublisher(rt.cfg.Mirror.Brokers, rt.cfg.Mirror.Topic)
		eventMirror = mirror.New(publisher)
		rt.contexts.OnCreate(func(sessionID string) {
			eventMirror.Attach(ctx, sessionID, rt.contexts.GetOrCreate(sessionID))
		})
		fmt.Printf("Mirror enabled (topic %s)\n", rt.cfg.Mirror.Topic)
	}

	fmt.Printf("Gateway running with default agent %q. Ctrl-C to stop.\n", rt.cfg.Gateway.DefaultAgent)
	gateway.Run(ctx)

	for _, ch := range active {
		ch.Stop()
	}
	if eventMirror != nil {
		eventMirror.Close()
	}
}
