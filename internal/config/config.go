// Package config provides configuration types and loading for agentloom.
package config

// Config is the root configuration struct.
// Top-level groups: Paths, Model, Providers, Interactions, Gateway,
// Channels, Mirror.
type Config struct {
	Paths        PathsConfig        `json:"paths"`
	Model        ModelConfig        `json:"model"`
	Providers    ProvidersConfig    `json:"providers"`
	Interactions InteractionsConfig `json:"interactions"`
	Gateway      GatewayConfig      `json:"gateway"`
	Channels     ChannelsConfig     `json:"channels"`
	Mirror       MirrorConfig       `json:"mirror"`
}

// PathsConfig groups all filesystem path settings.
type PathsConfig struct {
	Workspace string `json:"workspace" envconfig:"WORKSPACE"`
	DataDir   string `json:"dataDir" envconfig:"DATA_DIR"`
}

// ModelConfig groups LLM model and step-machine settings.
type ModelConfig struct {
	Name              string  `json:"name" envconfig:"MODEL"`
	MaxTokens         int     `json:"maxTokens" envconfig:"MAX_TOKENS"`
	Temperature       float64 `json:"temperature" envconfig:"TEMPERATURE"`
	TopP              float64 `json:"topP" envconfig:"TOP_P"`
	MaxToolIterations int     `json:"maxToolIterations" envconfig:"MAX_TOOL_ITERATIONS"`
}

// ProvidersConfig contains LLM provider configurations.
type ProvidersConfig struct {
	OpenAI ProviderConfig `json:"openai"`
}

// ProviderConfig contains settings for a single LLM provider.
type ProviderConfig struct {
	APIKey  string `json:"apiKey" envconfig:"API_KEY"`
	APIBase string `json:"apiBase,omitempty" envconfig:"API_BASE"`
}

// InteractionsConfig bounds agent-to-agent calls.
type InteractionsConfig struct {
	TimeoutSeconds int `json:"timeoutSeconds" envconfig:"TIMEOUT_SECONDS"`
	MaxConcurrent  int `json:"maxConcurrent" envconfig:"MAX_CONCURRENT"`
	MaxDepth       int `json:"maxDepth" envconfig:"MAX_DEPTH"`
}

// GatewayConfig contains the message gateway settings.
type GatewayConfig struct {
	DefaultAgent string `json:"defaultAgent" envconfig:"DEFAULT_AGENT"`
}

// ChannelsConfig contains all channel configurations.
type ChannelsConfig struct {
	Slack SlackConfig `json:"slack"`
}

// SlackConfig configures the Slack channel.
type SlackConfig struct {
	Enabled   bool     `json:"enabled" envconfig:"ENABLED"`
	BotToken  string   `json:"botToken" envconfig:"BOT_TOKEN"`
	AppToken  string   `json:"appToken" envconfig:"APP_TOKEN"`
	AllowFrom []string `json:"allowFrom"`
}

// MirrorConfig configures the Kafka event mirror.
type MirrorConfig struct {
	Enabled bool     `json:"enabled" envconfig:"ENABLED"`
	Brokers []string `json:"brokers" envconfig:"BROKERS"`
	Topic   string   `json:"topic" envconfig:"TOPIC"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			Workspace: "~/AgentLoom-Workspace",
			DataDir:   "~/.agentloom",
		},
		Model: ModelConfig{
			Name:              "gpt-4o",
			MaxTokens:         8192,
			Temperature:       0.7,
			MaxToolIterations: 20,
		},
		Interactions: InteractionsConfig{
			TimeoutSeconds: 120,
			MaxConcurrent:  5,
			MaxDepth:       3,
		},
		Gateway: GatewayConfig{
			DefaultAgent: "assistant",
		},
		Mirror: MirrorConfig{
			Enabled: false,
			Topic:   "agentloom.events",
		},
	}
}
