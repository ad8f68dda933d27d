package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Model provider configurations
	OpenAI  OpenAIConfig
	Bedrock BedrockConfig

	// External service configurations
	Exchange ExchangeConfig
	Engine   EngineConfig
	Search   SearchConfig

	// Auth secrets for trigger-class entry points
	Auth AuthConfig

	// Guardrail ceilings applied to every agent run
	Guardrails GuardrailConfig

	// Runner configuration
	Runner RunnerConfig

	// Run tracker configuration
	Tracker TrackerConfig

	// Fleet catalog
	Fleet FleetConfig

	// HTTP configuration
	HTTP HTTPConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// OpenAIConfig holds OpenAI API configuration
type OpenAIConfig struct {
	APIKey string
}

// BedrockConfig holds AWS Bedrock configuration
type BedrockConfig struct {
	Region           string
	AnthropicVersion string
}

// ExchangeConfig holds prediction-market venue API configuration
type ExchangeConfig struct {
	BaseURL string
	APIKey  string
}

// EngineConfig holds durable workflow engine configuration
type EngineConfig struct {
	BaseURL          string
	Token            string
	ListenerWorkflow string
	RunWorkflow      string
}

// SearchConfig holds web search API configuration
type SearchConfig struct {
	BaseURL string
	APIKey  string
}

// AuthConfig holds the two independent bearer secrets. Cron-originated
// triggers and internal service-to-service calls are not interchangeable.
type AuthConfig struct {
	CronSecret    string
	ServiceSecret string
}

// GuardrailConfig holds hard per-run ceilings
type GuardrailConfig struct {
	MaxTokensPerCall int
	MaxToolCalls     int
	MaxTradesPerRun  int
}

// RunnerConfig holds agent runner configuration
type RunnerConfig struct {
	MaxSteps       int
	MarketLimit    int
	RecentTrades   int
	TimeoutSeconds int
}

// TrackerConfig holds run tracker configuration
type TrackerConfig struct {
	TTLMinutes int
}

// FleetConfig holds the agent catalog location
type FleetConfig struct {
	Path string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Port               int
	CORSAllowedOrigins string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		OpenAI: OpenAIConfig{
			APIKey: os.Getenv("OPENAI_API_KEY"),
		},
		Bedrock: BedrockConfig{
			Region:           os.Getenv("AWS_REGION"),
			AnthropicVersion: getEnvString("BEDROCK_ANTHROPIC_VERSION", "bedrock-2023-05-31"),
		},
		Exchange: ExchangeConfig{
			BaseURL: getEnvString("EXCHANGE_BASE_URL", "https://api.exchange.local"),
			APIKey:  os.Getenv("EXCHANGE_API_KEY"),
		},
		Engine: EngineConfig{
			BaseURL:          getEnvString("ENGINE_BASE_URL", "http://localhost:8288"),
			Token:            os.Getenv("ENGINE_TOKEN"),
			ListenerWorkflow: getEnvString("ENGINE_LISTENER_WORKFLOW", "agent-listener"),
			RunWorkflow:      getEnvString("ENGINE_RUN_WORKFLOW", "agent-run"),
		},
		Search: SearchConfig{
			BaseURL: getEnvString("SEARCH_BASE_URL", "https://api.search.local"),
			APIKey:  os.Getenv("SEARCH_API_KEY"),
		},
		Auth: AuthConfig{
			CronSecret:    os.Getenv("CRON_SECRET"),
			ServiceSecret: os.Getenv("SERVICE_SECRET"),
		},
		Guardrails: GuardrailConfig{
			MaxTokensPerCall: getEnvInt("GUARDRAIL_MAX_TOKENS_PER_CALL", 4096),
			MaxToolCalls:     getEnvInt("GUARDRAIL_MAX_TOOL_CALLS", 20),
			MaxTradesPerRun:  getEnvInt("GUARDRAIL_MAX_TRADES_PER_RUN", 3),
		},
		Runner: RunnerConfig{
			MaxSteps:       getEnvInt("RUNNER_MAX_STEPS", 10),
			MarketLimit:    getEnvInt("RUNNER_MARKET_LIMIT", 10),
			RecentTrades:   getEnvInt("RUNNER_RECENT_TRADES", 5),
			TimeoutSeconds: getEnvInt("RUNNER_TIMEOUT_SECONDS", 300),
		},
		Tracker: TrackerConfig{
			TTLMinutes: getEnvInt("TRACKER_TTL_MINUTES", 30),
		},
		Fleet: FleetConfig{
			Path: getEnvString("FLEET_CONFIG_PATH", "fleet.yaml"),
		},
		HTTP: HTTPConfig{
			Port:               getEnvInt("PORT", 8080),
			CORSAllowedOrigins: getEnvString("CORS_ALLOWED_ORIGINS", "*"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Guardrails.MaxTokensPerCall <= 0 {
		return fmt.Errorf("GUARDRAIL_MAX_TOKENS_PER_CALL must be positive, got %d", c.Guardrails.MaxTokensPerCall)
	}
	if c.Guardrails.MaxToolCalls <= 0 {
		return fmt.Errorf("GUARDRAIL_MAX_TOOL_CALLS must be positive, got %d", c.Guardrails.MaxToolCalls)
	}
	if c.Guardrails.MaxTradesPerRun <= 0 {
		return fmt.Errorf("GUARDRAIL_MAX_TRADES_PER_RUN must be positive, got %d", c.Guardrails.MaxTradesPerRun)
	}
	if c.Runner.MaxSteps <= 0 {
		return fmt.Errorf("RUNNER_MAX_STEPS must be positive, got %d", c.Runner.MaxSteps)
	}
	if c.Tracker.TTLMinutes <= 0 {
		return fmt.Errorf("TRACKER_TTL_MINUTES must be positive, got %d", c.Tracker.TTLMinutes)
	}
	return nil
}

// HasDatabase returns true if database configuration is available
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// HasOpenAI returns true if OpenAI configuration is available
func (c *Config) HasOpenAI() bool {
	return c.OpenAI.APIKey != ""
}

// HasBedrock returns true if Bedrock configuration is available
func (c *Config) HasBedrock() bool {
	return c.Bedrock.Region != ""
}

// HasEngine returns true if the durable engine is configured
func (c *Config) HasEngine() bool {
	return c.Engine.BaseURL != ""
}

func getEnvString(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

// NewTestConfig creates a Config with default values for testing
func NewTestConfig() *Config {
	return &Config{
		Database: DatabaseConfig{URL: ""},
		OpenAI:   OpenAIConfig{APIKey: ""},
		Bedrock: BedrockConfig{
			Region:           "",
			AnthropicVersion: "bedrock-2023-05-31",
		},
		Exchange: ExchangeConfig{
			BaseURL: "https://api.exchange.local",
		},
		Engine: EngineConfig{
			BaseURL:          "http://localhost:8288",
			ListenerWorkflow: "agent-listener",
			RunWorkflow:      "agent-run",
		},
		Search: SearchConfig{
			BaseURL: "https://api.search.local",
		},
		Auth: AuthConfig{
			CronSecret:    "test-cron-secret",
			ServiceSecret: "test-service-secret",
		},
		Guardrails: GuardrailConfig{
			MaxTokensPerCall: 4096,
			MaxToolCalls:     20,
			MaxTradesPerRun:  3,
		},
		Runner: RunnerConfig{
			MaxSteps:       10,
			MarketLimit:    10,
			RecentTrades:   5,
			TimeoutSeconds: 300,
		},
		Tracker: TrackerConfig{TTLMinutes: 30},
		Fleet:   FleetConfig{Path: "fleet.yaml"},
		HTTP: HTTPConfig{
			Port:               8080,
			CORSAllowedOrigins: "*",
		},
	}
}
