package courtflow

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML configs can use values like "30s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// DecisionConfig configures the routing decision service.
type DecisionConfig struct {
	Endpoint   string `yaml:"endpoint"`
	APIKey     string `yaml:"api_key"`
	Deployment string `yaml:"deployment"`
	APIVersion string `yaml:"api_version"`
}

// Configured reports whether the decision service has the required fields.
func (c DecisionConfig) Configured() bool {
	return c.Endpoint != "" && c.APIKey != "" && c.Deployment != ""
}

// AgentConfig configures one remote agent endpoint. An empty URL selects
// mock mode for that stage.
type AgentConfig struct {
	URL string `yaml:"url"`
}

// Config carries everything the engine and its nodes need. Stage endpoints
// are optional; their absence is not an error.
type Config struct {
	Decision    DecisionConfig `yaml:"decision"`
	StatsAgent  AgentConfig    `yaml:"stats_agent"`
	MediaAgent  AgentConfig    `yaml:"media_agent"`
	AgentAPIKey string         `yaml:"agent_api_key"`

	// AgentTimeout bounds each agent call; AgentConnectTimeout bounds
	// connection establishment within it.
	AgentTimeout        Duration `yaml:"agent_timeout"`
	AgentConnectTimeout Duration `yaml:"agent_connect_timeout"`

	// JoinTimeout bounds the whole parallel both-agents join.
	JoinTimeout Duration `yaml:"join_timeout"`
}

// applyDefaults fills zero-valued timeouts.
func (c *Config) applyDefaults() {
	if c.AgentTimeout <= 0 {
		c.AgentTimeout = Duration(60 * time.Second)
	}
	if c.AgentConnectTimeout <= 0 {
		c.AgentConnectTimeout = Duration(10 * time.Second)
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = Duration(DefaultJoinTimeout)
	}
}

// ConfigFromEnv builds a Config from the environment. Presence is the only
// validation performed here; a missing decision service or agent endpoint
// selects fallback/mock behavior rather than failing.
func ConfigFromEnv() *Config {
	cfg := &Config{
		Decision: DecisionConfig{
			Endpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
			APIKey:     os.Getenv("AZURE_OPENAI_API_KEY"),
			Deployment: os.Getenv("AZURE_OPENAI_DEPLOYMENT_NAME"),
			APIVersion: os.Getenv("AZURE_OPENAI_API_VERSION"),
		},
		StatsAgent:  AgentConfig{URL: os.Getenv("ELASTIC_STATS_AGENT_URL")},
		MediaAgent:  AgentConfig{URL: os.Getenv("ELASTIC_MEDIA_AGENT_URL")},
		AgentAPIKey: os.Getenv("ELASTIC_API_KEY"),
	}
	cfg.applyDefaults()
	return cfg
}

// LoadConfigFile loads a Config from a YAML file and applies defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}
