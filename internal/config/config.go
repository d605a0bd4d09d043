package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/agent-command/subbot/internal/protocol"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the daemon looks for its config file.
const DefaultPath = "/etc/subbot/config.yaml"

const defaultMaxFloodCount = 100

type Config struct {
	Agent    AgentConfig    `yaml:"agent"`
	Discord  DiscordConfig  `yaml:"discord"`
	Control  ControlConfig  `yaml:"control"`
	Commands CommandsConfig `yaml:"commands"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type AgentConfig struct {
	Name string `yaml:"name"`
}

type DiscordConfig struct {
	Token    string         `yaml:"token"`
	Presence PresenceConfig `yaml:"presence"`
}

// PresenceConfig is the streaming status shown once the bot is ready.
type PresenceConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type ControlConfig struct {
	URL                string `yaml:"url"`
	DialTimeoutMs      int    `yaml:"dial_timeout_ms"`
	HandshakeTimeoutMs int    `yaml:"handshake_timeout_ms"`
	ReceiveTimeoutMs   int    `yaml:"receive_timeout_ms"`
	Reconnect          bool   `yaml:"reconnect"`
	ReconnectBackoffMs []int  `yaml:"reconnect_backoff_ms"`
	MaxReconnects      int    `yaml:"max_reconnects"`
}

type CommandsConfig struct {
	Framing         string `yaml:"framing"`
	MaxFloodCount   int    `yaml:"max_flood_count"`
	FloodIntervalMs int    `yaml:"flood_interval_ms"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// LoadConfig reads path, applies defaults and environment overrides, and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Keys whose zero value is meaningful are defaulted before unmarshalling.
	cfg := Config{Commands: CommandsConfig{MaxFloodCount: defaultMaxFloodCount}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyDefaults()

	// Optional environment overrides for secrets and endpoint.
	if envToken := os.Getenv("SUBBOT_DISCORD_TOKEN"); envToken != "" {
		cfg.Discord.Token = envToken
	}
	if envURL := os.Getenv("SUBBOT_CONTROL_URL"); envURL != "" {
		cfg.Control.URL = envURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Agent.Name == "" {
		c.Agent.Name = "subbot"
	}
	if c.Control.URL == "" {
		c.Control.URL = "ws://127.0.0.1:9999/"
	}
	if c.Control.DialTimeoutMs == 0 {
		c.Control.DialTimeoutMs = 10000
	}
	if len(c.Control.ReconnectBackoffMs) == 0 {
		c.Control.ReconnectBackoffMs = []int{250, 500, 1000, 2000, 5000}
	}
	if c.Commands.Framing == "" {
		c.Commands.Framing = protocol.FramingCanonical.String()
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks values that cannot be defaulted. The Discord token is
// checked separately by RequireToken since offline commands do not need it.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Control.URL, "ws://") && !strings.HasPrefix(c.Control.URL, "wss://") {
		return fmt.Errorf("control.url must be a ws:// or wss:// URL, got %q", c.Control.URL)
	}
	if c.Control.DialTimeoutMs < 0 || c.Control.HandshakeTimeoutMs < 0 || c.Control.ReceiveTimeoutMs < 0 {
		return fmt.Errorf("control timeouts must not be negative")
	}
	for _, ms := range c.Control.ReconnectBackoffMs {
		if ms <= 0 {
			return fmt.Errorf("control.reconnect_backoff_ms entries must be > 0")
		}
	}
	if c.Control.MaxReconnects < 0 {
		return fmt.Errorf("control.max_reconnects must not be negative")
	}
	if _, err := protocol.ParseFraming(c.Commands.Framing); err != nil {
		return fmt.Errorf("commands.framing: %w", err)
	}
	if c.Commands.MaxFloodCount < 0 {
		return fmt.Errorf("commands.max_flood_count must not be negative")
	}
	if c.Commands.FloodIntervalMs < 0 {
		return fmt.Errorf("commands.flood_interval_ms must not be negative")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// RequireToken fails when no Discord token is configured.
func (c *Config) RequireToken() error {
	if strings.TrimSpace(c.Discord.Token) == "" {
		return fmt.Errorf("discord.token is required (or set SUBBOT_DISCORD_TOKEN)")
	}
	return nil
}

func (c *Config) Framing() protocol.Framing {
	f, _ := protocol.ParseFraming(c.Commands.Framing)
	return f
}

func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.Control.DialTimeoutMs) * time.Millisecond
}

func (c *Config) HandshakeTimeout() time.Duration {
	return time.Duration(c.Control.HandshakeTimeoutMs) * time.Millisecond
}

func (c *Config) ReceiveTimeout() time.Duration {
	return time.Duration(c.Control.ReceiveTimeoutMs) * time.Millisecond
}

func (c *Config) FloodInterval() time.Duration {
	return time.Duration(c.Commands.FloodIntervalMs) * time.Millisecond
}

func (c *Config) ReconnectBackoff() []time.Duration {
	out := make([]time.Duration, len(c.Control.ReconnectBackoffMs))
	for i, ms := range c.Control.ReconnectBackoffMs {
		out[i] = time.Duration(ms) * time.Millisecond
	}
	return out
}
