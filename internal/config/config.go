// Package config loads the YAML configuration file with environment
// variable expansion, so API keys can be referenced as ${OPENAI_API_KEY}
// instead of living in the file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "90s"
// or "2m". Bare integers are taken as seconds.
type Duration time.Duration

// Std returns the standard library duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler. A bare YAML integer decodes
// into a Go string too, so dispatch on the node tag rather than trying
// decodes in order.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Tag == "!!int" {
		var secs int64
		if err := value.Decode(&secs); err != nil {
			return fmt.Errorf("bad duration value %q", value.Value)
		}
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("bad duration value %q", value.Value)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("bad duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the whole application configuration.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Browser BrowserConfig `yaml:"browser"`
	Agent   AgentConfig   `yaml:"agent"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
}

// EngineConfig selects and configures the deciding model.
type EngineConfig struct {
	// Provider is "openai" or "anthropic". OpenAI-compatible backends use
	// provider openai plus a base_url.
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
}

// BrowserConfig tunes the browser session and page-state extraction.
type BrowserConfig struct {
	Headless          bool     `yaml:"headless"`
	StrictViewport    bool     `yaml:"strict_viewport"`
	ViewportExpansion int      `yaml:"viewport_expansion"`
	Highlight         bool     `yaml:"highlight"`
	ActionTimeout     Duration `yaml:"action_timeout"`
}

// AgentConfig bounds the decision loop.
type AgentConfig struct {
	MaxSteps     int      `yaml:"max_steps"`
	HistoryLimit int      `yaml:"history_limit"`
	StepTimeout  Duration `yaml:"step_timeout"`
	Screenshot   bool     `yaml:"screenshot"`
}

// ServerConfig configures the task-submission HTTP server.
type ServerConfig struct {
	Addr   string `yaml:"addr"`
	DBPath string `yaml:"db_path"`
}

// LogConfig configures logging output.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Development switches to the human-readable console encoder.
	Development bool `yaml:"development"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			Provider: "openai",
			APIKey:   os.Getenv("OPENAI_API_KEY"),
		},
		Browser: BrowserConfig{
			Headless:      true,
			ActionTimeout: Duration(10 * time.Second),
		},
		Agent: AgentConfig{
			MaxSteps:     25,
			HistoryLimit: 10,
			StepTimeout:  Duration(90 * time.Second),
			Screenshot:   true,
		},
		Server: ServerConfig{
			Addr:   ":8700",
			DBPath: "./data/autoweb.db",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path, expands ${VAR} references against the environment, and
// unmarshals over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := LoadBytes(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadBytes parses YAML bytes over cfg with env expansion.
func LoadBytes(data []byte, cfg *Config) error {
	expanded := os.ExpandEnv(string(data))
	return yaml.Unmarshal([]byte(expanded), cfg)
}

// Validate checks the parts that cannot default sensibly.
func (c Config) Validate() error {
	switch c.Engine.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unknown engine provider %q", c.Engine.Provider)
	}
	if c.Engine.APIKey == "" {
		return fmt.Errorf("engine api_key is empty; set it in the config or the environment")
	}
	if c.Engine.Model == "" {
		return fmt.Errorf("engine model is empty")
	}
	return nil
}
