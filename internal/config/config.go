// Package config loads and validates the tripline.yml project file.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const FileName = "tripline.yml"

type Server struct {
	Addr      string `yaml:"addr"`
	BasePath  string `yaml:"base_path"`
	JWTSecret string `yaml:"jwt_secret"`
}

type AI struct {
	APIKey       string  `yaml:"api_key"`
	BaseURL      string  `yaml:"base_url"`
	DefaultModel string  `yaml:"default_model"`
	TimeoutMs    int     `yaml:"timeout_ms"`
	Temperature  float64 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
}

type Config struct {
	Server Server `yaml:"server"`
	AI     AI     `yaml:"ai"`
}

// Default returns the built-in configuration. The AI api_key has no
// default and must come from the file or the TRIPLINE_AI_API_KEY env.
func Default() Config {
	return Config{
		Server: Server{
			Addr:     "127.0.0.1:8787",
			BasePath: "/api",
		},
		AI: AI{
			BaseURL:      "https://api.groq.com/openai/v1",
			DefaultModel: "openai/gpt-oss-20b",
			TimeoutMs:    30000,
			Temperature:  0.7,
			MaxTokens:    4096,
		},
	}
}

func FromYAML(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", FileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads path if it exists, otherwise returns defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, err
	}
	return FromYAML(data)
}

func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr must not be empty")
	}
	if c.AI.BaseURL == "" {
		return errors.New("ai.base_url must not be empty")
	}
	if c.AI.DefaultModel == "" {
		return errors.New("ai.default_model must not be empty")
	}
	if c.AI.TimeoutMs < 0 {
		return errors.New("ai.timeout_ms must not be negative")
	}
	return nil
}

const defaultTemplate = `# tripline project configuration
server:
  addr: 127.0.0.1:8787
  base_path: /api
  # jwt_secret: change-me

ai:
  # api_key: set here or via TRIPLINE_AI_API_KEY
  base_url: https://api.groq.com/openai/v1
  default_model: openai/gpt-oss-20b
  timeout_ms: 30000
  temperature: 0.7
  max_tokens: 4096
`

// WriteDefault writes the commented template to path. It refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	return os.WriteFile(path, []byte(defaultTemplate), 0o644)
}
