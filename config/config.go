// Package config loads the llmkit application configuration from YAML.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/quells-bot/llmkit/llm"
	"github.com/quells-bot/llmkit/wikipedia"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Bedrock   BedrockConfig     `yaml:"bedrock"`
	Wikipedia wikipedia.Options `yaml:"wikipedia"`
	Server    ServerConfig      `yaml:"server"`
	Log       LogConfig         `yaml:"log"`
}

// BedrockConfig mirrors llm.Config in YAML form.
type BedrockConfig struct {
	Model         string         `yaml:"model"`
	Provider      string         `yaml:"provider"` // overrides inference, e.g. "generic"
	Region        string         `yaml:"region"`
	Temperature   *float64       `yaml:"temperature"`
	MaxTokens     int            `yaml:"max_tokens"`
	TopP          *float64       `yaml:"top_p"`
	TopK          *int           `yaml:"top_k"`
	StopSequences []string       `yaml:"stop_sequences"`
	ModelKwargs   map[string]any `yaml:"model_kwargs"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr    string `yaml:"addr"`
	Metrics bool   `yaml:"metrics"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`  // zerolog level name
	Format string `yaml:"format"` // "console" or "json"
}

// Default returns the configuration used when no file is given.
func Default() Config {
	lc := llm.NewConfig()
	temp := *lc.Temperature
	return Config{
		Bedrock: BedrockConfig{
			Model:       string(lc.Model),
			Region:      lc.Region,
			Temperature: &temp,
			MaxTokens:   lc.MaxTokens,
		},
		Wikipedia: wikipedia.DefaultOptions(),
		Server:    ServerConfig{Addr: ":8080", Metrics: true},
		Log:       LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads path, expands ${VAR} references from the environment and
// decodes it over Default.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration
	if err != nil {
		return Config{}, fmt.Errorf("config: load: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML data over Default after environment expansion.
func Parse(data []byte) (Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}
	return cfg, nil
}

// Validate checks every section.
func (c Config) Validate() error {
	if _, err := c.Bedrock.LLMConfig(); err != nil {
		return fmt.Errorf("config: bedrock: %w", err)
	}
	if err := c.Wikipedia.Validate(); err != nil {
		return fmt.Errorf("config: wikipedia: %w", err)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("config: server: addr is required")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log: %w", err)
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("config: log: unknown format %q", c.Log.Format)
	}
	return nil
}

// LLMConfig converts the section to a validated llm.Config.
func (b BedrockConfig) LLMConfig() (llm.Config, error) {
	cfg := llm.NewConfig().WithModel(llm.Model(b.Model))
	if b.Provider != "" {
		p, err := llm.ParseProvider(b.Provider)
		if err != nil {
			return llm.Config{}, err
		}
		cfg = cfg.WithProvider(p)
	}
	if b.Region != "" {
		cfg = cfg.WithRegion(b.Region)
	}
	if b.Temperature != nil {
		cfg = cfg.WithTemperature(*b.Temperature)
	}
	if b.MaxTokens != 0 {
		cfg = cfg.WithMaxTokens(b.MaxTokens)
	}
	if b.TopP != nil {
		cfg = cfg.WithTopP(*b.TopP)
	}
	if b.TopK != nil {
		cfg = cfg.WithTopK(*b.TopK)
	}
	for _, s := range b.StopSequences {
		cfg = cfg.WithStopSequence(s)
	}
	if len(b.ModelKwargs) > 0 {
		cfg = cfg.WithModelKwargs(b.ModelKwargs)
	}
	if err := cfg.Validate(); err != nil {
		return llm.Config{}, err
	}
	return cfg, nil
}

// Logger builds a zerolog.Logger writing to w.
func (l LogConfig) Logger(w io.Writer) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if l.Level != "" {
		var err error
		if level, err = zerolog.ParseLevel(strings.ToLower(l.Level)); err != nil {
			return zerolog.Nop(), fmt.Errorf("config: log: %w", err)
		}
	}
	if l.Format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}
