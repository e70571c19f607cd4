package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server    ServerConfig    `koanf:"server"`
	Knowledge KnowledgeConfig `koanf:"knowledge"`
	Analyzer  AnalyzerConfig  `koanf:"analyzer"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// KnowledgeConfig locates the statute knowledge base document.
type KnowledgeConfig struct {
	Path string `koanf:"path"`
}

// AnalyzerConfig configures the external-model second opinion.
type AnalyzerConfig struct {
	Enabled           bool          `koanf:"enabled"`
	BaseURL           string        `koanf:"base_url"`
	APIKey            string        `koanf:"api_key"`
	Model             string        `koanf:"model"`
	Temperature       float32       `koanf:"temperature"`
	MaxTokens         int           `koanf:"max_tokens"`
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerMinute float64       `koanf:"requests_per_minute"`
	Burst             int           `koanf:"burst"`
}

type TelemetryConfig struct {
	Enabled      bool   `koanf:"enabled"`
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	ServiceName  string `koanf:"service_name"`
	SampleRate   float64 `koanf:"sample_rate"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `koanf:"requests_per_second"`
	BurstSize         int `koanf:"burst_size"`
}

// Load layers configuration: struct defaults, then the optional yaml
// file at path, then DPA_-prefixed environment variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			RequestTimeout:  60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Knowledge: KnowledgeConfig{
			Path: "configs/dpa_knowledge.json",
		},
		Analyzer: AnalyzerConfig{
			Enabled:           false,
			Model:             "mistral-large-latest",
			Temperature:       0.1,
			MaxTokens:         2048,
			Timeout:           30 * time.Second,
			RequestsPerMinute: 30,
			Burst:             3,
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
			ServiceName:  "dpa-engine",
			SampleRate:   1.0,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			BurstSize:         200,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// Config file is optional.
	if path != "" {
		_ = k.Load(file.Provider(path), yaml.Parser())
	}

	if err := k.Load(env.Provider("DPA_", ".", envKeyMapper(k.Keys())), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// envKeyMapper maps DPA_-prefixed environment variables onto the known
// config keys. Underscores are ambiguous between word separators and
// hierarchy ("rate_limit.requests_per_second"), so variables are matched
// against the flattened form of every known key instead of rewriting
// delimiters blindly.
func envKeyMapper(keys []string) func(string) string {
	byFlat := make(map[string]string, len(keys))
	for _, key := range keys {
		byFlat[strings.ReplaceAll(key, ".", "_")] = key
	}
	return func(s string) string {
		flat := strings.ToLower(strings.TrimPrefix(s, "DPA_"))
		if key, ok := byFlat[flat]; ok {
			return key
		}
		return flat
	}
}
