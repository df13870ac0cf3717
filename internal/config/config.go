package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "30s" or "5m" decode.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Cache     CacheConfig     `yaml:"cache"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Chat      ChatConfig      `yaml:"chat"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	Host             string   `yaml:"host"`
	Port             int      `yaml:"port"`
	ReadTimeout      Duration `yaml:"read_timeout"`
	WriteTimeout     Duration `yaml:"write_timeout"`
	IdleTimeout      Duration `yaml:"idle_timeout"`
	GracefulShutdown Duration `yaml:"graceful_shutdown"`
	// StaticDir, when set, is served at / for the browser client.
	StaticDir string `yaml:"static_dir"`
}

type UpstreamConfig struct {
	BaseURL string   `yaml:"base_url"`
	APIKey  string   `yaml:"api_key"`
	Model   string   `yaml:"model"`
	Timeout Duration `yaml:"timeout"`
}

type CacheConfig struct {
	TTL           Duration `yaml:"ttl"`
	SweepInterval Duration `yaml:"sweep_interval"`
}

type RateLimitConfig struct {
	Window      Duration `yaml:"window"`
	MaxRequests int      `yaml:"max_requests"`
}

type ChatConfig struct {
	MaxOutputTokens int `yaml:"max_output_tokens"`
	MaxInputChars   int `yaml:"max_input_chars"`
	// BudgetProfile is a free-text label echoed in response metadata.
	BudgetProfile string `yaml:"budget_profile"`
}

type TelemetryConfig struct {
	LogLevel    string `yaml:"log_level"`
	MetricsPort int    `yaml:"metrics_port"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             3000,
			ReadTimeout:      Duration(30 * time.Second),
			WriteTimeout:     Duration(120 * time.Second),
			IdleTimeout:      Duration(120 * time.Second),
			GracefulShutdown: Duration(30 * time.Second),
			StaticDir:        "public",
		},
		Upstream: UpstreamConfig{
			BaseURL: "https://router.huggingface.co/v1",
			Model:   "swiss-ai/Apertus-8B-Instruct-2509:publicai",
			Timeout: Duration(60 * time.Second),
		},
		Cache: CacheConfig{
			TTL:           Duration(30 * time.Minute),
			SweepInterval: Duration(30 * time.Minute),
		},
		RateLimit: RateLimitConfig{
			Window:      Duration(time.Minute),
			MaxRequests: 6,
		},
		Chat: ChatConfig{
			MaxOutputTokens: 220,
			MaxInputChars:   1800,
			BudgetProfile:   "balanced",
		},
		Telemetry: TelemetryConfig{
			LogLevel:    "info",
			MetricsPort: 9090,
		},
	}
}
