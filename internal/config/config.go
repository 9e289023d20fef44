package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures the full configuration surface for the application.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Ultravox  UltravoxConfig  `mapstructure:"ultravox"`
	Twilio    TwilioConfig    `mapstructure:"twilio"`
	Retry     RetryConfig     `mapstructure:"retry"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Shutdown  ShutdownConfig  `mapstructure:"shutdown"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type HTTPConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type UltravoxConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type TwilioConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	AccountSID     string        `mapstructure:"account_sid"`
	AuthToken      string        `mapstructure:"auth_token"`
	FromNumber     string        `mapstructure:"from_number"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type RetryConfig struct {
	MaxRetries        int           `mapstructure:"max_retries"`
	BaseDelay         time.Duration `mapstructure:"base_delay"`
	MaxDelay          time.Duration `mapstructure:"max_delay"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"`
	Jitter            bool          `mapstructure:"jitter"`
}

type RateLimitConfig struct {
	Burst         int           `mapstructure:"burst"`
	PerMinute     int           `mapstructure:"per_minute"`
	PerHour       int           `mapstructure:"per_hour"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	ExemptPaths   []string      `mapstructure:"exempt_paths"`
}

type KafkaConfig struct {
	Brokers        []string      `mapstructure:"brokers"`
	ClientID       string        `mapstructure:"client_id"`
	CallEventTopic string        `mapstructure:"call_event_topic"`
	CommitInterval time.Duration `mapstructure:"commit_interval"`
}

type TelemetryConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	ServiceName     string        `mapstructure:"service_name"`
	SampleRatio     float64       `mapstructure:"sample_ratio"`
	TracingEnabled  bool          `mapstructure:"tracing_enabled"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type ShutdownConfig struct {
	DrainTimeout time.Duration `mapstructure:"drain_timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// Load reads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvPrefix("BRIDGE")
	v.SetEnvKeyReplacer(NewEnvReplacer())

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file: %w", err)
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal config: %w", err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

// NewEnvReplacer standardizes environment variable names.
func NewEnvReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_", "-", "_")
}

func applyDefaults(cfg *Config) {
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 3
	}
	if cfg.Retry.BaseDelay <= 0 {
		cfg.Retry.BaseDelay = time.Second
	}
	if cfg.Retry.MaxDelay <= 0 {
		cfg.Retry.MaxDelay = 16 * time.Second
	}
	if cfg.Retry.BackoffMultiplier < 1 {
		cfg.Retry.BackoffMultiplier = 2
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 5
	}
	if cfg.RateLimit.PerMinute <= 0 {
		cfg.RateLimit.PerMinute = 10
	}
	if cfg.RateLimit.PerHour <= 0 {
		cfg.RateLimit.PerHour = 100
	}
	if cfg.RateLimit.SweepInterval <= 0 {
		cfg.RateLimit.SweepInterval = 5 * time.Minute
	}
	if len(cfg.RateLimit.ExemptPaths) == 0 {
		cfg.RateLimit.ExemptPaths = []string{"/healthz", "/metrics", "/docs"}
	}
	if cfg.Ultravox.RequestTimeout <= 0 {
		cfg.Ultravox.RequestTimeout = 30 * time.Second
	}
	if cfg.Twilio.RequestTimeout <= 0 {
		cfg.Twilio.RequestTimeout = 30 * time.Second
	}
	if cfg.Shutdown.DrainTimeout <= 0 {
		cfg.Shutdown.DrainTimeout = 30 * time.Second
	}
	if cfg.Shutdown.PollInterval <= 0 {
		cfg.Shutdown.PollInterval = 250 * time.Millisecond
	}
}
