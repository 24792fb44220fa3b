package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// DefaultModel is the generation model identity used when neither the file
	// nor the environment names one.
	DefaultModel = "qwen2.5-coder:7b"
	// DefaultMaxAttempts bounds generate+execute cycles per instruction.
	DefaultMaxAttempts = 3
	// DefaultSandboxImage is built from build/sandbox/Dockerfile and carries
	// every capability module.
	DefaultSandboxImage = "tta-sandbox:3.12"

	defaultOllamaURL = "http://127.0.0.1:11434"
)

// Config describes the process-wide configuration, constructed once at start-up
// from YAML, .env and environment variables, then passed down explicitly.
type Config struct {
	Version    string                    `mapstructure:"version"`
	Providers  map[string]ProviderConfig `mapstructure:"providers"`
	Models     map[string]ModelConfig    `mapstructure:"models"`
	Generation GenerationConfig          `mapstructure:"generation"`
	Retry      RetryConfig               `mapstructure:"retry"`
	Sandbox    SandboxConfig             `mapstructure:"sandbox"`
	Logging    LoggingConfig             `mapstructure:"logging"`
	Server     ServerConfig              `mapstructure:"server"`
	Telemetry  TelemetryConfig           `mapstructure:"telemetry"`
}

// ProviderConfig represents a generation service endpoint such as Ollama or an OpenAI-compatible gateway.
type ProviderConfig struct {
	Type    string        `mapstructure:"type"`     // ollama, openai, openrouter, vllm, lmstudio, custom
	BaseURL string        `mapstructure:"base_url"` // API base URL
	APIKey  string        `mapstructure:"api_key"`  // optional API key
	Timeout time.Duration `mapstructure:"timeout"`  // request timeout
}

// ModelConfig binds a logical route name to a provider entry and model parameters.
// An empty Model falls back to generation.model.
type ModelConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Default     bool    `mapstructure:"default"`
}

// GenerationConfig selects the route and model identity used for code generation.
type GenerationConfig struct {
	Route       string  `mapstructure:"route"` // logical model name, empty = default route
	Model       string  `mapstructure:"model"` // model identity, also read from OLLAMA_MODEL
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// RetryConfig controls the per-turn attempt budget.
type RetryConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
	// FeedbackErrors feeds the previous attempt's failure into the next request.
	// Off by default: retries are blind re-generations.
	FeedbackErrors bool `mapstructure:"feedback_errors"`
}

// SandboxConfig selects and tunes the executor backend.
type SandboxConfig struct {
	Backend     string       `mapstructure:"backend"`     // process or docker
	Interpreter string       `mapstructure:"interpreter"` // process backend interpreter binary
	WorkingDir  string       `mapstructure:"working_dir"` // empty = current directory
	Docker      DockerConfig `mapstructure:"docker"`
}

// DockerConfig tunes the container backend.
type DockerConfig struct {
	Image    string `mapstructure:"image"`
	Pull     bool   `mapstructure:"pull"`
	Network  bool   `mapstructure:"network"`
	MemoryMB int    `mapstructure:"memory_mb"`
}

// LoggingConfig controls logger behaviour.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console or json
}

// ServerConfig describes daemon settings.
type ServerConfig struct {
	Addr           string `mapstructure:"addr"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	Transport      string `mapstructure:"transport"` // connect or ndjson
}

// TelemetryConfig configures OTLP trace export.
type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// Load reads configuration from the provided path or looks for config.yaml in
// the working directory and ./configs. A missing default file is not an error.
// Environment variables override file values (prefix: TTA_, dots replaced with
// underscores); OLLAMA_MODEL also sets generation.model.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TTA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("generation.model", "TTA_GENERATION_MODEL", "OLLAMA_MODEL"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	} else {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyBuiltins()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults populates defaults for optional fields.
func setDefaults(v *viper.Viper) {
	v.SetDefault("generation.route", "")
	v.SetDefault("generation.model", DefaultModel)
	v.SetDefault("generation.temperature", 0.0)
	v.SetDefault("generation.max_tokens", 0)

	v.SetDefault("retry.max_attempts", DefaultMaxAttempts)
	v.SetDefault("retry.feedback_errors", false)

	v.SetDefault("sandbox.backend", "process")
	v.SetDefault("sandbox.interpreter", "python3")
	v.SetDefault("sandbox.working_dir", "")
	v.SetDefault("sandbox.docker.image", DefaultSandboxImage)
	v.SetDefault("sandbox.docker.pull", false)
	v.SetDefault("sandbox.docker.network", true)
	v.SetDefault("sandbox.docker.memory_mb", 512)

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "console")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.metrics_enabled", true)
	v.SetDefault("server.transport", "connect")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.insecure", false)
	v.SetDefault("telemetry.service_name", "tta")
	v.SetDefault("telemetry.sample_rate", 1.0)
}

// applyBuiltins fills in the local Ollama provider and a default route when
// the configuration names none, and resolves empty model identities.
func (c *Config) applyBuiltins() {
	if len(c.Providers) == 0 {
		c.Providers = map[string]ProviderConfig{
			"ollama": {Type: "ollama", BaseURL: defaultOllamaURL},
		}
	}
	if len(c.Models) == 0 {
		c.Models = map[string]ModelConfig{
			"default": {Provider: c.providerNames()[0], Default: true},
		}
	}
	for name, m := range c.Models {
		if strings.TrimSpace(m.Model) == "" {
			m.Model = c.Generation.Model
		}
		if len(c.Models) == 1 {
			m.Default = true
		}
		c.Models[name] = m
	}
}

func (c *Config) providerNames() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Attempts returns the configured attempt budget, falling back to the default.
func (c RetryConfig) Attempts() int {
	if c.MaxAttempts > 0 {
		return c.MaxAttempts
	}
	return DefaultMaxAttempts
}

// Validate performs sanity checks on configuration values.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return errors.New("at least one provider must be configured")
	}
	if len(c.Models) == 0 {
		return errors.New("at least one model must be defined")
	}

	for name, p := range c.Providers {
		switch p.Type {
		case "ollama", "openai", "openrouter", "vllm", "lmstudio", "custom":
		case "":
			return fmt.Errorf("provider %q must define type", name)
		default:
			return fmt.Errorf("provider %q has unknown type %q", name, p.Type)
		}
	}

	var defaultFound bool
	for name, m := range c.Models {
		if m.Provider == "" {
			return fmt.Errorf("model %q must reference provider", name)
		}
		if _, ok := c.Providers[m.Provider]; !ok {
			return fmt.Errorf("model %q references unknown provider %q", name, m.Provider)
		}
		if m.Temperature < 0 || m.Temperature > 2 {
			return fmt.Errorf("model %q temperature must be within [0,2]", name)
		}
		if m.MaxTokens < 0 {
			return fmt.Errorf("model %q max_tokens cannot be negative", name)
		}
		if m.Default {
			defaultFound = true
		}
	}
	if !defaultFound {
		return errors.New("at least one model should be marked as default")
	}

	if route := strings.TrimSpace(c.Generation.Route); route != "" {
		if _, ok := c.Models[route]; !ok {
			return fmt.Errorf("generation.route references unknown model %q", route)
		}
	}
	if strings.TrimSpace(c.Generation.Model) == "" {
		return errors.New("generation.model must not be empty")
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return errors.New("generation.temperature must be within [0,2]")
	}
	if c.Generation.MaxTokens < 0 {
		return errors.New("generation.max_tokens must be >= 0")
	}

	if c.Retry.MaxAttempts <= 0 {
		return errors.New("retry.max_attempts must be > 0")
	}

	switch strings.ToLower(strings.TrimSpace(c.Sandbox.Backend)) {
	case "", "process":
		if strings.TrimSpace(c.Sandbox.Interpreter) == "" {
			return errors.New("sandbox.interpreter must be set for the process backend")
		}
	case "docker":
		if strings.TrimSpace(c.Sandbox.Docker.Image) == "" {
			return errors.New("sandbox.docker.image must be set for the docker backend")
		}
	default:
		return fmt.Errorf("sandbox.backend must be one of process or docker, got %q", c.Sandbox.Backend)
	}
	if c.Sandbox.Docker.MemoryMB < 0 {
		return errors.New("sandbox.docker.memory_mb must be >= 0")
	}

	switch strings.ToLower(strings.TrimSpace(c.Server.Transport)) {
	case "", "connect", "ndjson":
	default:
		return fmt.Errorf("server.transport must be one of connect or ndjson, got %q", c.Server.Transport)
	}

	if c.Telemetry.Enabled && strings.TrimSpace(c.Telemetry.Endpoint) == "" {
		return errors.New("telemetry.endpoint must be set when telemetry.enabled is true")
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return errors.New("telemetry.sample_rate must be within [0,1]")
	}

	return nil
}
