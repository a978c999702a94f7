// Package config loads the build service configuration from YAML, .env and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults
const (
	DefaultListenAddr     = "0.0.0.0:8081"
	DefaultBranch         = "main"
	DefaultAppName        = "yessfish-flutter"
	DefaultBuildScript    = "/opt/yessfish-flutter-app/scripts/build-flutter-app.sh"
	DefaultLogFile        = "/var/log/yessfish-flutter-builds/webhook.log"
	DefaultBuildLogDir    = "/var/log/yessfish-flutter-builds/builds"
	DefaultDescriptorsDir = "descriptors"
	DefaultDescriptor     = "release"
	DefaultBuildTimeout   = 30 * time.Minute
	DefaultMaxBodyBytes   = 25 << 20
)

// Config is the complete service configuration
type Config struct {
	Server      ServerConfig  `yaml:"server"`
	Webhook     WebhookConfig `yaml:"webhook"`
	Build       BuildConfig   `yaml:"build"`
	Log         LogConfig     `yaml:"log"`
	AppName     string        `yaml:"app_name" env:"YESSFISH_APP_NAME"`
	Descriptors string        `yaml:"descriptors_dir" env:"YESSFISH_DESCRIPTORS_DIR"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr" env:"YESSFISH_LISTEN_ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"YESSFISH_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"YESSFISH_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"YESSFISH_SHUTDOWN_TIMEOUT"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" env:"YESSFISH_MAX_BODY_BYTES"`
}

// WebhookConfig holds push webhook settings
type WebhookConfig struct {
	Secret    string  `yaml:"secret" env:"YESSFISH_WEBHOOK_SECRET"`
	Branch    string  `yaml:"branch" env:"YESSFISH_BRANCH"`
	RateLimit float64 `yaml:"rate_limit" env:"YESSFISH_RATE_LIMIT"` // deliveries per second per client
	RateBurst int     `yaml:"rate_burst" env:"YESSFISH_RATE_BURST"`
}

// BuildConfig holds build execution settings
type BuildConfig struct {
	Script       string        `yaml:"script" env:"YESSFISH_BUILD_SCRIPT"`
	WorkingDir   string        `yaml:"working_dir" env:"YESSFISH_WORKING_DIR"`
	Descriptor   string        `yaml:"descriptor" env:"YESSFISH_DESCRIPTOR"`
	ArtifactsDir string        `yaml:"artifacts_dir" env:"YESSFISH_ARTIFACTS_DIR"`
	LogDir       string        `yaml:"log_dir" env:"YESSFISH_BUILD_LOG_DIR"`
	Timeout      time.Duration `yaml:"timeout" env:"YESSFISH_BUILD_TIMEOUT"`
	Workers      int           `yaml:"workers" env:"YESSFISH_BUILD_WORKERS"`
	QueueSize    int           `yaml:"queue_size" env:"YESSFISH_BUILD_QUEUE_SIZE"`
	HistorySize  int           `yaml:"history_size" env:"YESSFISH_BUILD_HISTORY"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `yaml:"level" env:"YESSFISH_LOG_LEVEL"`
	Format string `yaml:"format" env:"YESSFISH_LOG_FORMAT"`
	File   string `yaml:"file" env:"YESSFISH_LOG_FILE"`
}

// Default returns a configuration with every default applied and no secret
func Default() *Config {
	return &Config{
		AppName:     DefaultAppName,
		Descriptors: DefaultDescriptorsDir,
		Server: ServerConfig{
			ListenAddr:      DefaultListenAddr,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 2 * time.Minute,
			MaxBodyBytes:    DefaultMaxBodyBytes,
		},
		Webhook: WebhookConfig{
			Branch:    DefaultBranch,
			RateLimit: 1,
			RateBurst: 5,
		},
		Build: BuildConfig{
			Script:      DefaultBuildScript,
			Descriptor:  DefaultDescriptor,
			LogDir:      DefaultBuildLogDir,
			Timeout:     DefaultBuildTimeout,
			Workers:     1,
			QueueSize:   10,
			HistorySize: 100,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			File:   DefaultLogFile,
		},
	}
}

// LoadOptions selects the configuration sources
type LoadOptions struct {
	// File is an optional YAML config file
	File string
	// EnvFiles are .env files loaded before decoding the environment; missing files are skipped
	EnvFiles []string
	// RequireSecret fails the load when no webhook secret is configured
	RequireSecret bool
}

// Load builds a Config from defaults, the YAML file, .env files and the environment, in that order
func Load(opts LoadOptions) (*Config, error) {
	cfg := Default()

	if opts.File != "" {
		data, err := os.ReadFile(opts.File)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	for _, f := range opts.EnvFiles {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		// Existing environment variables win over .env entries
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}

	if opts.RequireSecret && strings.TrimSpace(cfg.Webhook.Secret) == "" {
		return nil, errors.New("invalid configuration: webhook secret is required (set YESSFISH_WEBHOOK_SECRET)")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	var problems []string

	if c.Server.ListenAddr == "" {
		problems = append(problems, "server.listen_addr must not be empty")
	}
	if c.Build.Script == "" {
		problems = append(problems, "build.script must not be empty")
	}
	if c.Build.Workers <= 0 {
		problems = append(problems, "build.workers must be positive")
	}
	if c.Build.QueueSize <= 0 {
		problems = append(problems, "build.queue_size must be positive")
	}
	if c.Build.HistorySize <= 0 {
		problems = append(problems, "build.history_size must be positive")
	}
	if c.Build.Timeout <= 0 {
		problems = append(problems, "build.timeout must be positive")
	}
	if c.Server.ShutdownTimeout <= 0 {
		problems = append(problems, "server.shutdown_timeout must be positive")
	}
	if c.Server.MaxBodyBytes <= 0 {
		problems = append(problems, "server.max_body_bytes must be positive")
	}
	if c.Webhook.RateLimit <= 0 || c.Webhook.RateBurst <= 0 {
		problems = append(problems, "webhook.rate_limit and webhook.rate_burst must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Port returns the port part of the listen address
func (c *Config) Port() string {
	addr := c.Server.ListenAddr
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[i+1:]
	}
	return addr
}
