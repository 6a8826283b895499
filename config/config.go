// Package config loads the travelmesh configuration from defaults, a .env
// file, an optional YAML file and the process environment, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Providers and session stores accepted by Validate.
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderMock      = "mock"

	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config is the runtime configuration of the travel assistant.
type Config struct {
	GoogleCloudProject  string `yaml:"google_cloud_project"`
	GoogleCloudLocation string `yaml:"google_cloud_location"`
	UseVertexAI         bool   `yaml:"use_vertexai"`
	GeminiAPIKey        string `yaml:"gemini_api_key"`

	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`

	SessionStore string `yaml:"session_store"`
	SQLitePath   string `yaml:"sqlite_path"`

	CloudLogging bool   `yaml:"cloud_logging"`
	LogLevel     string `yaml:"log_level"`
	LogFormat    string `yaml:"log_format"`

	HTTPAddr       string   `yaml:"http_addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxModelCalls  int      `yaml:"max_model_calls"`
	Streaming      bool     `yaml:"streaming"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		GoogleCloudLocation: "global",
		UseVertexAI:         true,
		Provider:            ProviderGemini,
		Model:               "gemini-2.5-flash",
		SessionStore:        StoreMemory,
		SQLitePath:          "travel.db",
		LogLevel:            "info",
		LogFormat:           "text",
		HTTPAddr:            ":8080",
		AllowedOrigins:      []string{"*"},
		MaxModelCalls:       20,
	}
}

// LoadOptions configures Load.
type LoadOptions struct {
	// EnvFile is loaded into the process environment when it exists.
	// Variables already set are kept.
	EnvFile string
	// LookupEnv reads the environment. Defaults to os.LookupEnv.
	LookupEnv func(key string) (string, bool)
}

// Load builds a Config. path names an optional YAML file; an empty path
// skips it, a path that does not exist is an error.
func Load(path string, optFns ...func(o *LoadOptions)) (*Config, error) {
	opts := LoadOptions{
		EnvFile:   ".env",
		LookupEnv: os.LookupEnv,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := Default()

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", opts.EnvFile, err)
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, opts.LookupEnv); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	boolean := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: invalid boolean %q", key, v)
		}
		*dst = b
		return nil
	}

	integer := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", key, v)
		}
		*dst = n
		return nil
	}

	str("GOOGLE_CLOUD_PROJECT", &cfg.GoogleCloudProject)
	str("GOOGLE_CLOUD_LOCATION", &cfg.GoogleCloudLocation)
	str("GOOGLE_API_KEY", &cfg.GeminiAPIKey)
	str("TRAVEL_MODEL", &cfg.Model)
	str("TRAVEL_PROVIDER", &cfg.Provider)
	str("TRAVEL_SESSION_STORE", &cfg.SessionStore)
	str("TRAVEL_SQLITE_PATH", &cfg.SQLitePath)
	str("TRAVEL_LOG_LEVEL", &cfg.LogLevel)
	str("TRAVEL_LOG_FORMAT", &cfg.LogFormat)
	str("TRAVEL_HTTP_ADDR", &cfg.HTTPAddr)

	if v, ok := lookup("TRAVEL_ALLOWED_ORIGINS"); ok && v != "" {
		cfg.AllowedOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}

	return errors.Join(
		boolean("GOOGLE_GENAI_USE_VERTEXAI", &cfg.UseVertexAI),
		boolean("TRAVEL_CLOUD_LOGGING", &cfg.CloudLogging),
		boolean("TRAVEL_STREAMING", &cfg.Streaming),
		integer("TRAVEL_MAX_MODEL_CALLS", &cfg.MaxModelCalls),
	)
}

// Validate reports configuration that cannot work.
func (c *Config) Validate() error {
	var errs []error

	switch c.Provider {
	case ProviderGemini:
		if c.UseVertexAI && c.GoogleCloudProject == "" {
			errs = append(errs, errors.New("GOOGLE_CLOUD_PROJECT is required with Vertex AI"))
		}
		if !c.UseVertexAI && c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GOOGLE_API_KEY is required with the Gemini API backend"))
		}
	case ProviderAnthropic, ProviderOpenAI, ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider))
	}

	switch c.SessionStore {
	case StoreMemory:
	case StoreSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("sqlite_path is required with the sqlite store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown session store %q", c.SessionStore))
	}

	if c.CloudLogging && c.GoogleCloudProject == "" {
		errs = append(errs, errors.New("GOOGLE_CLOUD_PROJECT is required for cloud logging"))
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}

	if c.MaxModelCalls <= 0 {
		errs = append(errs, fmt.Errorf("max_model_calls must be positive, got %d", c.MaxModelCalls))
	}

	return errors.Join(errs...)
}
