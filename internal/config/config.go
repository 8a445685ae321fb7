package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/haricheung/assignment-helper/internal/auditlog"
	"github.com/haricheung/assignment-helper/internal/llm"
)

// Environment variables read by Load.
const (
	EnvAPIKey      = "OPENAI_API_KEY"
	EnvBaseURL     = "OPENAI_BASE_URL"
	EnvModel       = "SAH_MODEL"
	EnvTemperature = "SAH_TEMPERATURE"
	EnvMaxTokens   = "SAH_MAX_TOKENS"
	EnvLogFile     = "SAH_LOG_FILE"
	EnvWorkDir     = "SAH_WORKDIR"
	EnvAddr        = "SAH_ADDR"
	EnvWriteFiles  = "SAH_WRITE_FILES"
)

const (
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 1200
	DefaultAddr        = ":8000"
)

// Config is everything the assistant needs at startup.
type Config struct {
	LLM       llm.Config `yaml:"llm"`
	MaxTokens int        `yaml:"max_tokens"`
	LogFile   string     `yaml:"log_file"`
	WorkDir   string     `yaml:"work_dir"`
	Server    Server     `yaml:"server"`
}

// Server configures `sah serve`.
type Server struct {
	Addr       string `yaml:"addr"`
	WriteFiles bool   `yaml:"write_files"`
}

// Default returns the built-in configuration. It has no API key.
func Default() Config {
	return Config{
		LLM: llm.Config{
			BaseURL:     llm.DefaultBaseURL,
			Model:       llm.DefaultModel,
			Temperature: DefaultTemperature,
		},
		MaxTokens: DefaultMaxTokens,
		LogFile:   auditlog.DefaultPath,
		WorkDir:   ".",
		Server:    Server{Addr: DefaultAddr},
	}
}

// Load resolves the configuration: defaults, then the YAML file at path (if
// path is non-empty), then environment variables looked up through getenv.
// ${VAR} references inside the file are expanded through getenv as well.
// A nil getenv means os.Getenv.
//
// Expectations:
//   - Returns Default() when path is empty and getenv yields nothing
//   - File values override defaults; keys absent from the file keep their defaults
//   - Environment values override file values
//   - Returns an error when the file is missing or not valid YAML
//   - Returns an error for a non-numeric SAH_TEMPERATURE or SAH_MAX_TOKENS
//   - Returns an error when max_tokens is not positive or temperature is outside [0, 2]
//   - Never fails on a missing API key; the gateway reports that
func Load(path string, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		expanded := os.Expand(string(data), getenv)
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str(EnvAPIKey, &cfg.LLM.APIKey)
	str(EnvBaseURL, &cfg.LLM.BaseURL)
	str(EnvModel, &cfg.LLM.Model)
	str(EnvLogFile, &cfg.LogFile)
	str(EnvWorkDir, &cfg.WorkDir)
	str(EnvAddr, &cfg.Server.Addr)

	if v := strings.TrimSpace(getenv(EnvTemperature)); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvTemperature, err)
		}
		cfg.LLM.Temperature = f
	}
	if v := strings.TrimSpace(getenv(EnvMaxTokens)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvMaxTokens, err)
		}
		cfg.MaxTokens = n
	}
	if v := strings.TrimSpace(getenv(EnvWriteFiles)); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvWriteFiles, err)
		}
		cfg.Server.WriteFiles = b
	}
	return nil
}

// Validate checks value ranges. Credentials are not checked here.
func (c Config) Validate() error {
	if c.MaxTokens <= 0 {
		return fmt.Errorf("config: max_tokens must be positive, got %d", c.MaxTokens)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("config: temperature must be within [0, 2], got %g", c.LLM.Temperature)
	}
	return nil
}

// LLMConfig returns the explicit gateway configuration.
func (c Config) LLMConfig() llm.Config {
	return c.LLM
}
