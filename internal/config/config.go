package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the relay. It is built once at
// startup and treated as read-only afterwards; components receive the
// section they need instead of reading the environment themselves.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Store    StoreConfig    `yaml:"store"`
	LogLevel string         `yaml:"logLevel" env:"LOG_LEVEL"`
}

type ServerConfig struct {
	Port int `yaml:"port" env:"PORT"`
}

type WhatsAppConfig struct {
	VerifyToken   string `yaml:"verifyToken" env:"WHATSAPP_VERIFY_TOKEN"`
	AccessToken   string `yaml:"accessToken" env:"WHATSAPP_TOKEN"`
	PhoneNumberID string `yaml:"phoneNumberId" env:"WHATSAPP_PHONE_NUMBER_ID"`
	AppSecret     string `yaml:"appSecret" env:"WHATSAPP_APP_SECRET"`
	SendReply     bool   `yaml:"sendReply" env:"WHATSAPP_SEND_REPLY"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey" env:"OPENAI_API_KEY"`
	APIBase string `yaml:"apiBase" env:"OPENAI_API_BASE"`
	Model   string `yaml:"model" env:"OPENAI_MODEL"`
}

// StoreConfig selects the persistence backend: Supabase REST when a URL is
// configured, a local SQLite file otherwise, or none at all.
type StoreConfig struct {
	SupabaseURL string `yaml:"supabaseUrl" env:"SUPABASE_URL"`
	SupabaseKey string `yaml:"supabaseKey" env:"SUPABASE_KEY"`
	Table       string `yaml:"table" env:"STORE_TABLE"`
	SQLitePath  string `yaml:"sqlitePath" env:"SQLITE_PATH"`
}

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 3000,
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4.1-mini",
		},
		Store: StoreConfig{
			Table: "messages",
		},
		LogLevel: "info",
	}
}

// Load builds the configuration: defaults, then the optional YAML file at
// path (with ${VAR} expansion), then environment variables on top.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
		}
		data = []byte(ExpandEnvVars(string(data)))
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("cannot parse environment: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if cfg.OpenAI.Model == "" {
		errs = append(errs, "openai.model must not be empty")
	}
	if cfg.Store.SupabaseURL != "" && cfg.Store.SupabaseKey == "" {
		errs = append(errs, "store.supabaseKey is required when store.supabaseUrl is set")
	}
	if cfg.Store.SupabaseURL != "" && cfg.Store.Table == "" {
		errs = append(errs, "store.table must not be empty")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "logLevel must be one of: debug, info, warn, error")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
