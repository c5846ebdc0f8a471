package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

type Config struct {
	Server  ServerConfig
	Catalog CatalogConfig
	Backend BackendConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port           int
	AllowedOrigins string // comma-separated
}

type CatalogConfig struct {
	Path     string
	Table    string
	TopLimit int
}

type BackendConfig struct {
	Provider    string
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     string
	APIKey      string
}

type LogConfig struct {
	Level string
}

// Origins splits AllowedOrigins into trimmed, non-empty entries.
func (s ServerConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(s.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// TimeoutDuration parses Timeout. An empty value means no timeout.
func (b BackendConfig) TimeoutDuration() (time.Duration, error) {
	if b.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(b.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid backend.timeout %q: %w", b.Timeout, err)
	}
	return d, nil
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:           5001,
			AllowedOrigins: "http://localhost:3000,http://127.0.0.1:3000",
		},
		Catalog: CatalogConfig{
			Path:     "all_book_data.csv",
			Table:    "books",
			TopLimit: 10,
		},
		Backend: BackendConfig{
			Provider:    ProviderOpenAI,
			Temperature: 0.7,
			Timeout:     "60s",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration for serving: defaults, then the JSON config file,
// then BOOKTALK_* environment variables (a .env file in the working directory
// is loaded first and never overrides variables already set). It fails when
// the selected provider needs an API key and none is available.
func Load() (Config, error) {
	cfg, err := LoadClient()
	if err != nil {
		return Config{}, err
	}
	if err := validate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadClient is Load without the secret and provider checks, for commands
// that only talk to a running server.
func LoadClient() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "[WARN] could not load .env: %v\n", err)
	}
	return loadWith(openSettings(configFilePath()))
}

func loadWith(f *settingsFile) (Config, error) {
	cfg := defaults()

	if err := applySettings(&cfg, f); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// providerKeyEnv names the conventional variable each SDK reads its key
// from. It is consulted when BOOKTALK_API_KEY is unset.
var providerKeyEnv = map[string][]string{
	ProviderOpenAI: {"OPENAI_API_KEY"},
	ProviderGemini: {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

func validate(cfg *Config) error {
	cfg.Backend.Provider = strings.ToLower(strings.TrimSpace(cfg.Backend.Provider))

	switch cfg.Backend.Provider {
	case ProviderOpenAI, ProviderGemini:
	case ProviderOllama:
		return nil
	default:
		return fmt.Errorf("unknown backend.provider %q (want %s, %s or %s)",
			cfg.Backend.Provider, ProviderOpenAI, ProviderGemini, ProviderOllama)
	}

	if cfg.Backend.APIKey == "" {
		for _, env := range providerKeyEnv[cfg.Backend.Provider] {
			if v := os.Getenv(env); v != "" {
				cfg.Backend.APIKey = v
				break
			}
		}
	}
	if cfg.Backend.APIKey == "" {
		names := append([]string{"BOOKTALK_API_KEY"}, providerKeyEnv[cfg.Backend.Provider]...)
		return fmt.Errorf("missing required config: %s API key. Set it via environment variable %s",
			cfg.Backend.Provider, strings.Join(names, " or "))
	}

	if _, err := cfg.Backend.TimeoutDuration(); err != nil {
		return err
	}
	return nil
}
