package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "BOOKTALK_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.allowed_origins", typ: kString, env: "BOOKTALK_SERVER_ALLOWED_ORIGINS",
		apply:   func(cfg *Config, v any) { cfg.Server.AllowedOrigins = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.AllowedOrigins },
	},
	{
		key: "catalog.path", typ: kString, env: "BOOKTALK_CATALOG_PATH",
		apply:   func(cfg *Config, v any) { cfg.Catalog.Path = v.(string) },
		extract: func(cfg Config) any { return cfg.Catalog.Path },
	},
	{
		key: "catalog.table", typ: kString, env: "BOOKTALK_CATALOG_TABLE",
		apply:   func(cfg *Config, v any) { cfg.Catalog.Table = v.(string) },
		extract: func(cfg Config) any { return cfg.Catalog.Table },
	},
	{
		key: "catalog.top_limit", typ: kInt, env: "BOOKTALK_CATALOG_TOP_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Catalog.TopLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Catalog.TopLimit },
	},
	{
		key: "backend.provider", typ: kString, env: "BOOKTALK_BACKEND_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.Backend.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.Backend.Provider },
	},
	{
		key: "backend.base_url", typ: kString, env: "BOOKTALK_BACKEND_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Backend.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Backend.BaseURL },
	},
	{
		key: "backend.model", typ: kString, env: "BOOKTALK_BACKEND_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Backend.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Backend.Model },
	},
	{
		key: "backend.temperature", typ: kFloat, env: "BOOKTALK_BACKEND_TEMPERATURE",
		apply:   func(cfg *Config, v any) { cfg.Backend.Temperature = v.(float64) },
		extract: func(cfg Config) any { return cfg.Backend.Temperature },
	},
	{
		key: "backend.timeout", typ: kString, env: "BOOKTALK_BACKEND_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Backend.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Backend.Timeout },
	},
	{
		key: "backend.api_key", typ: kString, env: "BOOKTALK_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Backend.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Backend.APIKey },
	},
	{
		key: "log.level", typ: kString, env: "BOOKTALK_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

// parse converts raw text into the Go type apply expects.
func (s keySpec) parse(raw string) (any, error) {
	switch s.typ {
	case kInt:
		return strconv.Atoi(raw)
	case kFloat:
		return strconv.ParseFloat(raw, 64)
	default:
		return raw, nil
	}
}

func applySettings(cfg *Config, f *settingsFile) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		raw, ok := f.raw(s.key)
		if !ok {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			return fmt.Errorf("config file %s: invalid %s %q: %w", f.path, s.key, raw, err)
		}
		s.apply(cfg, v)
	}
	return nil
}

// applyEnvOverrides lets BOOKTALK_* variables win over the file. A value
// that does not parse is reported and skipped.
func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] ignoring %s=%q: %v\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
