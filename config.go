package infill

import (
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/BurntSushi/toml"
	"mvdan.cc/sh/v3/shell"

	defaults "github.com/Paranoid-AF/infill/default"
)

// Trim modes for GenerationConfig.Trim.
const (
	// TrimExact removes whole occurrences of the end-of-text marker only.
	TrimExact = "exact"
	// TrimChars strips any trailing character that appears in the marker.
	TrimChars = "chars"
)

// Config represents the user's infill configuration.
type Config struct {
	Version    int                       `toml:"version" json:"version"`
	Provider   string                    `toml:"provider" json:"provider"`
	Generation GenerationConfig          `toml:"generation" json:"generation"`
	Providers  map[string]ProviderConfig `toml:"providers" json:"providers"`
}

// GenerationConfig holds settings shared by every provider.
type GenerationConfig struct {
	MaxNewTokens    int     `toml:"max_new_tokens" json:"max_new_tokens,omitempty"`
	Temperature     float64 `toml:"temperature" json:"temperature,omitempty"`
	Stream          bool    `toml:"stream" json:"stream,omitempty"`
	TimeoutSeconds  int     `toml:"timeout_seconds" json:"timeout_seconds,omitempty"`
	Trim            string  `toml:"trim" json:"trim,omitempty"`
	EOTMarker       string  `toml:"eot_marker" json:"eot_marker,omitempty"`
	FillMarker      string  `toml:"fill_marker" json:"fill_marker,omitempty"`
	CacheTTLMinutes int     `toml:"cache_ttl_minutes" json:"cache_ttl_minutes,omitempty"`
}

// ProviderConfig holds the endpoint and credential settings for one provider.
type ProviderConfig struct {
	BaseURL   string `toml:"base_url" json:"base_url,omitempty"`
	APIKeyEnv string `toml:"api_key_env" json:"api_key_env,omitempty"`
	// APIKey may reference environment variables, e.g. "$MY_TOKEN".
	APIKey string `toml:"api_key" json:"-"`
	Model  string `toml:"model" json:"model,omitempty"`
}

// ConfigDir returns the config directory path.
// Resolution order: $INFILL_CONFIG_DIR > $XDG_CONFIG_HOME/infill > ~/.config/infill
func ConfigDir() string {
	if dir := os.Getenv("INFILL_CONFIG_DIR"); dir != "" {
		return dir
	}
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "infill")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("/tmp", "infill-config")
	}
	return filepath.Join(home, ".config", "infill")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// DefaultConfig returns the default configuration from the embedded default_config.toml.
func DefaultConfig() *Config {
	var cfg Config
	if err := toml.Unmarshal(defaults.DefaultConfigTOML, &cfg); err != nil {
		panic("infill: invalid embedded default_config.toml: " + err.Error())
	}
	return &cfg
}

// LoadConfig loads config from disk or returns defaults if not found.
func LoadConfig() (*Config, error) {
	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig decodes TOML config data and fills missing fields from the defaults.
// Numeric generation settings keep an explicit zero; only absent keys are defaulted.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, err
	}
	applyDefaults(&cfg, DefaultConfig(), md.IsDefined)
	return &cfg, nil
}

func applyDefaults(cfg, def *Config, defined func(key ...string) bool) {
	if cfg.Version == 0 {
		cfg.Version = def.Version
	}
	if cfg.Provider == "" {
		cfg.Provider = def.Provider
	}

	gen := &cfg.Generation
	if !defined("generation", "max_new_tokens") {
		gen.MaxNewTokens = def.Generation.MaxNewTokens
	}
	if gen.Trim == "" {
		gen.Trim = def.Generation.Trim
	}
	if gen.EOTMarker == "" {
		gen.EOTMarker = def.Generation.EOTMarker
	}
	if gen.FillMarker == "" {
		gen.FillMarker = def.Generation.FillMarker
	}
	if !defined("generation", "cache_ttl_minutes") {
		gen.CacheTTLMinutes = def.Generation.CacheTTLMinutes
	}

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig, len(def.Providers))
	}
	for name, dp := range def.Providers {
		p, ok := cfg.Providers[name]
		if !ok {
			cfg.Providers[name] = dp
			continue
		}
		if p.BaseURL == "" {
			p.BaseURL = dp.BaseURL
		}
		if p.APIKeyEnv == "" {
			p.APIKeyEnv = dp.APIKeyEnv
		}
		if p.Model == "" {
			p.Model = dp.Model
		}
		cfg.Providers[name] = p
	}
}

// ValidateConfig checks configuration for potential issues and returns warnings.
func ValidateConfig(cfg *Config) []string {
	var warnings []string
	if cfg == nil {
		return warnings
	}
	if _, ok := cfg.Providers[cfg.Provider]; !ok {
		warnings = append(warnings, "default provider "+cfg.Provider+" has no [providers] entry")
	}
	switch cfg.Generation.Trim {
	case TrimExact:
	case TrimChars:
		warnings = append(warnings, "trim = \"chars\" also strips trailing characters that merely appear in the end-of-text marker")
	default:
		warnings = append(warnings, "unknown trim mode "+cfg.Generation.Trim+"; falling back to \"exact\"")
	}
	if cfg.Generation.MaxNewTokens < 0 {
		warnings = append(warnings, "max_new_tokens is negative")
	}
	for _, name := range slices.Sorted(maps.Keys(cfg.Providers)) {
		if name != "dummy" && ResolveAPIKey(cfg, name) == "" {
			warnings = append(warnings, "no API key configured for provider "+name)
		}
	}
	return warnings
}

// ResolveProvider returns the default provider name.
// Priority: $INFILL_PROVIDER env > config value.
func ResolveProvider(cfg *Config) string {
	if name := os.Getenv("INFILL_PROVIDER"); name != "" {
		return name
	}
	if cfg != nil {
		return cfg.Provider
	}
	return ""
}

// ResolveModel returns the model name for the given provider.
// Priority: $INFILL_MODEL env > config value.
func ResolveModel(cfg *Config, provider string) string {
	if model := os.Getenv("INFILL_MODEL"); model != "" {
		return model
	}
	if cfg != nil {
		return cfg.Providers[provider].Model
	}
	return ""
}

// ResolveAPIKey returns the credential for the given provider.
// Priority: the env var named by api_key_env > api_key with $VAR references expanded.
func ResolveAPIKey(cfg *Config, provider string) string {
	if cfg == nil {
		return ""
	}
	pc := cfg.Providers[provider]
	if pc.APIKeyEnv != "" {
		if key := os.Getenv(pc.APIKeyEnv); key != "" {
			return key
		}
	}
	if pc.APIKey == "" {
		return ""
	}
	key, err := shell.Expand(pc.APIKey, os.Getenv)
	if err != nil {
		return pc.APIKey
	}
	return key
}
