package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog/log"
)

// Config is the process-wide configuration. It is built once at startup and
// never mutated afterwards.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Log        LogConfig        `koanf:"log"`
	Upstream   UpstreamConfig   `koanf:"upstream"`
	Gemini     GeminiConfig     `koanf:"gemini"`
	OpenRouter OpenRouterConfig `koanf:"openrouter"`
	RateLimit  RateLimitConfig  `koanf:"ratelimit"`
	Redis      RedisConfig      `koanf:"redis"`
	Metrics    MetricsConfig    `koanf:"metrics"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
	// CORSAllowedOrigins is a comma separated origin list.
	CORSAllowedOrigins string `koanf:"cors_allowed_origins"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// UpstreamConfig bounds every outbound provider call.
type UpstreamConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

// GeminiConfig points at a Gemini-compatible generateContent endpoint.
type GeminiConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  string `koanf:"api_key"`
}

// OpenRouterConfig points at the pass-through chat completions endpoint.
type OpenRouterConfig struct {
	URL       string `koanf:"url"`
	LegacyURL string `koanf:"legacy_url"`
	APIKey    string `koanf:"api_key"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// envKeys maps the environment variables the relay understands onto config keys.
var envKeys = map[string]string{
	"PORT":                    "server.port",
	"CORS_ALLOWED_ORIGINS":    "server.cors_allowed_origins",
	"LOG_LEVEL":               "log.level",
	"LOG_FORMAT":              "log.format",
	"UPSTREAM_TIMEOUT":        "upstream.timeout",
	"GEMINI_API_BASE_URL":     "gemini.base_url",
	"GEMINI_MODEL":            "gemini.model",
	"GEMINI_API_KEY":          "gemini.api_key",
	"OPENROUTER_API_URL":      "openrouter.url",
	"VITE_OPENROUTER_API_URL": "openrouter.legacy_url",
	"OPENROUTER_API_KEY":      "openrouter.api_key",
	"RATELIMIT_ENABLED":       "ratelimit.enabled",
	"RATELIMIT_CHAT":          "ratelimit.chat_max_hits",
	"RATELIMIT_WINDOW":        "ratelimit.window",
	"REDIS_URL":               "redis.url",
	"REDIS_PASSWORD":          "redis.password",
	"METRICS_ENABLED":         "metrics.enabled",
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in that order of precedence, then validates it.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		log.Debug().Str("path", path).Msg("Loaded configuration file")
	}

	// Unknown and empty variables are skipped so they never mask defaults.
	if err := k.Load(env.ProviderWithValue("", ".", func(key, value string) (string, interface{}) {
		if strings.TrimSpace(value) == "" {
			return "", nil
		}
		return envKeys[key], value
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	cfg.normalise()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalise() {
	c.Gemini.BaseURL = strings.TrimRight(strings.TrimSpace(c.Gemini.BaseURL), "/")
	c.Gemini.Model = strings.TrimSpace(c.Gemini.Model)
	c.Gemini.APIKey = strings.TrimSpace(c.Gemini.APIKey)

	c.OpenRouter.URL = strings.TrimSpace(c.OpenRouter.URL)
	if c.OpenRouter.URL == "" {
		c.OpenRouter.URL = strings.TrimSpace(c.OpenRouter.LegacyURL)
	}
	c.OpenRouter.APIKey = strings.TrimSpace(c.OpenRouter.APIKey)
}

// Validate fails fast on configuration that would produce malformed upstream requests.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream.timeout must be positive, got %s", c.Upstream.Timeout)
	}

	if c.Gemini.partial() {
		return errors.New("gemini: GEMINI_API_BASE_URL, GEMINI_MODEL and GEMINI_API_KEY must all be set")
	}
	if c.GeminiEnabled() {
		if err := validateURL("gemini.base_url", c.Gemini.BaseURL); err != nil {
			return err
		}
	}

	if c.OpenRouter.partial() {
		return errors.New("openrouter: OPENROUTER_API_URL and OPENROUTER_API_KEY must both be set")
	}
	if c.OpenRouterEnabled() {
		if err := validateURL("openrouter.url", c.OpenRouter.URL); err != nil {
			return err
		}
	}

	if !c.GeminiEnabled() && !c.OpenRouterEnabled() {
		return errors.New("no provider configured: set the GEMINI_* or OPENROUTER_* environment variables")
	}

	if err := c.RateLimit.validate(); err != nil {
		return err
	}
	return nil
}

// GeminiEnabled reports whether the Gemini provider is fully configured.
func (c *Config) GeminiEnabled() bool {
	return c.Gemini.BaseURL != "" && c.Gemini.Model != "" && c.Gemini.APIKey != ""
}

// OpenRouterEnabled reports whether the pass-through provider is fully configured.
func (c *Config) OpenRouterEnabled() bool {
	return c.OpenRouter.URL != "" && c.OpenRouter.APIKey != ""
}

// AllowedOrigins splits the CORS origin list, dropping empty entries.
func (c *Config) AllowedOrigins() []string {
	return cleanEmptyStrings(strings.Split(c.Server.CORSAllowedOrigins, ","))
}

func (g GeminiConfig) partial() bool {
	set := 0
	for _, v := range []string{g.BaseURL, g.Model, g.APIKey} {
		if v != "" {
			set++
		}
	}
	return set > 0 && set < 3
}

func (o OpenRouterConfig) partial() bool {
	return (o.URL == "") != (o.APIKey == "")
}

func validateURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", key, raw)
	}
	return nil
}

func cleanEmptyStrings(slice []string) []string {
	result := make([]string, 0, len(slice))
	for _, s := range slice {
		if s = strings.TrimSpace(s); s != "" {
			result = append(result, s)
		}
	}
	return result
}
