// Package config loads process-wide settings once at start. The returned
// Config is treated as immutable and passed explicitly to constructors.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/insightdelivered/statement-normalizer/internal/api"
	"github.com/insightdelivered/statement-normalizer/internal/llm"
	"github.com/insightdelivered/statement-normalizer/internal/normalizer"
	"github.com/insightdelivered/statement-normalizer/internal/reconstruct"
)

// EnvPrefix prefixes every environment override, e.g. STMT_SERVER_PORT.
const EnvPrefix = "STMT"

// Config is the full set of settings, layered defaults < file < environment.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	LLM    LLMConfig    `mapstructure:"llm"`
	Prompt PromptConfig `mapstructure:"prompt"`
	Tables TablesConfig `mapstructure:"tables"`
	Log    LogConfig    `mapstructure:"log"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	BodyLimit      int           `mapstructure:"body_limit"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Metrics        bool          `mapstructure:"metrics"`
}

// LLMConfig selects and tunes the language model provider.
type LLMConfig struct {
	Provider          string        `mapstructure:"provider"`
	Model             string        `mapstructure:"model"`
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryBase         time.Duration `mapstructure:"retry_base"`
}

// PromptConfig holds the prompt character budgets.
type PromptConfig struct {
	TextChars  int `mapstructure:"text_chars"`
	TableChars int `mapstructure:"table_chars"`
}

// TablesConfig controls table reconstruction.
type TablesConfig struct {
	FallbackScope string `mapstructure:"fallback_scope"`
}

// LogConfig controls the zerolog output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.body_limit", api.DefaultBodyLimit)
	v.SetDefault("server.request_timeout", api.DefaultRequestTimeout)
	v.SetDefault("server.metrics", true)

	v.SetDefault("llm.provider", llm.ProviderOpenAI)
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.requests_per_minute", 0)
	v.SetDefault("llm.max_retries", 0)
	v.SetDefault("llm.retry_base", 500*time.Millisecond)

	v.SetDefault("prompt.text_chars", normalizer.DefaultTextChars)
	v.SetDefault("prompt.table_chars", normalizer.DefaultTableChars)

	v.SetDefault("tables.fallback_scope", string(reconstruct.ScopeDocument))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads .env (if present), the optional config file at path and
// STMT_* environment variables, in increasing order of precedence.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = providerKey(cfg.LLM.Provider)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// providerKey falls back to the provider's conventional variable.
func providerKey(provider string) string {
	switch provider {
	case llm.ProviderGemini:
		if k := os.Getenv("GOOGLE_API_KEY"); k != "" {
			return k
		}
		return os.Getenv("GEMINI_API_KEY")
	default:
		return os.Getenv("OPENAI_API_KEY")
	}
}

// Validate checks settings every command depends on. The API key is
// checked separately by RequireLLM since extraction works without it.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.BodyLimit <= 0 {
		errs = append(errs, errors.New("server.body_limit must be positive"))
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, errors.New("server.request_timeout must be positive"))
	}
	switch c.LLM.Provider {
	case llm.ProviderOpenAI, llm.ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q not supported", c.LLM.Provider))
	}
	if c.LLM.RequestsPerMinute < 0 || c.LLM.MaxRetries < 0 {
		errs = append(errs, errors.New("llm.requests_per_minute and llm.max_retries cannot be negative"))
	}
	if c.Prompt.TextChars <= 0 || c.Prompt.TableChars <= 0 {
		errs = append(errs, errors.New("prompt budgets must be positive"))
	}
	if _, err := reconstruct.ParseScope(c.Tables.FallbackScope); err != nil {
		errs = append(errs, err)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, fmt.Errorf("log.format %q: use json or console", c.Log.Format))
	}
	return errors.Join(errs...)
}

// RequireLLM reports whether the language model can be called.
func (c *Config) RequireLLM() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("%s: %w (set %s_LLM_API_KEY)", c.LLM.Provider, llm.ErrMissingAPIKey, EnvPrefix)
	}
	return nil
}

// Addr is the host:port the server listens on.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// LLMOptions converts the llm section for llm.New.
func (c *Config) LLMOptions() llm.Options {
	return llm.Options{
		Provider:          c.LLM.Provider,
		Model:             c.LLM.Model,
		BaseURL:           c.LLM.BaseURL,
		APIKey:            c.LLM.APIKey,
		Timeout:           c.LLM.Timeout,
		RequestsPerMinute: c.LLM.RequestsPerMinute,
		MaxRetries:        c.LLM.MaxRetries,
		RetryBase:         c.LLM.RetryBase,
	}
}

// Budget returns the prompt budget.
func (c *Config) Budget() normalizer.Budget {
	return normalizer.Budget{TextChars: c.Prompt.TextChars, TableChars: c.Prompt.TableChars}
}

// FallbackScope returns the parsed tables.fallback_scope. Validate has
// already rejected unknown values.
func (c *Config) FallbackScope() reconstruct.Scope {
	scope, _ := reconstruct.ParseScope(c.Tables.FallbackScope)
	return scope
}

// Logger builds the process logger writing to w.
func (c *Config) Logger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if c.Log.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
