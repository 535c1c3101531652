// Package config loads docrefine settings from defaults, an optional YAML
// file, DOCREFINE_* environment variables and bound CLI flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jmylchreest/docrefine/pkg/cleaner"
	"github.com/jmylchreest/docrefine/pkg/llm"
	"github.com/jmylchreest/docrefine/pkg/rewrite"
	"github.com/jmylchreest/docrefine/pkg/vision"
)

// ErrInvalid wraps every validation failure returned by Load.
var ErrInvalid = errors.New("invalid configuration")

// EnvPrefix is the prefix of environment overrides, e.g. DOCREFINE_WORK_DIR.
const EnvPrefix = "DOCREFINE"

// Config is the complete runtime configuration.
type Config struct {
	Vision    VisionConfig              `mapstructure:"vision"`
	Rewrite   RewriteConfig             `mapstructure:"rewrite"`
	Providers map[string]ProviderConfig `mapstructure:"providers" validate:"dive"`
	Cleaner   CleanerConfig             `mapstructure:"cleaner"`
	Extract   ExtractConfig             `mapstructure:"extract"`
	Formula   FormulaConfig             `mapstructure:"formula"`

	WorkDir    string        `mapstructure:"work_dir"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gte=0"`
	KeepReport bool          `mapstructure:"keep_report"`
	Debug      bool          `mapstructure:"debug"`
	Quiet      bool          `mapstructure:"quiet"`
	LogFormat  string        `mapstructure:"log_format" validate:"oneof=text json"`
}

// VisionConfig configures image classification.
type VisionConfig struct {
	// Provider names the backend. Empty selects the first provider in the
	// fallback order that has credentials.
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`

	RequestsBeforePause int           `mapstructure:"requests_before_pause" validate:"gte=0"`
	PauseDuration       time.Duration `mapstructure:"pause_duration" validate:"gte=0"`
	MaxRetries          int           `mapstructure:"max_retries" validate:"gte=1"`
	BackoffBase         time.Duration `mapstructure:"backoff_base" validate:"gte=0"`
	RequestInterval     time.Duration `mapstructure:"request_interval" validate:"gte=0"`
	ContextChars        int           `mapstructure:"context_chars" validate:"gte=0"`
	MaxImageSize        string        `mapstructure:"max_image_size" validate:"required"`
	MaxTokens           int           `mapstructure:"max_tokens" validate:"gte=0"`
}

// RewriteConfig configures the rewrite orchestrator.
type RewriteConfig struct {
	FallbackOrder []string            `mapstructure:"fallback_order"`
	Policies      map[string][]string `mapstructure:"policies"`
	OrderKey      string              `mapstructure:"order_key"`
	Timeout       time.Duration       `mapstructure:"timeout" validate:"gte=0"`
	MaxTokens     int                 `mapstructure:"max_tokens" validate:"gte=0"`
	Temperature   float64             `mapstructure:"temperature" validate:"gte=0,lte=2"`
}

// ProviderConfig holds provider-specific settings from the config file.
type ProviderConfig struct {
	Model       string  `mapstructure:"model"`
	BaseURL     string  `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey      string  `mapstructure:"api_key"`
	Temperature float64 `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `mapstructure:"max_tokens" validate:"gte=0"`
}

// CleanerConfig configures the deterministic cleaners.
type CleanerConfig struct {
	PlaceholderTokens []string `mapstructure:"placeholder_tokens"`
	CaptionTokens     []string `mapstructure:"caption_tokens"`
	SectionKeyLength  int      `mapstructure:"section_key_length" validate:"gte=1"`
}

// ExtractConfig configures the external extraction engine.
type ExtractConfig struct {
	// Command is an argv template with {input} and {output} placeholders.
	Command []string `mapstructure:"command"`
}

// FormulaConfig configures formula recognition.
type FormulaConfig struct {
	// Command is an argv template with an {image} placeholder. It takes
	// precedence over Provider.
	Command  []string `mapstructure:"command"`
	Provider string   `mapstructure:"provider"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	vd := vision.DefaultConfig()
	v.SetDefault("vision.provider", "")
	v.SetDefault("vision.model", "")
	v.SetDefault("vision.requests_before_pause", vd.RequestsBeforePause)
	v.SetDefault("vision.pause_duration", vd.PauseDuration)
	v.SetDefault("vision.max_retries", vd.MaxRetries)
	v.SetDefault("vision.backoff_base", vd.BackoffBase)
	v.SetDefault("vision.request_interval", vd.RequestInterval)
	v.SetDefault("vision.context_chars", vd.ContextChars)
	v.SetDefault("vision.max_image_size", "20MB")
	v.SetDefault("vision.max_tokens", vd.MaxTokens)

	rd := rewrite.DefaultLLMConfig()
	v.SetDefault("rewrite.fallback_order", llm.DefaultFallbackOrder)
	v.SetDefault("rewrite.order_key", rewrite.DefaultOrderKey)
	v.SetDefault("rewrite.timeout", rd.Timeout)
	v.SetDefault("rewrite.max_tokens", rd.MaxTokens)
	v.SetDefault("rewrite.temperature", rd.Temperature)

	sd := cleaner.DefaultStructuralConfig()
	v.SetDefault("cleaner.placeholder_tokens", sd.PlaceholderTokens)
	v.SetDefault("cleaner.caption_tokens", cleaner.DefaultCaptionTokens)
	v.SetDefault("cleaner.section_key_length", sd.SectionKeyLength)

	v.SetDefault("work_dir", filepath.Join(os.TempDir(), "docrefine"))
	v.SetDefault("timeout", time.Duration(0))
	v.SetDefault("keep_report", false)
	v.SetDefault("log_format", "text")
}

// Setup prepares v for Load: defaults, .env files, environment binding and
// the config file. An explicit cfgFile must exist; otherwise the first file
// found by FindConfigFile is read, if any.
func Setup(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)

	if err := LoadDotEnv(); err != nil {
		return err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile == "" {
		cfgFile = FindConfigFile()
	}
	if cfgFile == "" {
		return nil
	}
	v.SetConfigFile(cfgFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config %s: %w", cfgFile, err)
	}
	return nil
}

// LoadDotEnv loads the given .env files, or ./.env when none are named, into
// the process environment. Missing files are ignored and variables already
// set are never overridden.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// SearchPaths lists the config file locations in lookup order.
func SearchPaths() []string {
	paths := []string{".docrefine.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".docrefine.yaml"))
	}
	return append(paths, filepath.Join(xdg.ConfigHome, "docrefine", "config.yaml"))
}

// FindConfigFile returns the first existing path from SearchPaths, or "".
func FindConfigFile() string {
	for _, p := range SearchPaths() {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := humanize.ParseBytes(c.Vision.MaxImageSize); err != nil {
		return fmt.Errorf("%w: vision.max_image_size %q: %w", ErrInvalid, c.Vision.MaxImageSize, err)
	}
	for key, order := range c.Rewrite.Policies {
		if len(order) == 0 {
			return fmt.Errorf("%w: rewrite.policies.%s is empty", ErrInvalid, key)
		}
	}
	return nil
}

// ClassifierConfig converts the vision settings.
func (c *Config) ClassifierConfig() (vision.Config, error) {
	size, err := humanize.ParseBytes(c.Vision.MaxImageSize)
	if err != nil {
		return vision.Config{}, fmt.Errorf("vision.max_image_size: %w", err)
	}
	return vision.Config{
		RequestsBeforePause: c.Vision.RequestsBeforePause,
		PauseDuration:       c.Vision.PauseDuration,
		MaxRetries:          c.Vision.MaxRetries,
		BackoffBase:         c.Vision.BackoffBase,
		RequestInterval:     c.Vision.RequestInterval,
		ContextChars:        c.Vision.ContextChars,
		MaxImageBytes:       size,
		MaxTokens:           c.Vision.MaxTokens,
	}, nil
}

// RewriteLLMConfig returns the request settings for rewrite backend name,
// with provider-specific overrides applied.
func (c *Config) RewriteLLMConfig(name string) rewrite.LLMConfig {
	cfg := rewrite.LLMConfig{
		MaxTokens:   c.Rewrite.MaxTokens,
		Temperature: c.Rewrite.Temperature,
		Timeout:     c.Rewrite.Timeout,
	}
	if pc, ok := c.Providers[name]; ok {
		if pc.MaxTokens > 0 {
			cfg.MaxTokens = pc.MaxTokens
		}
		if pc.Temperature > 0 {
			cfg.Temperature = pc.Temperature
		}
	}
	return cfg
}

// StructuralConfig converts the cleaner settings.
func (c *Config) StructuralConfig() cleaner.StructuralConfig {
	return cleaner.StructuralConfig{
		PlaceholderTokens: c.Cleaner.PlaceholderTokens,
		SectionKeyLength:  c.Cleaner.SectionKeyLength,
	}
}

// FallbackOrder returns the configured rewrite order, or the default one.
func (c *Config) FallbackOrder() []string {
	if len(c.Rewrite.FallbackOrder) > 0 {
		return c.Rewrite.FallbackOrder
	}
	return llm.DefaultFallbackOrder
}

// ProviderSettings resolves the connection settings for provider name.
// A key in the config file wins over the environment. ok is false when the
// provider needs an API key and none is available.
func (c *Config) ProviderSettings(name string) (cfg llm.ProviderConfig, ok bool) {
	cfg = llm.DefaultProviderConfig()
	cfg.Model = llm.GetDefaultModel(name)

	pc := c.Providers[name]
	if pc.Model != "" {
		cfg.Model = pc.Model
	}
	cfg.BaseURL = pc.BaseURL
	cfg.APIKey = pc.APIKey
	if cfg.APIKey == "" {
		cfg.APIKey = llm.APIKeyFromEnv(name)
	}
	return cfg, cfg.APIKey != "" || !llm.RequiresAPIKey(name)
}
