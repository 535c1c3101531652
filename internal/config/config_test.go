package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/jmylchreest/docrefine/pkg/llm"
)

func load(t *testing.T, yaml string) (*Config, error) {
	t.Helper()
	v := viper.New()
	cfgFile := ""
	if yaml != "" {
		cfgFile = filepath.Join(t.TempDir(), "docrefine.yaml")
		if err := os.WriteFile(cfgFile, []byte(yaml), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	t.Chdir(t.TempDir())
	if err := Setup(v, cfgFile); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	return Load(v)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(t, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	vc, err := cfg.ClassifierConfig()
	if err != nil {
		t.Fatalf("ClassifierConfig() error = %v", err)
	}
	if vc.RequestsBeforePause != 15 || vc.PauseDuration != 30*time.Second || vc.MaxRetries != 3 {
		t.Errorf("vision config = %+v", vc)
	}
	if vc.MaxImageBytes != 20_000_000 {
		t.Errorf("MaxImageBytes = %d, want 20MB", vc.MaxImageBytes)
	}
	if vc.ContextChars != 500 || vc.BackoffBase != time.Second {
		t.Errorf("vision config = %+v", vc)
	}

	if got := strings.Join(cfg.FallbackOrder(), ","); got != strings.Join(llm.DefaultFallbackOrder, ",") {
		t.Errorf("FallbackOrder() = %s", got)
	}
	if cfg.Rewrite.OrderKey != "default" || cfg.Rewrite.Timeout != 30*time.Second {
		t.Errorf("rewrite config = %+v", cfg.Rewrite)
	}
	if sc := cfg.StructuralConfig(); sc.SectionKeyLength != 200 || len(sc.PlaceholderTokens) == 0 {
		t.Errorf("StructuralConfig() = %+v", sc)
	}
	if cfg.LogFormat != "text" || cfg.WorkDir == "" {
		t.Errorf("LogFormat/WorkDir = %q/%q", cfg.LogFormat, cfg.WorkDir)
	}
}

func TestLoad_File(t *testing.T) {
	cfg, err := load(t, `
vision:
  requests_before_pause: 4
  pause_duration: 5s
  max_image_size: 2MiB
rewrite:
  fallback_order: [ollama]
  policies:
    lecture: [anthropic, ollama]
  temperature: 0.5
providers:
  ollama:
    model: llama3.2-vision
    base_url: http://gpu-box:11434
    max_tokens: 4096
cleaner:
  caption_tokens: [figure]
extract:
  command: [marker, "{input}", --output_dir, "{output}"]
keep_report: true
`)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	vc, _ := cfg.ClassifierConfig()
	if vc.RequestsBeforePause != 4 || vc.PauseDuration != 5*time.Second || vc.MaxImageBytes != 2<<20 {
		t.Errorf("vision config = %+v", vc)
	}
	if got := cfg.FallbackOrder(); len(got) != 1 || got[0] != "ollama" {
		t.Errorf("FallbackOrder() = %v", got)
	}
	if got := cfg.Rewrite.Policies["lecture"]; len(got) != 2 {
		t.Errorf("policies = %v", cfg.Rewrite.Policies)
	}
	if got := cfg.Cleaner.CaptionTokens; len(got) != 1 || got[0] != "figure" {
		t.Errorf("CaptionTokens = %v", got)
	}
	if len(cfg.Extract.Command) != 4 || !cfg.KeepReport {
		t.Errorf("Extract/KeepReport = %v/%v", cfg.Extract.Command, cfg.KeepReport)
	}

	rc := cfg.RewriteLLMConfig("ollama")
	if rc.MaxTokens != 4096 || rc.Temperature != 0.5 {
		t.Errorf("RewriteLLMConfig(ollama) = %+v", rc)
	}

	pc, ok := cfg.ProviderSettings("ollama")
	if !ok || pc.Model != "llama3.2-vision" || pc.BaseURL != "http://gpu-box:11434" {
		t.Errorf("ProviderSettings(ollama) = %+v, %v", pc, ok)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("DOCREFINE_VISION_MAX_RETRIES", "5")
	t.Setenv("DOCREFINE_KEEP_REPORT", "true")

	cfg, err := load(t, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Vision.MaxRetries != 5 || !cfg.KeepReport {
		t.Errorf("env overrides not applied: %+v", cfg.Vision)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"zero_retries", "vision:\n  max_retries: 0\n"},
		{"bad_size", "vision:\n  max_image_size: lots\n"},
		{"bad_log_format", "log_format: xml\n"},
		{"bad_base_url", "providers:\n  ollama:\n    base_url: not a url\n"},
		{"temperature", "rewrite:\n  temperature: 3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := load(t, tt.yaml); !errors.Is(err, ErrInvalid) {
				t.Errorf("Load() error = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestValidate_EmptyPolicy(t *testing.T) {
	cfg, err := load(t, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cfg.Rewrite.Policies = map[string][]string{"fast": nil}
	if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
		t.Errorf("Validate() error = %v, want ErrInvalid", err)
	}
}

func TestSetup_MissingExplicitFile(t *testing.T) {
	if err := Setup(viper.New(), filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Setup() should fail for a missing explicit config file")
	}
}

func TestProviderSettings_Keys(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg := &Config{Providers: map[string]ProviderConfig{
		"openrouter": {APIKey: "sk-file"},
	}}

	tests := []struct {
		name    string
		wantKey string
		wantOK  bool
	}{
		{"openrouter", "sk-file", true},
		{"openai", "sk-env", true},
		{"anthropic", "", false},
		{"ollama", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc, ok := cfg.ProviderSettings(tt.name)
			if ok != tt.wantOK || pc.APIKey != tt.wantKey {
				t.Errorf("ProviderSettings(%s) key=%q ok=%v, want %q %v", tt.name, pc.APIKey, ok, tt.wantKey, tt.wantOK)
			}
			if pc.Model != llm.GetDefaultModel(tt.name) {
				t.Errorf("Model = %q, want default", pc.Model)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("DOCREFINE_TEST_DOTENV=loaded\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOCREFINE_TEST_DOTENV", "")
	_ = os.Unsetenv("DOCREFINE_TEST_DOTENV")

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("DOCREFINE_TEST_DOTENV"); got != "loaded" {
		t.Errorf("DOCREFINE_TEST_DOTENV = %q", got)
	}
}

func TestSearchPaths(t *testing.T) {
	paths := SearchPaths()
	if paths[0] != ".docrefine.yaml" {
		t.Errorf("first search path = %q", paths[0])
	}
	if last := paths[len(paths)-1]; !strings.HasSuffix(last, filepath.Join("docrefine", "config.yaml")) {
		t.Errorf("last search path = %q", last)
	}
}
