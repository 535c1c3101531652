// Package commands implements the CLI commands for docrefine.
package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/docrefine/internal/config"
	"github.com/jmylchreest/docrefine/internal/logger"
)

var (
	cfgFile string
	// setupErr is reported by the first command that loads the config.
	setupErr error
)

var rootCmd = &cobra.Command{
	Use:   "docrefine",
	Short: "Turn extracted documents into clean, study-ready Markdown",
	Long: `Docrefine refines Markdown extracted from lecture slides and papers.

It strips logos and decorative images with a vision model, cleans the text
without touching LaTeX math, and asks a language model for a polished
rewrite, falling back to the cleaned document when no model can help.

Examples:
  # Full pipeline on an already extracted document
  docrefine convert notes/lecture.md -o refined/

  # Deterministic cleanup only, no rewrite
  docrefine convert --raw notes/lecture.md

  # Inspect the image judgments for a document
  docrefine classify notes/lecture.md --format markdown

  # Use local Ollama for both classification and rewrite
  docrefine convert notes/lecture.md -p ollama -m llama3.2-vision`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ./.docrefine.yaml, $HOME/.docrefine.yaml or $XDG_CONFIG_HOME/docrefine/config.yaml)")
	flags.Bool("debug", false, "enable debug logging")
	flags.BoolP("quiet", "q", false, "only log errors")
	flags.String("log-format", "", "log format: text, json")

	flags.StringP("provider", "p", "", "vision provider: anthropic, openai, openrouter, gemini, ollama (auto-detects from env vars)")
	flags.StringP("model", "m", "", "vision model name (provider-specific)")
	flags.String("order-key", "", "rewrite fallback policy to use")
	flags.String("work-dir", "", "directory for extraction output and judgment reports")
	flags.Duration("timeout", 0, "per-document timeout (0 = none)")
	flags.Bool("keep-report", false, "keep the judgment report next to the extraction output")

	bindings := map[string]string{
		"debug":             "debug",
		"quiet":             "quiet",
		"log_format":        "log-format",
		"vision.provider":   "provider",
		"vision.model":      "model",
		"rewrite.order_key": "order-key",
		"work_dir":          "work-dir",
		"timeout":           "timeout",
		"keep_report":       "keep-report",
	}
	for key, flag := range bindings {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}
}

func initConfig() {
	setupErr = config.Setup(viper.GetViper(), cfgFile)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig decodes the configuration and initializes logging from it.
func loadConfig() (*config.Config, error) {
	if setupErr != nil {
		return nil, setupErr
	}
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	logger.Init(logger.Options{
		Debug: cfg.Debug,
		Quiet: cfg.Quiet,
		JSON:  cfg.LogFormat == "json",
	})
	if f := viper.ConfigFileUsed(); f != "" {
		logger.Debug("config loaded", "file", f)
	}
	return cfg, nil
}

// openOutput returns stdout, or the file at path when path is set. The
// returned close function is always safe to call.
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path) //#nosec G304 -- CLI tool writes to user-specified output file
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// readInput reads a Markdown file named on the command line.
func readInput(path string) (string, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- CLI tool reads user-specified input file
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// writeText writes text to path, or stdout when path is empty.
func writeText(path, text string) error {
	w, closeFn, err := openOutput(path)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, text); err != nil {
		_ = closeFn()
		return err
	}
	return closeFn()
}
