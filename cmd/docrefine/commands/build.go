package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/docrefine/internal/config"
	"github.com/jmylchreest/docrefine/internal/logger"
	"github.com/jmylchreest/docrefine/internal/version"
	"github.com/jmylchreest/docrefine/pkg/cleaner"
	"github.com/jmylchreest/docrefine/pkg/docrefine"
	"github.com/jmylchreest/docrefine/pkg/formula"
	"github.com/jmylchreest/docrefine/pkg/ingest"
	"github.com/jmylchreest/docrefine/pkg/llm"
	"github.com/jmylchreest/docrefine/pkg/rewrite"
	"github.com/jmylchreest/docrefine/pkg/vision"
)

// errNoVisionProvider is returned when classification is needed but no
// backend has credentials.
var errNoVisionProvider = errors.New("no vision provider available - set an API key, run Ollama locally or use --skip-images")

// newProvider creates the named backend from config. ok is false when the
// backend needs an API key and none is configured.
func newProvider(cfg *config.Config, name, modelOverride string) (p llm.Provider, ok bool, err error) {
	pc, ok := cfg.ProviderSettings(name)
	if !ok {
		return nil, false, nil
	}
	if modelOverride != "" {
		pc.Model = modelOverride
	}
	pc.AppTitle = version.UserAgent()

	p, err = llm.NewProvider(name, pc)
	if err != nil {
		return nil, true, err
	}
	return llm.WithObserver(p, callLogger()), true, nil
}

// callLogger logs every model call at debug level. It returns nil when debug
// logging is off so providers are left unwrapped.
func callLogger() llm.LLMObserver {
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		return nil
	}
	return llm.ObserverFunc(func(ctx context.Context, e llm.LLMCallEvent) {
		args := []any{
			"provider", e.Provider,
			"model", e.Model,
			"images", e.Request.Images,
			"input_chars", e.Request.InputContentSize,
			"duration", e.Duration,
		}
		if e.Response != nil {
			args = append(args,
				"input_tokens", e.Response.InputTokens,
				"output_tokens", e.Response.OutputTokens,
				"finish_reason", e.Response.FinishReason)
		}
		if e.Error != nil {
			args = append(args, "error", e.Error)
		}
		logger.DebugContext(ctx, "llm call", args...)
	})
}

// buildClassifier creates the vision classifier. The configured provider is
// used when set; otherwise the first backend in the fallback order with
// credentials.
func buildClassifier(cfg *config.Config) (*vision.Classifier, error) {
	vc, err := cfg.ClassifierConfig()
	if err != nil {
		return nil, err
	}

	candidates := cfg.FallbackOrder()
	if cfg.Vision.Provider != "" {
		candidates = []string{cfg.Vision.Provider}
	}
	for _, name := range candidates {
		p, ok, err := newProvider(cfg, name, cfg.Vision.Model)
		if err != nil {
			return nil, fmt.Errorf("vision provider %s: %w", name, err)
		}
		if !ok {
			logger.Debug("skipping vision provider without API key", "provider", name)
			continue
		}
		logger.Debug("vision provider selected", "provider", p.Name(), "model", p.Model())
		return vision.New(p, vc)
	}
	return nil, errNoVisionProvider
}

// buildRewriter creates one rewriter per backend named in the fallback order
// or any policy, skipping backends without credentials.
func buildRewriter(cfg *config.Config) *rewrite.Orchestrator {
	var names []string
	seen := make(map[string]bool)
	add := func(order []string) {
		for _, name := range order {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	add(cfg.FallbackOrder())
	for _, order := range cfg.Rewrite.Policies {
		add(order)
	}

	var rewriters []rewrite.Rewriter
	for _, name := range names {
		p, ok, err := newProvider(cfg, name, "")
		if err != nil {
			logger.Debug("failed to create rewriter", "provider", name, "error", err)
			continue
		}
		if !ok {
			logger.Debug("skipping rewriter without API key", "provider", name)
			continue
		}
		rewriters = append(rewriters, rewrite.NewLLMRewriter(p, cfg.RewriteLLMConfig(name)))
		logger.Debug("added rewriter", "provider", name, "model", p.Model())
	}

	return rewrite.NewOrchestrator(rewriters,
		rewrite.WithFallbackOrder(cfg.FallbackOrder()),
		rewrite.WithPolicies(cfg.Rewrite.Policies))
}

// buildRecognizer returns the formula recognizer, or nil when formula
// recognition is not configured.
func buildRecognizer(cfg *config.Config) (formula.Recognizer, error) {
	if len(cfg.Formula.Command) > 0 {
		return formula.NewCommandRecognizer(cfg.Formula.Command), nil
	}
	if cfg.Formula.Provider == "" {
		return nil, nil
	}
	p, ok, err := newProvider(cfg, cfg.Formula.Provider, "")
	if err != nil {
		return nil, fmt.Errorf("formula provider %s: %w", cfg.Formula.Provider, err)
	}
	if !ok {
		return nil, fmt.Errorf("formula provider %s has no API key", cfg.Formula.Provider)
	}
	return formula.NewVisionRecognizer(p), nil
}

// buildExtractor returns the source dispatcher, with the external engine
// when one is configured.
func buildExtractor(cfg *config.Config) ingest.Extractor {
	if len(cfg.Extract.Command) == 0 {
		return ingest.NewAuto(nil)
	}
	return ingest.NewAuto(ingest.NewCommand(cfg.Extract.Command))
}

// buildRefiner assembles a Refiner from config. skipImages runs without a
// classifier; rewriting is only wired for the full pipeline.
func buildRefiner(cfg *config.Config, mode docrefine.Mode, skipImages bool) (*docrefine.Refiner, error) {
	opts := []docrefine.Option{
		docrefine.WithExtractor(buildExtractor(cfg)),
		docrefine.WithStructuralCleaner(cleaner.NewStructural(cfg.StructuralConfig())),
		docrefine.WithCaptionCleaner(cleaner.NewCaptionTokenRemover(cfg.Cleaner.CaptionTokens)),
		docrefine.WithOrderKey(cfg.Rewrite.OrderKey),
		docrefine.WithWorkDir(cfg.WorkDir),
		docrefine.WithTimeout(cfg.Timeout),
		docrefine.WithKeepReport(cfg.KeepReport),
	}

	if skipImages {
		opts = append(opts, docrefine.WithSkipClassification(true))
	} else {
		cl, err := buildClassifier(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, docrefine.WithClassifier(cl))
	}

	rec, err := buildRecognizer(cfg)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		opts = append(opts, docrefine.WithRecognizer(rec))
	}

	if mode == docrefine.ModeFull {
		opts = append(opts, docrefine.WithRewriter(buildRewriter(cfg)))
	}
	return docrefine.New(opts...)
}
