// Package vision classifies the images referenced by a Markdown document as
// useful or useless by asking a vision-capable model, one image at a time.
//
// Classification never fails the document on a per-image basis: transient
// backend errors are retried with exponential backoff, and any call that
// still fails becomes a negative judgment.Record carrying the reason.
// Only cancellation of the context aborts a run.
package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"github.com/jmylchreest/docrefine/internal/logger"
	"github.com/jmylchreest/docrefine/pkg/judgment"
	"github.com/jmylchreest/docrefine/pkg/llm"
	"github.com/jmylchreest/docrefine/pkg/mdref"
)

// ErrNoProvider is returned by New when no model backend is supplied.
var ErrNoProvider = errors.New("no vision provider configured")

// Reasons recorded on synthesized negative judgments.
const (
	ReasonLoadFailed     = "Image file could not be loaded."
	ReasonInvalidJSON    = "Model returned invalid JSON"
	ReasonMissing        = "Analysis missing reason or failed."
	ReasonThrottled      = "Request interval would exceed the deadline."
	reasonRetriesPrefix  = "API request failed after retries"
	defaultMaxImageBytes = 20 * humanize.MByte
)

const instruction = `You are an AI assistant analyzing technical documents. Your task is to evaluate an image based on the surrounding text context.

Determine if the image is 'useful' or 'useless' and provide a brief reason.

- 'useful' means: The image is a chart, graph, diagram, code snippet, architecture diagram, or a meaningful screenshot that supplements the text.
- 'useless' means: The image is a generic logo, decorative shape, PowerPoint arrow, or placeholder image adding no informational value.

Respond with a single JSON object and nothing else:
{"is_useful": true or false, "reason": "one short sentence"}`

// Config controls retry, throttling and request shaping.
type Config struct {
	// RequestsBeforePause is the number of requests issued before a pause.
	// Zero disables throttling.
	RequestsBeforePause int `validate:"gte=0"`
	PauseDuration       time.Duration `validate:"gte=0"`
	// MaxRetries is the total number of attempts per image.
	MaxRetries  int           `validate:"gte=1"`
	BackoffBase time.Duration `validate:"gte=0"`
	// RequestInterval spaces consecutive requests evenly. Zero disables it.
	RequestInterval time.Duration `validate:"gte=0"`
	// ContextChars is the number of characters of document text sent from
	// either side of the reference.
	ContextChars  int    `validate:"gte=0"`
	MaxImageBytes uint64 `validate:"gt=0"`
	MaxTokens     int    `validate:"gte=0"`
}

// DefaultConfig returns the standard classification settings.
func DefaultConfig() Config {
	return Config{
		RequestsBeforePause: 15,
		PauseDuration:       30 * time.Second,
		MaxRetries:          3,
		BackoffBase:         time.Second,
		ContextChars:        500,
		MaxImageBytes:       defaultMaxImageBytes,
		MaxTokens:           256,
	}
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option configures a Classifier.
type Option func(*Classifier)

// WithSleep replaces the function used for backoff and throttle pauses.
func WithSleep(fn SleepFunc) Option {
	return func(c *Classifier) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

// Classifier issues one vision request per local image reference.
// A Classifier holds no per-document state and may be shared.
type Classifier struct {
	provider llm.Provider
	cfg      Config
	sleep    SleepFunc
	limiter  *rate.Limiter
	validate *validator.Validate
}

// New creates a Classifier over provider.
func New(provider llm.Provider, cfg Config, opts ...Option) (*Classifier, error) {
	if provider == nil {
		return nil, ErrNoProvider
	}
	if cfg.MaxImageBytes == 0 {
		cfg.MaxImageBytes = defaultMaxImageBytes
	}
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid vision config: %w", err)
	}

	c := &Classifier{
		provider: provider,
		cfg:      cfg,
		sleep:    sleepContext,
		validate: v,
	}
	if cfg.RequestInterval > 0 {
		c.limiter = rate.NewLimiter(rate.Every(cfg.RequestInterval), 1)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Provider returns the backend used for classification.
func (c *Classifier) Provider() llm.Provider {
	return c.provider
}

// ClassifyFile classifies the images referenced by the Markdown file at
// path. Relative references resolve against the file's directory.
func (c *Classifier) ClassifyFile(ctx context.Context, path string) (judgment.Report, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is the document being refined
	if err != nil {
		return nil, fmt.Errorf("failed to read markdown: %w", err)
	}
	return c.ClassifyMarkdown(ctx, string(data), filepath.Dir(path))
}

// ClassifyMarkdown classifies every local image referenced in md and returns
// one record per distinct image path, in document order. Remote references
// are skipped. The returned error is non-nil only when ctx is done.
func (c *Classifier) ClassifyMarkdown(ctx context.Context, md, baseDir string) (judgment.Report, error) {
	refs := mdref.Find(md)
	log := logger.With("provider", c.provider.Name(), "model", c.provider.Model())
	log.Debug("classifying images", "references", len(refs))

	start := time.Now()
	report := make(judgment.Report, 0, len(refs))
	seen := make(map[string]bool, len(refs))
	issued := 0

	for _, ref := range refs {
		target := ref.Target()
		if target == "" || mdref.IsRemote(target) {
			continue
		}
		key := mdref.Key(target)
		if seen[key] {
			continue
		}
		seen[key] = true

		fullPath := mdref.Resolve(baseDir, target)
		rec := judgment.Record{ImagePath: target, FullPath: fullPath}

		img, err := c.loadImage(fullPath)
		if err != nil {
			log.Warn("image not loaded", "image", target, "error", err)
			rec.Reason = ReasonLoadFailed
			report = append(report, rec)
			continue
		}

		if c.cfg.RequestsBeforePause > 0 && issued >= c.cfg.RequestsBeforePause {
			log.Info("pausing vision requests", "after", issued, "pause", c.cfg.PauseDuration)
			if err := c.sleep(ctx, c.cfg.PauseDuration); err != nil {
				return report, err
			}
			issued = 0
		}

		surrounding := mdref.Context(md, ref.Start, ref.End, c.cfg.ContextChars)
		useful, reason, err := c.classify(ctx, img, surrounding)
		issued++
		if err != nil {
			return report, err
		}

		rec.IsUseful = useful
		rec.Reason = reason
		log.Debug("image classified", "image", target, "useful", useful, "reason", reason)
		report = append(report, rec)
	}

	log.Info("images classified",
		"images", len(report),
		"useful", report.Useful(),
		"duration", time.Since(start))
	return report, nil
}

// loadImage reads the image at path and detects its MIME type.
func (c *Classifier) loadImage(path string) (llm.Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return llm.Image{}, err
	}
	if info.IsDir() {
		return llm.Image{}, fmt.Errorf("%s is a directory", path)
	}
	if uint64(info.Size()) > c.cfg.MaxImageBytes {
		return llm.Image{}, fmt.Errorf("image is %s, limit is %s",
			humanize.Bytes(uint64(info.Size())), humanize.Bytes(c.cfg.MaxImageBytes))
	}

	data, err := os.ReadFile(path) //#nosec G304 -- image path comes from the document's own references
	if err != nil {
		return llm.Image{}, err
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return llm.Image{}, fmt.Errorf("unsupported content type %s", mt.String())
	}
	mime, _, _ := strings.Cut(mt.String(), ";")
	return llm.Image{MIMEType: mime, Data: data}, nil
}

// classify runs the retry loop for one image. The error is non-nil only
// when ctx is done; every backend failure is folded into the reason.
func (c *Classifier) classify(ctx context.Context, img llm.Image, surrounding string) (bool, string, error) {
	req := llm.Request{
		Messages: []llm.Message{{
			Role: llm.RoleUser,
			Content: instruction +
				"\n\nHere is the context from the document surrounding the image:\n---\n" +
				surrounding + "\n---\nPlease analyze the following image:",
			Images: []llm.Image{img},
		}},
		MaxTokens: c.cfg.MaxTokens,
		JSONMode:  true,
	}

	delay := c.cfg.BackoffBase
	for attempt := 1; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return false, "", ctx.Err()
				}
				logger.Warn("vision request skipped", "attempt", attempt, "error", err)
				return false, ReasonThrottled, nil
			}
		}

		resp, err := c.provider.Execute(ctx, req)
		if err == nil {
			useful, reason := c.parseVerdict(resp.Content)
			return useful, reason, nil
		}
		if ctx.Err() != nil {
			return false, "", ctx.Err()
		}
		if !llm.IsTransient(err) {
			logger.Warn("vision request failed", "attempt", attempt, "error", err)
			return false, err.Error(), nil
		}
		if attempt >= c.cfg.MaxRetries {
			logger.Warn("vision request failed after retries", "attempts", attempt, "error", err)
			return false, fmt.Sprintf("%s: %v", reasonRetriesPrefix, err), nil
		}

		logger.Debug("retrying vision request", "attempt", attempt, "delay", delay, "error", err)
		if err := c.sleep(ctx, delay); err != nil {
			return false, "", err
		}
		delay *= 2
	}
}

type verdict struct {
	IsUseful *bool  `json:"is_useful" validate:"required"`
	Reason   string `json:"reason"`
}

// parseVerdict decodes the model's answer. A missing verdict counts as
// useless.
func (c *Classifier) parseVerdict(content string) (bool, string) {
	body := llm.StripCodeFence(content)
	var v verdict
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		// Some models wrap the object in prose.
		lo, hi := strings.Index(body, "{"), strings.LastIndex(body, "}")
		if lo < 0 || hi <= lo || json.Unmarshal([]byte(body[lo:hi+1]), &v) != nil {
			return false, ReasonInvalidJSON
		}
	}

	reason := strings.TrimSpace(v.Reason)
	if reason == "" {
		reason = ReasonMissing
	}
	if err := c.validate.Struct(v); err != nil {
		return false, reason
	}
	return *v.IsUseful, reason
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
