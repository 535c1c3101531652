package rewrite

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jmylchreest/docrefine/internal/logger"
	"github.com/jmylchreest/docrefine/pkg/llm"
)

type fakeRewriter struct {
	name      string
	text      string
	err       error
	available bool
	calls     int
}

func (f *fakeRewriter) Rewrite(ctx context.Context, doc string) (*Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &Result{Text: f.text, Provider: f.name, Model: f.name + "-model"}, nil
}

func (f *fakeRewriter) Name() string    { return f.name }
func (f *fakeRewriter) Available() bool { return f.available }

type fakeProvider struct {
	content string
	err     error
	last    llm.Request
}

func (p *fakeProvider) Execute(ctx context.Context, req llm.Request) (*llm.Response, error) {
	p.last = req
	if p.err != nil {
		return nil, p.err
	}
	return &llm.Response{Content: p.content, Model: "served-model"}, nil
}

func (p *fakeProvider) Name() string  { return "fake" }
func (p *fakeProvider) Model() string { return "fake-model" }

// --- Prompt ---

func TestBuildPrompt(t *testing.T) {
	doc := "# Notes\n\n$$E = mc^2$$\n\n![fig](/abs/fig.png)"
	prompt := BuildPrompt(doc)

	for _, want := range []string{
		"### BEGIN INPUT\n\n" + doc + "\n\n### END INPUT",
		"### OUTPUT:",
		"do NOT modify content inside $$...$$ or $...$",
		"Preserve image links and file paths",
		"Do not invent new equations or facts",
		"If a heading is duplicated, merge",
		"rewritten markdown only",
		`Never use \[ \] or \( \)`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

// --- LLMRewriter ---

func TestLLMRewriter(t *testing.T) {
	tests := []struct {
		name    string
		content string
		err     error
		want    string
		wantErr error
	}{
		{name: "plain", content: "# Clean\n\nBody", want: "# Clean\n\nBody"},
		{name: "fenced", content: "```markdown\n# Clean\n```", want: "# Clean"},
		{name: "empty", content: "   \n", wantErr: ErrEmptyResponse},
		{name: "backend_error", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{content: tt.content, err: tt.err}
			r := NewLLMRewriter(p, DefaultLLMConfig())

			got, err := r.Rewrite(context.Background(), "doc")
			if tt.err != nil || tt.wantErr != nil {
				if err == nil {
					t.Fatal("expected error")
				}
				if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Rewrite() error = %v", err)
			}
			if got.Text != tt.want {
				t.Errorf("Text = %q, want %q", got.Text, tt.want)
			}
			if got.Provider != "fake" || got.Model != "served-model" {
				t.Errorf("Provider/Model = %s/%s", got.Provider, got.Model)
			}
			if !strings.Contains(p.last.Messages[0].Content, "### BEGIN INPUT\n\ndoc") {
				t.Error("request should carry the rewrite prompt")
			}
		})
	}
}

func TestLLMRewriter_Unavailable(t *testing.T) {
	r := NewLLMRewriter(nil, DefaultLLMConfig())
	if r.Available() {
		t.Error("rewriter without provider should be unavailable")
	}
	if _, err := r.Rewrite(context.Background(), "doc"); !errors.Is(err, ErrNoRewriterAvailable) {
		t.Errorf("error = %v, want ErrNoRewriterAvailable", err)
	}
}

// --- FallbackRewriter ---

func TestFallback_FirstSuccessWins(t *testing.T) {
	a := &fakeRewriter{name: "a", err: errors.New("down"), available: true}
	b := &fakeRewriter{name: "b", text: "from b", available: true}
	c := &fakeRewriter{name: "c", text: "from c", available: true}

	got, err := NewFallback(a, b, c).Rewrite(context.Background(), "doc")
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}
	if got.Text != "from b" {
		t.Errorf("Text = %q, want from b", got.Text)
	}
	if c.calls != 0 {
		t.Error("backends after the first success must not be tried")
	}
}

func TestFallback_SkipsUnavailable(t *testing.T) {
	off := &fakeRewriter{name: "off", text: "never"}
	on := &fakeRewriter{name: "on", text: "ok", available: true}

	got, err := NewFallback(off, on).Rewrite(context.Background(), "doc")
	if err != nil || got.Text != "ok" {
		t.Fatalf("Rewrite() = %v, %v", got, err)
	}
	if off.calls != 0 {
		t.Error("unavailable rewriter should not be called")
	}
}

func TestFallback_Errors(t *testing.T) {
	if _, err := NewFallback().Rewrite(context.Background(), "doc"); !errors.Is(err, ErrNoRewriterAvailable) {
		t.Errorf("empty chain error = %v, want ErrNoRewriterAvailable", err)
	}

	cause := errors.New("quota")
	_, err := NewFallback(
		&fakeRewriter{name: "a", err: errors.New("down"), available: true},
		&fakeRewriter{name: "b", err: cause, available: true},
	).Rewrite(context.Background(), "doc")
	if !errors.Is(err, cause) {
		t.Errorf("error = %v, want wrapped last error", err)
	}
	if !strings.Contains(err.Error(), "tried: a, b") {
		t.Errorf("error = %v, want tried list", err)
	}
}

func TestFallback_Name(t *testing.T) {
	f := NewFallback(&fakeRewriter{name: "a"}, &fakeRewriter{name: "b"})
	if got := f.Name(); got != "fallback(a->b)" {
		t.Errorf("Name() = %q", got)
	}
	if f.Available() {
		t.Error("chain of unavailable rewriters should be unavailable")
	}
}

// --- Orchestrator ---

func TestOrchestrator_Order(t *testing.T) {
	rws := []Rewriter{
		&fakeRewriter{name: "openrouter", available: true},
		&fakeRewriter{name: "anthropic", available: true},
	}

	tests := []struct {
		name string
		opts []OrchestratorOption
		key  string
		want []string
	}{
		{"registration_order", nil, "", []string{"openrouter", "anthropic"}},
		{"fallback_order", []OrchestratorOption{WithFallbackOrder([]string{"anthropic", "openrouter"})}, "", []string{"anthropic", "openrouter"}},
		{"named_policy", []OrchestratorOption{WithPolicy("cheap", []string{"openrouter"})}, "cheap", []string{"openrouter"}},
		{"default_policy_beats_order", []OrchestratorOption{
			WithFallbackOrder([]string{"openrouter"}),
			WithPolicies(map[string][]string{"default": {"anthropic"}}),
		}, "", []string{"anthropic"}},
		{"unknown_key_uses_default", []OrchestratorOption{WithFallbackOrder([]string{"anthropic"})}, "nope", []string{"anthropic"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewOrchestrator(rws, tt.opts...).Order(tt.key)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("Order(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestOrchestrator_Rewrite(t *testing.T) {
	a := &fakeRewriter{name: "a", err: errors.New("down"), available: true}
	b := &fakeRewriter{name: "b", text: "# Better", available: true}
	o := NewOrchestrator([]Rewriter{a, b}, WithFallbackOrder([]string{"missing", "a", "b"}))

	out := o.Rewrite(context.Background(), "# cleaned\n", "")
	if out.Fallback {
		t.Fatalf("unexpected fallback: %v", out.Err)
	}
	if out.Text != "# Better\n" || out.Provider != "b" {
		t.Errorf("Outcome = %+v", out)
	}
}

func TestOrchestrator_FallbackIsByteIdentical(t *testing.T) {
	buf := &bytes.Buffer{}
	logger.Init(logger.Options{Output: buf})
	defer logger.Init(logger.Options{})

	doc := "# Title\n\nBody with $x$ and ![i](/a.png)  \n"
	failing := NewLLMRewriter(&fakeProvider{err: errors.New("service down")}, DefaultLLMConfig())
	o := NewOrchestrator([]Rewriter{failing})

	out := o.Rewrite(context.Background(), doc, DefaultOrderKey)
	if !out.Fallback || out.Err == nil {
		t.Fatalf("Outcome = %+v, want fallback with error", out)
	}
	if out.Text != doc {
		t.Errorf("fallback text = %q, want input unchanged", out.Text)
	}
	if !strings.Contains(buf.String(), "WARN") {
		t.Errorf("fallback should log a warning, got %q", buf.String())
	}
}

func TestOrchestrator_NoBackends(t *testing.T) {
	o := NewOrchestrator(nil)
	out := o.Rewrite(context.Background(), "doc", "default")
	if !out.Fallback || out.Text != "doc" || !errors.Is(out.Err, ErrNoRewriterAvailable) {
		t.Errorf("Outcome = %+v, want fallback with ErrNoRewriterAvailable", out)
	}
}
