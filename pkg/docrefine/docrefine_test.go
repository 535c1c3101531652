package docrefine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jmylchreest/docrefine/pkg/judgment"
	"github.com/jmylchreest/docrefine/pkg/rewrite"
)

type staticClassifier struct {
	report judgment.Report
	err    error
	calls  int
	seen   string
}

func (s *staticClassifier) ClassifyMarkdown(ctx context.Context, md, baseDir string) (judgment.Report, error) {
	s.calls++
	s.seen = md
	return s.report, s.err
}

type recordingRewriter struct {
	text  string
	input string
}

func (r *recordingRewriter) Rewrite(ctx context.Context, doc, orderKey string) *rewrite.Outcome {
	r.input = doc
	if r.text == "" {
		return &rewrite.Outcome{Text: doc, Fallback: true, Err: rewrite.ErrNoRewriterAvailable}
	}
	return &rewrite.Outcome{Text: r.text, Provider: "fake"}
}

type slowClassifier struct{}

func (slowClassifier) ClassifyMarkdown(ctx context.Context, md, baseDir string) (judgment.Report, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

const lecture = `logo

![](img/logo.png)

# Lecture 2

## Introduction

Energy is $E = mc^2$ and
$$
\int_0^1 x\,dx
$$

![chart](img\chart.png)
![banner](img/banner.png)

screenshot
Other

## Summary

Energy is conserved.

## Summary

Energy is conserved.
`

func judgments() judgment.Report {
	return judgment.Report{
		{ImagePath: "img/chart.png", FullPath: "/work/img/chart.png", IsUseful: true, Reason: "chart"},
		{ImagePath: "img/banner.png", FullPath: "/work/img/banner.png", IsUseful: false, Reason: "decorative"},
	}
}

func newRefiner(t *testing.T, opts ...Option) *Refiner {
	t.Helper()
	opts = append([]Option{WithWorkDir(t.TempDir())}, opts...)
	r, err := New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

func TestFull(t *testing.T) {
	cl := &staticClassifier{report: judgments()}
	rw := &recordingRewriter{text: "# Polished"}
	r := newRefiner(t, WithClassifier(cl), WithRewriter(rw))

	res, err := r.Full(context.Background(), lecture, "/work/lecture.md")
	if err != nil {
		t.Fatalf("Full() error = %v", err)
	}

	if strings.Contains(cl.seen, "logo.png") {
		t.Error("logo block should be stripped before classification")
	}

	baseline := rw.input
	for _, want := range []string{"![chart](/work/img/chart.png)", "$E = mc^2$", "$$\n\\int_0^1 x\\,dx\n$$"} {
		if !strings.Contains(baseline, want) {
			t.Errorf("cleaned baseline missing %q:\n%s", want, baseline)
		}
	}
	for _, gone := range []string{"banner.png", "screenshot", "logo"} {
		if strings.Contains(baseline, gone) {
			t.Errorf("cleaned baseline should not contain %q:\n%s", gone, baseline)
		}
	}
	if strings.Count(baseline, "## Summary") != 1 {
		t.Errorf("duplicate section should be removed:\n%s", baseline)
	}
	if !strings.HasSuffix(baseline, "\n") || strings.HasSuffix(baseline, "\n\n") {
		t.Errorf("baseline should end with exactly one newline: %q", baseline)
	}

	if res.Text != "# Polished\n" {
		t.Errorf("Text = %q, want rewrite with trailing newline", res.Text)
	}
	if res.Filter.Removed != 1 || res.Filter.Rewritten != 1 {
		t.Errorf("Filter = %+v", res.Filter)
	}
	if res.MathSpans != 2 {
		t.Errorf("MathSpans = %d, want 2", res.MathSpans)
	}
	if res.ReportPath != "" {
		t.Error("report should not be kept by default")
	}
}

func TestFull_RewriteFallbackKeepsBaseline(t *testing.T) {
	rw := &recordingRewriter{}
	r := newRefiner(t, WithClassifier(&staticClassifier{report: judgments()}), WithRewriter(rw))

	res, err := r.Full(context.Background(), lecture, "/work/lecture.md")
	if err != nil {
		t.Fatalf("Full() error = %v", err)
	}
	if !res.Rewrite.Fallback {
		t.Error("Rewrite.Fallback should be set")
	}
	if res.Text != rw.input {
		t.Errorf("fallback text differs from cleaned baseline:\n%q\n%q", res.Text, rw.input)
	}
}

func TestFull_DefaultRewriterFallsBack(t *testing.T) {
	r := newRefiner(t, WithClassifier(&staticClassifier{}))
	res, err := r.Full(context.Background(), "# T\n\ntext\n", "/work/t.md")
	if err != nil {
		t.Fatalf("Full() error = %v", err)
	}
	if !res.Rewrite.Fallback || res.Text != "# T\n\ntext\n" {
		t.Errorf("Result = %+v", res.Rewrite)
	}
}

func TestRaw(t *testing.T) {
	r := newRefiner(t, WithClassifier(&staticClassifier{report: judgments()}))

	res, err := r.Raw(context.Background(), lecture+"\nremote sensing\n", "/work/lecture.md")
	if err != nil {
		t.Fatalf("Raw() error = %v", err)
	}
	if res.Rewrite != nil {
		t.Error("raw pipeline must not rewrite")
	}
	for _, gone := range []string{"banner.png", "Other", "remote sensing"} {
		if strings.Contains(res.Text, gone) {
			t.Errorf("raw output should not contain %q:\n%s", gone, res.Text)
		}
	}
	if !strings.Contains(res.Text, "![chart](/work/img/chart.png)") {
		t.Errorf("useful image should point at full path:\n%s", res.Text)
	}
}

func TestNoClassifier(t *testing.T) {
	r := newRefiner(t)
	if _, err := r.Full(context.Background(), "![x](a.png)", "/w/d.md"); !errors.Is(err, ErrNoClassifier) {
		t.Errorf("Full() error = %v, want ErrNoClassifier", err)
	}

	r = newRefiner(t, WithSkipClassification(true))
	res, err := r.Raw(context.Background(), "![x](a.png)", "/w/d.md")
	if err != nil {
		t.Fatalf("Raw() error = %v", err)
	}
	if res.Text != "![x](a.png)\n" {
		t.Errorf("unjudged image should be kept, got %q", res.Text)
	}
}

func TestClassifierErrorPropagates(t *testing.T) {
	cause := errors.New("broken")
	r := newRefiner(t, WithClassifier(&staticClassifier{err: cause}))
	if _, err := r.Raw(context.Background(), "x", "/w/d.md"); !errors.Is(err, cause) {
		t.Errorf("Raw() error = %v, want classifier error", err)
	}
}

func TestKeepReport(t *testing.T) {
	r := newRefiner(t, WithClassifier(&staticClassifier{report: judgments()}), WithKeepReport(true))
	res, err := r.Raw(context.Background(), lecture, "/work/lecture.md")
	if err != nil {
		t.Fatalf("Raw() error = %v", err)
	}
	if res.ReportPath == "" {
		t.Fatal("ReportPath should be set")
	}
	kept, err := judgment.ReadFile(res.ReportPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(kept) != 2 {
		t.Errorf("kept report has %d records, want 2", len(kept))
	}
}

func TestTimeoutAbortsBetweenStages(t *testing.T) {
	r := newRefiner(t, WithClassifier(slowClassifier{}), WithTimeout(10*time.Millisecond))
	_, err := r.Full(context.Background(), "![x](a.png)", "/w/d.md")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Full() error = %v, want deadline exceeded", err)
	}
}

func TestRefineFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "notes.md")
	if err := os.WriteFile(src, []byte("# Notes\n\n![fig](fig.png)\n\nimage\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cl := &staticClassifier{}
	r := newRefiner(t, WithClassifier(cl))
	res, err := r.RefineFile(context.Background(), src, ModeRaw)
	if err != nil {
		t.Fatalf("RefineFile() error = %v", err)
	}
	if res.Source != src || res.Markdown != src {
		t.Errorf("Source/Markdown = %q/%q", res.Source, res.Markdown)
	}
	if res.Text != "# Notes\n\n![fig](fig.png)\n" {
		t.Errorf("Text = %q", res.Text)
	}
	if res.Stages[0].Name != "extract" {
		t.Errorf("first stage = %q, want extract", res.Stages[0].Name)
	}

	r = newRefiner(t, WithExtractor(nil))
	if _, err := r.RefineFile(context.Background(), src, ModeFull); !errors.Is(err, ErrNoExtractor) {
		t.Errorf("RefineFile() error = %v, want ErrNoExtractor", err)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeFull, false},
		{"FULL", ModeFull, false},
		{" raw ", ModeRaw, false},
		{"fast", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseMode(%q) = %q, %v", tt.in, got, err)
		}
	}
}
