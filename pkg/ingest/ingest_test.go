package ingest

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestMarkdownExtractor(t *testing.T) {
	src := filepath.Join(t.TempDir(), "notes.md")
	write(t, src, "# Notes\n")

	got, err := NewMarkdown().Extract(context.Background(), src, t.TempDir())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got != src {
		t.Errorf("Extract() = %q, want source used in place", got)
	}

	if _, err := NewMarkdown().Extract(context.Background(), filepath.Join(t.TempDir(), "none.md"), ""); err == nil {
		t.Error("Extract() on a missing file should fail")
	}
}

func TestHTMLExtractor(t *testing.T) {
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "page.html")
	write(t, src, `<html><head><style>body{}</style><script>alert(1)</script></head>
<body>
<nav>Menu</nav>
<h1>Lecture 2</h1>
<p>Results below.</p>
<img src="img/chart.png?v=3" alt="chart">
<img src="https://example.com/logo.png" alt="logo">
</body></html>`)
	workDir := t.TempDir()

	out, err := NewHTML().Extract(context.Background(), src, workDir)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if base := filepath.Base(out); filepath.Dir(out) != workDir || !strings.HasPrefix(base, "page-") || filepath.Ext(base) != ".md" {
		t.Errorf("output path = %q", out)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	md := string(data)

	if !strings.Contains(md, "# Lecture 2") {
		t.Errorf("heading missing:\n%s", md)
	}
	wantImg := filepath.ToSlash(filepath.Join(srcDir, "img", "chart.png"))
	if !strings.Contains(md, wantImg) {
		t.Errorf("image should point at %q:\n%s", wantImg, md)
	}
	if !strings.Contains(md, "https://example.com/logo.png") {
		t.Errorf("remote image should be untouched:\n%s", md)
	}
	for _, gone := range []string{"alert(1)", "body{}", "Menu"} {
		if strings.Contains(md, gone) {
			t.Errorf("output should not contain %q:\n%s", gone, md)
		}
	}
}

func TestAbsoluteImage(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"a.png", "/base/a.png"},
		{"a%20b.png", "/base/a b.png"},
		{"../up/a.png?v=2", "/up/a.png"},
		{"/abs/a.png", "/abs/a.png"},
		{"file:///abs/a.png", "/abs/a.png"},
		{"data:image/png;base64,AA", "data:image/png;base64,AA"},
	}
	for _, tt := range tests {
		if got := absoluteImage("/base", tt.src); got != filepath.ToSlash(tt.want) {
			t.Errorf("absoluteImage(%q) = %q, want %q", tt.src, got, tt.want)
		}
	}
}

func TestAutoExtractor_For(t *testing.T) {
	cmd := NewCommand([]string{"docling", "{input}", "--output", "{output}"})

	tests := []struct {
		name    string
		auto    *AutoExtractor
		source  string
		want    string
		wantErr bool
	}{
		{"markdown", NewAuto(nil), "a.md", "markdown", false},
		{"markdown_upper", NewAuto(nil), "A.MARKDOWN", "markdown", false},
		{"html", NewAuto(nil), "a.htm", "html", false},
		{"pdf_with_engine", NewAuto(cmd), "a.pdf", "docling", false},
		{"pdf_without_engine", NewAuto(nil), "a.pdf", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := tt.auto.For(tt.source)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedFormat) {
					t.Errorf("For() error = %v, want ErrUnsupportedFormat", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("For() error = %v", err)
			}
			if e.Name() != tt.want {
				t.Errorf("For() = %s, want %s", e.Name(), tt.want)
			}
		})
	}
}

func TestCommandExtractor(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	src := filepath.Join(t.TempDir(), "slides.pdf")
	write(t, src, "%PDF-1.4")

	engine := NewCommand([]string{"sh", "-c", `mkdir -p "$1/images" && printf '# Slides\n' > "$1/slides.md"`, "engine", "{output}"})
	out, err := engine.Extract(context.Background(), src, t.TempDir())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if filepath.Base(out) != "slides.md" || !strings.HasPrefix(filepath.Base(filepath.Dir(out)), "slides-") {
		t.Errorf("Extract() = %q", out)
	}
}

func TestCommandExtractor_SameStemConcurrent(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	root := t.TempDir()
	sources := []string{filepath.Join(root, "a", "lecture.pdf"), filepath.Join(root, "b", "lecture.pdf")}
	for _, src := range sources {
		write(t, src, filepath.Base(filepath.Dir(src)))
	}

	engine := NewCommand([]string{"sh", "-c", `cat "$1" > "$2/lecture.md"`, "engine", "{input}", "{output}"})
	workDir := filepath.Join(root, "work")

	outs := make([]string, len(sources))
	errs := make([]error, len(sources))
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src string) {
			defer wg.Done()
			outs[i], errs[i] = engine.Extract(context.Background(), src, workDir)
		}(i, src)
	}
	wg.Wait()

	for i, want := range []string{"a", "b"} {
		if errs[i] != nil {
			t.Fatalf("Extract(%s) error = %v", sources[i], errs[i])
		}
		data, err := os.ReadFile(outs[i])
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != want {
			t.Errorf("Extract(%s) content = %q, want %q", sources[i], data, want)
		}
	}
	if outs[0] == outs[1] {
		t.Errorf("both sources extracted to %s", outs[0])
	}
}

func TestCommandExtractor_NoOutput(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true not available")
	}
	src := filepath.Join(t.TempDir(), "slides.pdf")
	write(t, src, "%PDF-1.4")

	_, err := NewCommand([]string{"true"}).Extract(context.Background(), src, t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "no markdown") {
		t.Errorf("Extract() error = %v, want missing markdown error", err)
	}
}

func TestCommandExtractor_Unconfigured(t *testing.T) {
	_, err := NewCommand(nil).Extract(context.Background(), "a.pdf", t.TempDir())
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Extract() error = %v, want ErrUnsupportedFormat", err)
	}
}
