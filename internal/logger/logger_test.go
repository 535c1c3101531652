package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

// capture routes the process logger into a buffer for one test.
func capture(t *testing.T, opts Options) *bytes.Buffer {
	t.Helper()
	prev := current()
	t.Cleanup(func() { SetLogger(prev) })

	var buf bytes.Buffer
	opts.Output = &buf
	Init(opts)
	return &buf
}

func TestInit_Levels(t *testing.T) {
	warn := slog.LevelWarn

	tests := []struct {
		name  string
		opts  Options
		level slog.Level // lowest level emitted
	}{
		{"default", Options{}, slog.LevelInfo},
		{"debug", Options{Debug: true}, slog.LevelDebug},
		{"quiet", Options{Quiet: true}, slog.LevelError},
		{"quiet_wins_over_debug", Options{Debug: true, Quiet: true}, slog.LevelError},
		{"explicit_level", Options{Debug: true, Level: &warn}, slog.LevelWarn},
	}

	emit := map[slog.Level]func(string, ...any){
		slog.LevelDebug: Debug,
		slog.LevelInfo:  Info,
		slog.LevelWarn:  Warn,
		slog.LevelError: Error,
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := capture(t, tt.opts)
			for level, fn := range emit {
				buf.Reset()
				fn("stage complete", "stage", "clean")
				logged := buf.Len() > 0
				if want := level >= tt.level; logged != want {
					t.Errorf("%s logged = %v, want %v", level, logged, want)
				}
			}
		})
	}
}

func TestInit_JSON(t *testing.T) {
	buf := capture(t, Options{JSON: true})
	Info("document refined", "mode", "full", "removed", 2)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if rec["msg"] != "document refined" || rec["mode"] != "full" || rec["removed"] != float64(2) {
		t.Errorf("record = %v", rec)
	}
}

func TestInit_CustomLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := current()
	t.Cleanup(func() { SetLogger(prev) })

	Init(Options{
		Quiet:  true,
		Logger: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
	})
	Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("custom logger should ignore Quiet, got %q", buf.String())
	}
}

func TestContextVariants(t *testing.T) {
	buf := capture(t, Options{Debug: true})
	ctx := context.Background()

	tests := []struct {
		name string
		fn   func(context.Context, string, ...any)
		want string
	}{
		{"debug", DebugContext, "level=DEBUG"},
		{"info", InfoContext, "level=INFO"},
		{"warn", WarnContext, "level=WARN"},
		{"error", ErrorContext, "level=ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.fn(ctx, "rewrite unavailable", "chain", "fallback(ollama)")
			out := buf.String()
			if !strings.Contains(out, tt.want) || !strings.Contains(out, "chain=fallback(ollama)") {
				t.Errorf("output = %q", out)
			}
		})
	}
}

func TestWith(t *testing.T) {
	buf := capture(t, Options{})
	With("document", "lecture.md").Info("images classified", "images", 3)

	out := buf.String()
	for _, want := range []string{"document=lecture.md", "images=3"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestEnabled(t *testing.T) {
	ctx := context.Background()

	capture(t, Options{})
	if Enabled(ctx, slog.LevelDebug) {
		t.Error("debug should be disabled at the default level")
	}
	Init(Options{Debug: true})
	if !Enabled(ctx, slog.LevelDebug) {
		t.Error("debug should be enabled after Init(Debug)")
	}
}
