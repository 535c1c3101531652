package runner

import (
	"context"
	"errors"
	"os/exec"
	"reflect"
	"strings"
	"testing"
)

func TestExpand(t *testing.T) {
	got := Expand(
		[]string{"engine", "--in={input}", "{output}", "plain"},
		map[string]string{"input": "/a.pdf", "output": "/out"},
	)
	want := []string{"engine", "--in=/a.pdf", "/out", "plain"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expand() = %v, want %v", got, want)
	}
}

func TestRun(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	out, err := Run(context.Background(), []string{"sh", "-c", "printf hello"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if string(out) != "hello" {
		t.Errorf("Run() = %q, want hello", out)
	}

	_, err = Run(context.Background(), []string{"sh", "-c", "echo broken >&2; exit 3"})
	if err == nil || !strings.Contains(err.Error(), "broken") {
		t.Errorf("Run() error = %v, want stderr in error", err)
	}
}

func TestRun_Empty(t *testing.T) {
	if _, err := Run(context.Background(), nil); !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("Run(nil) error = %v, want ErrEmptyCommand", err)
	}
}
