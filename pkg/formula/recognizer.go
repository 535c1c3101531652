package formula

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/jmylchreest/docrefine/internal/runner"
	"github.com/jmylchreest/docrefine/pkg/llm"
)

// CommandRecognizer runs an external recognition engine. Args is an argv
// template in which {image} is replaced by the image path; standard output
// is the LaTeX.
type CommandRecognizer struct {
	Args []string
}

// NewCommandRecognizer creates a recognizer for the argv template args.
func NewCommandRecognizer(args []string) *CommandRecognizer {
	return &CommandRecognizer{Args: args}
}

// Recognize runs the engine on imagePath.
func (c *CommandRecognizer) Recognize(ctx context.Context, imagePath string) (string, error) {
	out, err := runner.Run(ctx, runner.Expand(c.Args, map[string]string{"image": imagePath}))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Name returns the engine program name.
func (c *CommandRecognizer) Name() string {
	if len(c.Args) == 0 {
		return "command"
	}
	return c.Args[0]
}

const transcribePrompt = "Transcribe the mathematical formula in this image to LaTeX. " +
	"Reply with the LaTeX source only, without $ delimiters, code fences or commentary."

// VisionRecognizer asks a vision-capable model to transcribe the formula.
type VisionRecognizer struct {
	provider  llm.Provider
	maxTokens int
}

// NewVisionRecognizer creates a recognizer over provider.
func NewVisionRecognizer(provider llm.Provider) *VisionRecognizer {
	return &VisionRecognizer{provider: provider, maxTokens: 1024}
}

// Recognize sends the image to the model.
func (v *VisionRecognizer) Recognize(ctx context.Context, imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath) //#nosec G304 -- image path comes from the document's own references
	if err != nil {
		return "", err
	}
	mt := mimetype.Detect(data)
	mime, _, _ := strings.Cut(mt.String(), ";")
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("unsupported content type %s", mime)
	}

	resp, err := v.provider.Execute(ctx, llm.Request{
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: transcribePrompt,
			Images:  []llm.Image{{MIMEType: mime, Data: data}},
		}},
		MaxTokens: v.maxTokens,
	})
	if err != nil {
		return "", err
	}
	return llm.StripCodeFence(resp.Content), nil
}

// Name returns the backend name.
func (v *VisionRecognizer) Name() string {
	return v.provider.Name()
}
