package rewrite

import "strings"

const instructions = "You are a helpful assistant that rewrites raw lecture notes into clear, concise, " +
	"and well-structured Markdown suitable for study and teaching. " +
	"Be precise. Preserve LaTeX math exactly: do NOT modify content inside $$...$$ or $...$. " +
	"Preserve image links and file paths exactly. Keep the original section headings unless " +
	"a better heading improves clarity, and use proper spacing and punctuation. " +
	"Remove placeholder tokens like 'screenshot', 'other' or 'bar chart', but keep their intent " +
	"(for example replace them with `[bar chart]` or a short caption). " +
	"Do not invent new equations or facts; clarify wording and remove duplicates. " +
	"When you write LaTeX yourself, use $$ <latex> $$ for block math and $ <latex> $ for inline math. " +
	`Never use \[ \] or \( \) as math delimiters.`

const payload = "Input markdown below. Produce rewritten markdown only, with no extra commentary. " +
	"Keep math and image links intact. Keep examples and list them with bolded labels. " +
	"If a heading is duplicated, merge its content. If an image is present, keep it with a short caption."

// BuildPrompt returns the rewrite instruction with doc embedded.
func BuildPrompt(doc string) string {
	var b strings.Builder
	b.Grow(len(instructions) + len(payload) + len(doc) + 64)
	b.WriteString(instructions)
	b.WriteString("\n\n")
	b.WriteString(payload)
	b.WriteString("\n\n### BEGIN INPUT\n\n")
	b.WriteString(doc)
	b.WriteString("\n\n### END INPUT\n\n### OUTPUT:")
	return b.String()
}
