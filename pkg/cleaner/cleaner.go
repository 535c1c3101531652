// Package cleaner provides deterministic Markdown normalisation passes for
// machine-extracted documents.
//
// Each pass implements Cleaner and can be composed with NewChain. The
// structural cleaner returned by NewStructural runs the standard passes to a
// fixed point so that cleaning its own output is a no-op.
package cleaner

// Cleaner transforms Markdown into a cleaner form.
type Cleaner interface {
	// Clean returns the transformed document.
	Clean(md string) (string, error)

	// Name returns the cleaner type for logging/debugging.
	Name() string
}

// DefaultPlaceholderTokens are the low-information caption words removed by
// the structural cleaner when they make up a whole line.
var DefaultPlaceholderTokens = []string{
	"screenshot",
	"other",
	"bar chart",
	"chart",
	"image",
	`temp\temp`,
	"temp/temp",
}

// DefaultCaptionTokens are the bare caption words removed by the raw
// pipeline's caption pass.
var DefaultCaptionTokens = []string{
	"other",
	"bar chart",
	"screenshot",
	"remote sensing",
}
