package cleaner

// CaptionTokenRemover drops lines that hold only a bare caption word. Unlike
// the structural cleaner it touches nothing else, so it is safe to run on
// unmasked text.
type CaptionTokenRemover struct {
	tokens map[string]struct{}
}

// NewCaptionTokenRemover creates a remover for tokens. A nil slice selects
// DefaultCaptionTokens.
func NewCaptionTokenRemover(tokens []string) *CaptionTokenRemover {
	if tokens == nil {
		tokens = DefaultCaptionTokens
	}
	return &CaptionTokenRemover{tokens: tokenSet(tokens)}
}

// Clean removes bare caption lines.
func (c *CaptionTokenRemover) Clean(md string) (string, error) {
	return removeTokenLines(md, c.tokens), nil
}

// Name returns the cleaner type.
func (c *CaptionTokenRemover) Name() string {
	return "captions"
}
