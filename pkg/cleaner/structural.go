package cleaner

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	imageTarget  = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)`)
	imagePseudo  = regexp.MustCompile(`\[Image\]\(([^)]+)\)`)
	headingLine  = regexp.MustCompile(`(?m)^#{1,6}[^\S\n].*$`)
	blankLineRun = regexp.MustCompile(`\n{3,}`)
)

// StructuralConfig configures NewStructural.
type StructuralConfig struct {
	// PlaceholderTokens are removed when a line consists of nothing else.
	// Matching is case-insensitive and ignores surrounding whitespace.
	PlaceholderTokens []string

	// SectionKeyLength is how many leading characters of a section body
	// take part in its duplicate key.
	SectionKeyLength int
}

// DefaultStructuralConfig returns the standard token list and key length.
func DefaultStructuralConfig() StructuralConfig {
	return StructuralConfig{
		PlaceholderTokens: DefaultPlaceholderTokens,
		SectionKeyLength:  200,
	}
}

// NewStructural returns the structural cleaner: path normalisation,
// placeholder-line removal, consecutive-duplicate collapse, section dedup
// and whitespace normalisation, repeated until the output is stable.
//
// Input is expected to have its math spans masked.
func NewStructural(cfg StructuralConfig) Cleaner {
	if cfg.PlaceholderTokens == nil {
		cfg.PlaceholderTokens = DefaultPlaceholderTokens
	}
	if cfg.SectionKeyLength <= 0 {
		cfg.SectionKeyLength = 200
	}
	return NewFixedPoint(NewChain(
		NewPathNormalizer(),
		NewPlaceholderRemover(cfg.PlaceholderTokens),
		NewDuplicateLineCollapser(),
		NewSectionDeduplicator(cfg.SectionKeyLength),
		NewWhitespaceNormalizer(),
	), 0)
}

// PathNormalizer rewrites backslashes as forward slashes in image targets and
// in [Image](...) pseudo-links.
type PathNormalizer struct{}

// NewPathNormalizer creates a PathNormalizer.
func NewPathNormalizer() *PathNormalizer {
	return &PathNormalizer{}
}

// Clean normalises path separators.
func (c *PathNormalizer) Clean(md string) (string, error) {
	md = imageTarget.ReplaceAllStringFunc(md, func(m string) string {
		sub := imageTarget.FindStringSubmatch(m)
		return "![" + sub[1] + "](" + strings.ReplaceAll(sub[2], `\`, "/") + ")"
	})
	md = imagePseudo.ReplaceAllStringFunc(md, func(m string) string {
		sub := imagePseudo.FindStringSubmatch(m)
		return "[Image](" + strings.ReplaceAll(sub[1], `\`, "/") + ")"
	})
	return md, nil
}

// Name returns the cleaner type.
func (c *PathNormalizer) Name() string {
	return "paths"
}

// PlaceholderRemover drops lines whose only content is a placeholder token.
type PlaceholderRemover struct {
	tokens map[string]struct{}
}

// NewPlaceholderRemover creates a remover for tokens. A nil slice selects
// DefaultPlaceholderTokens.
func NewPlaceholderRemover(tokens []string) *PlaceholderRemover {
	if tokens == nil {
		tokens = DefaultPlaceholderTokens
	}
	return &PlaceholderRemover{tokens: tokenSet(tokens)}
}

// Clean removes placeholder lines.
func (c *PlaceholderRemover) Clean(md string) (string, error) {
	return removeTokenLines(md, c.tokens), nil
}

// Name returns the cleaner type.
func (c *PlaceholderRemover) Name() string {
	return "placeholders"
}

// DuplicateLineCollapser drops a line when its trimmed content equals the
// trimmed content of the line kept just before it.
type DuplicateLineCollapser struct{}

// NewDuplicateLineCollapser creates a DuplicateLineCollapser.
func NewDuplicateLineCollapser() *DuplicateLineCollapser {
	return &DuplicateLineCollapser{}
}

// Clean collapses consecutive duplicate lines.
func (c *DuplicateLineCollapser) Clean(md string) (string, error) {
	first := true
	var prev string
	return filterLines(md, func(line string) bool {
		trimmed := strings.TrimSpace(line)
		if !first && trimmed == prev {
			return false
		}
		first = false
		prev = trimmed
		return true
	}), nil
}

// Name returns the cleaner type.
func (c *DuplicateLineCollapser) Name() string {
	return "duplicate-lines"
}

// SectionDeduplicator removes a heading and its body when the same heading
// with the same body prefix has already appeared earlier in the document.
// Text before the first heading is always kept.
type SectionDeduplicator struct {
	keyLength int
}

// NewSectionDeduplicator creates a SectionDeduplicator comparing the first
// keyLength characters of each body.
func NewSectionDeduplicator(keyLength int) *SectionDeduplicator {
	return &SectionDeduplicator{keyLength: keyLength}
}

// Clean removes repeated sections.
func (c *SectionDeduplicator) Clean(md string) (string, error) {
	locs := headingLine.FindAllStringIndex(md, -1)
	if len(locs) == 0 {
		return md, nil
	}

	var b strings.Builder
	b.WriteString(md[:locs[0][0]])

	seen := make(map[string]struct{}, len(locs))
	for i, loc := range locs {
		end := len(md)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		heading := md[loc[0]:loc[1]]
		body := md[loc[1]:end]

		key := strings.TrimSpace(heading) + "::" + prefixRunes(strings.TrimSpace(body), c.keyLength)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		b.WriteString(heading)
		b.WriteString(body)
	}
	return b.String(), nil
}

// Name returns the cleaner type.
func (c *SectionDeduplicator) Name() string {
	return "sections"
}

// WhitespaceNormalizer right-trims every line, collapses runs of blank lines
// to one, and ends the document with exactly one newline.
type WhitespaceNormalizer struct{}

// NewWhitespaceNormalizer creates a WhitespaceNormalizer.
func NewWhitespaceNormalizer() *WhitespaceNormalizer {
	return &WhitespaceNormalizer{}
}

// Clean normalises whitespace.
func (c *WhitespaceNormalizer) Clean(md string) (string, error) {
	lines := strings.Split(md, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRightFunc(line, unicode.IsSpace)
	}
	md = strings.Join(lines, "\n")
	md = CollapseBlankLines(md)
	return strings.TrimSpace(md) + "\n", nil
}

// Name returns the cleaner type.
func (c *WhitespaceNormalizer) Name() string {
	return "whitespace"
}

// CollapseBlankLines replaces three or more consecutive newlines with two.
func CollapseBlankLines(md string) string {
	return blankLineRun.ReplaceAllString(md, "\n\n")
}

func filterLines(md string, keep func(line string) bool) string {
	lines := strings.Split(md, "\n")
	out := lines[:0]
	for _, line := range lines {
		if keep(line) {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func removeTokenLines(md string, tokens map[string]struct{}) string {
	return filterLines(md, func(line string) bool {
		_, banned := tokens[strings.ToLower(strings.TrimSpace(line))]
		return !banned
	})
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return set
}

func prefixRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
