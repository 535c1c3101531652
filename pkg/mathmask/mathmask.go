// Package mathmask hides LaTeX spans behind opaque tokens so that text
// transforms cannot alter them, and puts them back afterwards.
//
// Block spans ($$...$$, possibly multi-line) are masked first, then inline
// spans ($...$ on a single line, neither delimiter touching another $).
// Both kinds share one counter so every token in a document is unique.
package mathmask

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind distinguishes block and inline math.
type Kind string

const (
	KindDisplay Kind = "DISPLAY"
	KindInline  Kind = "INLINE"
)

var blockMath = regexp.MustCompile(`(?s)\$\$.*?\$\$`)

// fenceBase brackets each token. It is a private-use code point, so it only
// appears in natural text if the author put it there on purpose; Mask steps
// to the next code point when that happens.
const fenceBase = '\uE000'

// Span is one masked math region.
type Span struct {
	Token    string
	Original string
	Kind     Kind
}

// TokenMap records the spans hidden by one call to Mask. It is owned by the
// caller for the lifetime of a single document.
type TokenMap struct {
	spans []Span
}

// Len returns the number of masked spans.
func (m *TokenMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.spans)
}

// Spans returns the masked spans in the order they were assigned.
func (m *TokenMap) Spans() []Span {
	if m == nil {
		return nil
	}
	out := make([]Span, len(m.spans))
	copy(out, m.spans)
	return out
}

// Mask replaces every math span in text with a token and returns the masked
// text with the map needed to undo it. Unterminated delimiters are left as
// they are.
func Mask(text string) (string, *TokenMap) {
	m := &TokenMap{}
	fence := pickFence(text)

	newToken := func(kind Kind, original string) string {
		tok := fmt.Sprintf("%sMATH_%s_%d%s", fence, kind, len(m.spans), fence)
		m.spans = append(m.spans, Span{Token: tok, Original: original, Kind: kind})
		return tok
	}

	masked := blockMath.ReplaceAllStringFunc(text, func(s string) string {
		return newToken(KindDisplay, s)
	})
	masked = replaceInline(masked, fence, func(s string) string {
		return newToken(KindInline, s)
	})
	return masked, m
}

// Restore substitutes every token in text with the span it stands for.
// Tokens that no longer appear are ignored. Spans are restored newest first,
// so a token held inside a later span's original is still replaced.
func Restore(text string, m *TokenMap) string {
	for i := m.Len() - 1; i >= 0; i-- {
		s := m.spans[i]
		text = strings.ReplaceAll(text, s.Token, s.Original)
	}
	return text
}

func pickFence(text string) string {
	r := fenceBase
	for strings.ContainsRune(text, r) {
		r++
	}
	return string(r)
}

// replaceInline finds single-dollar spans. An opening $ must not be preceded
// or followed by $, the closing $ likewise, the body is non-empty and the
// span crosses neither a newline nor a token fence. The first valid closing $
// ends the span.
func replaceInline(text, fence string, repl func(string) string) string {
	isDollar := func(i int) bool {
		return i >= 0 && i < len(text) && text[i] == '$'
	}

	var b strings.Builder
	last := 0
	for i := 0; i < len(text); i++ {
		if text[i] != '$' || isDollar(i-1) || isDollar(i+1) || strings.HasPrefix(text[i+1:], fence) {
			continue
		}
		end := -1
		for j := i + 2; j < len(text); j++ {
			if text[j] == '\n' || text[j-1] == '\n' || strings.HasPrefix(text[j:], fence) {
				break
			}
			if text[j] == '$' && !isDollar(j-1) && !isDollar(j+1) {
				end = j
				break
			}
		}
		if end < 0 {
			continue
		}
		b.WriteString(text[last:i])
		b.WriteString(repl(text[i : end+1]))
		last = end + 1
		i = end
	}
	if last == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}
