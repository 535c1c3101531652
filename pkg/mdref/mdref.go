// Package mdref locates Markdown image references and normalises their
// targets so that the same image can be matched across stages.
package mdref

import (
	"path/filepath"
	"regexp"
	"strings"
)

// imageRef matches ![alt](target). Alt and target are non-greedy so that two
// references on one line stay separate.
var imageRef = regexp.MustCompile(`!\[(.*?)\]\((.*?)\)`)

// Pattern returns the compiled image reference expression. Submatch 1 is the
// alt text, submatch 2 the raw target.
func Pattern() *regexp.Regexp {
	return imageRef
}

// Ref is one image reference found in a document.
type Ref struct {
	Alt string
	// Path is the target exactly as written (untrimmed).
	Path string
	// Start and End are byte offsets of the whole reference.
	Start int
	End   int
}

// Target returns the target with surrounding whitespace removed.
func (r Ref) Target() string {
	return strings.TrimSpace(r.Path)
}

// Find returns every image reference in doc, in document order.
func Find(doc string) []Ref {
	matches := imageRef.FindAllStringSubmatchIndex(doc, -1)
	refs := make([]Ref, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, Ref{
			Alt:   doc[m[2]:m[3]],
			Path:  doc[m[4]:m[5]],
			Start: m[0],
			End:   m[1],
		})
	}
	return refs
}

// Key returns the lookup key for a path: backslash separated, otherwise
// unchanged. Two paths name the same image when their keys are equal.
func Key(path string) string {
	return strings.ReplaceAll(path, "/", `\`)
}

// ToSlash rewrites backslashes as forward slashes.
func ToSlash(path string) string {
	return strings.ReplaceAll(path, `\`, "/")
}

// IsRemote reports whether the target points at a URL rather than a file.
func IsRemote(path string) bool {
	p := strings.ToLower(strings.TrimSpace(path))
	return strings.HasPrefix(p, "http://") ||
		strings.HasPrefix(p, "https://") ||
		strings.HasPrefix(p, "data:")
}

// Resolve returns the filesystem location of path relative to baseDir.
// Absolute paths are returned unchanged.
func Resolve(baseDir, path string) string {
	native := filepath.FromSlash(ToSlash(path))
	if filepath.IsAbs(native) {
		return path
	}
	return filepath.Clean(filepath.Join(baseDir, native))
}

// Context returns up to radius runes of doc on either side of the byte range
// [start, end), including the range itself.
func Context(doc string, start, end, radius int) string {
	before := []rune(doc[:start])
	after := []rune(doc[end:])

	from := len(before) - radius
	if from < 0 {
		from = 0
	}
	to := radius
	if to > len(after) {
		to = len(after)
	}
	return string(before[from:]) + doc[start:end] + string(after[:to])
}
