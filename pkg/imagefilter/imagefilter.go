// Package imagefilter applies a judgment report to a document: references to
// images judged useless are removed, references to useful images are pointed
// at their resolved location, and unjudged references are left untouched.
package imagefilter

import (
	"strings"

	"github.com/jmylchreest/docrefine/pkg/cleaner"
	"github.com/jmylchreest/docrefine/pkg/judgment"
	"github.com/jmylchreest/docrefine/pkg/mdref"
)

// Stats counts what Apply did to each reference.
type Stats struct {
	Removed   int
	Rewritten int
	Unjudged  int
}

type verdict struct {
	useful   bool
	fullPath string
}

// Filter is Apply without the statistics.
func Filter(doc string, records judgment.Report) string {
	out, _ := Apply(doc, records)
	return out
}

// Apply filters every image reference in doc against records. Records are
// matched by path key, so "a/b.png" and `a\b.png` name the same image; when a
// key repeats, the last record wins. The result has runs of blank lines
// collapsed and surrounding whitespace trimmed.
//
// Apply must run once per document with a single report.
func Apply(doc string, records judgment.Report) (string, Stats) {
	lookup := make(map[string]verdict, len(records))
	for _, rec := range records {
		lookup[mdref.Key(rec.ImagePath)] = verdict{useful: rec.IsUseful, fullPath: rec.FullPath}
	}

	var stats Stats
	var b strings.Builder
	last := 0
	for _, ref := range mdref.Find(doc) {
		b.WriteString(doc[last:ref.Start])
		last = ref.End

		v, ok := lookup[mdref.Key(ref.Target())]
		switch {
		case !ok:
			stats.Unjudged++
			b.WriteString(doc[ref.Start:ref.End])
		case !v.useful:
			stats.Removed++
		default:
			stats.Rewritten++
			target := v.fullPath
			if target == "" {
				target = ref.Target()
			}
			b.WriteString("![" + ref.Alt + "](" + target + ")")
		}
	}
	b.WriteString(doc[last:])

	return strings.TrimSpace(cleaner.CollapseBlankLines(b.String())), stats
}
