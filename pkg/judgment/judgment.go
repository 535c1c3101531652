// Package judgment defines the per-image usefulness record and its JSON
// report, the hand-off between image classification and image filtering.
package judgment

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Record is the usefulness verdict for one image reference.
type Record struct {
	// ImagePath is the reference target as written in the document.
	ImagePath string `json:"image_path" yaml:"image_path"`
	// FullPath is the resolved location of the image.
	FullPath string `json:"full_path" yaml:"full_path"`
	IsUseful bool   `json:"is_useful" yaml:"is_useful"`
	Reason   string `json:"reason" yaml:"reason"`
}

// Report is the ordered list of records produced for one document.
type Report []Record

// Useful returns the number of records judged useful.
func (r Report) Useful() int {
	n := 0
	for _, rec := range r {
		if rec.IsUseful {
			n++
		}
	}
	return n
}

// Header returns the column names used when rendering a report as a table.
func (r Report) Header() []string {
	return []string{"Image", "Full path", "Useful", "Reason"}
}

// Rows returns the report as table rows matching Header.
func (r Report) Rows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, rec := range r {
		rows = append(rows, []string{rec.ImagePath, rec.FullPath, strconv.FormatBool(rec.IsUseful), rec.Reason})
	}
	return rows
}

// Encode writes the report as an indented JSON array.
func Encode(w io.Writer, r Report) error {
	if r == nil {
		r = Report{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Decode reads a JSON array of records.
func Decode(rd io.Reader) (Report, error) {
	var r Report
	if err := json.NewDecoder(rd).Decode(&r); err != nil {
		return nil, fmt.Errorf("failed to decode judgment report: %w", err)
	}
	return r, nil
}

// WriteFile writes the report to path.
func WriteFile(path string, r Report) error {
	f, err := os.Create(path) //#nosec G304 -- report path is chosen by the pipeline
	if err != nil {
		return fmt.Errorf("failed to create judgment report: %w", err)
	}
	if err := Encode(f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write judgment report: %w", err)
	}
	return f.Close()
}

// ReadFile reads a report written by WriteFile.
func ReadFile(path string) (Report, error) {
	f, err := os.Open(path) //#nosec G304 -- report path is chosen by the caller
	if err != nil {
		return nil, fmt.Errorf("failed to open judgment report: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Decode(f)
}
