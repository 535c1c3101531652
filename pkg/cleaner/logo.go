package cleaner

import "regexp"

// logoBlock matches a line reading "logo" followed by an image reference line,
// with blank lines allowed in between.
var logoBlock = regexp.MustCompile(`(?mi)^logo\s*\n\s*!\[[^\]]*\]\([^)]+\)\s*\n?`)

// LogoBlockStripper removes "logo" caption lines together with the image
// reference that follows them.
type LogoBlockStripper struct{}

// NewLogoBlockStripper creates a LogoBlockStripper.
func NewLogoBlockStripper() *LogoBlockStripper {
	return &LogoBlockStripper{}
}

// Clean strips logo blocks and collapses the blank lines they leave.
func (c *LogoBlockStripper) Clean(md string) (string, error) {
	return CollapseBlankLines(logoBlock.ReplaceAllString(md, "")), nil
}

// Name returns the cleaner type.
func (c *LogoBlockStripper) Name() string {
	return "logos"
}
