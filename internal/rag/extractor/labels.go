package extractor

import (
	"regexp"
	"strings"
)

// captionLabel matches the conventional figure/table labels papers put at the
// start of a caption, with arabic or roman numerals.
var captionLabel = regexp.MustCompile(`^(figure|fig\.?|table|tbl\.?)\s*(\d+|[ivxlcdm]+)`)

// LabelDetector decides whether a text block reads like a visual's caption.
type LabelDetector interface {
	IsCaption(text string) bool
}

// RegexLabelDetector is the default caption detector.
type RegexLabelDetector struct{}

// IsCaption reports whether text starts with a figure or table label.
func (RegexLabelDetector) IsCaption(text string) bool {
	return captionLabel.MatchString(strings.ToLower(strings.TrimSpace(text)))
}

var _ LabelDetector = RegexLabelDetector{}
