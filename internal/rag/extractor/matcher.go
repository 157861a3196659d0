package extractor

import (
	"strings"

	"papernotes/internal/rag/schema"
)

// Matching geometry. Page coordinates have the origin at the top-left with
// y growing downward, so a caption sits at a larger y than its visual.
const (
	captionOverlapRatio = 0.3
	captionMaxGap       = 120.0
	captionConfidence   = 0.9

	contextOverlapRatio = 0.2
	contextMaxGap       = 350.0
	contextMinLength    = 40
	contextConfidence   = 0.6

	denseTextThreshold = 40 // combined words above which a visual reads as explained
)

// Matcher attaches nearby page text to visuals and scores how useful each
// visual would be in the final notes.
type Matcher struct {
	labels LabelDetector
}

// NewMatcher creates a matcher with the default caption detector.
func NewMatcher() *Matcher {
	return &Matcher{labels: RegexLabelDetector{}}
}

// Match enriches every visual in place with its caption, context, and
// usefulness score.
func (m *Matcher) Match(visuals []*schema.Visual, blocks []schema.TextBlock) {
	for _, v := range visuals {
		m.matchCaption(v, blocks)
		m.matchContext(v, blocks)
		v.TextDensity = wordCount(v.Caption) + wordCount(v.Context)
		v.UsefulnessScore = m.score(v)
	}
}

// matchCaption finds the nearest labelled block below the visual.
func (m *Matcher) matchCaption(v *schema.Visual, blocks []schema.TextBlock) {
	bestGap := captionMaxGap
	for _, b := range blocks {
		if b.Page != v.Page {
			continue
		}
		gap := b.BBox.Y0 - v.BBox.Y1
		if gap < 0 || gap >= bestGap {
			continue
		}
		if horizontalOverlap(v.BBox, b.BBox) <= captionOverlapRatio {
			continue
		}
		if !m.labels.IsCaption(b.Text) {
			continue
		}
		v.Caption = b.Text
		v.CaptionConfidence = captionConfidence
		bestGap = gap
	}
}

// matchContext finds the nearest substantial block above the visual, the text
// most likely to be discussing it.
func (m *Matcher) matchContext(v *schema.Visual, blocks []schema.TextBlock) {
	bestGap := contextMaxGap
	for _, b := range blocks {
		if b.Page != v.Page {
			continue
		}
		gap := v.BBox.Y0 - b.BBox.Y1
		if gap < 0 || gap >= bestGap {
			continue
		}
		if horizontalOverlap(v.BBox, b.BBox) <= contextOverlapRatio {
			continue
		}
		if len(b.Text) <= contextMinLength {
			continue
		}
		v.Context = b.Text
		v.ContextConfidence = contextConfidence
		bestGap = gap
	}
}

// score rates a visual in [0,1]. Tables are judged on structure, figures on
// how well the surrounding text explains them.
func (m *Matcher) score(v *schema.Visual) float64 {
	var score float64
	if v.Type == schema.ChunkTypeTable {
		if v.Accuracy >= 90 {
			score = 0.4
		} else {
			score = 0.2
		}
		if v.Rows >= 5 {
			score += 0.2
		}
		if v.Columns >= 3 {
			score += 0.2
		}
		score += 0.2
	} else {
		if v.Caption != "" {
			score = 0.4
		}
		if v.Context != "" {
			score += 0.3
		}
		if v.TextDensity > denseTextThreshold {
			score += 0.2
		}
		combined := strings.ToLower(v.Caption + " " + v.Context)
		if strings.Contains(combined, "architecture") {
			score += 0.1
		}
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// horizontalOverlap returns the shared horizontal extent as a fraction of the
// visual's width.
func horizontalOverlap(visual, block schema.BoundingBox) float64 {
	left := visual.X0
	if block.X0 > left {
		left = block.X0
	}
	right := visual.X1
	if block.X1 < right {
		right = block.X1
	}
	if right <= left {
		return 0
	}
	return (right - left) / visual.Width()
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
