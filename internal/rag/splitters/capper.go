package splitters

import (
	"papernotes/internal/rag/schema"
)

// SectionCapper bounds how many segments a single document may index: at most
// MaxPerSection per section and MaxTotal overall. Visual segments are selected
// before text so figure and table descriptions survive the cut, but the
// returned slice keeps the original reading order.
type SectionCapper struct {
	MaxPerSection int
	MaxTotal      int
}

// NewSectionCapper creates a capper with the given limits.
func NewSectionCapper(maxPerSection, maxTotal int) *SectionCapper {
	return &SectionCapper{MaxPerSection: maxPerSection, MaxTotal: maxTotal}
}

// Cap selects which segments to keep.
func (c *SectionCapper) Cap(segments []*schema.Segment) []*schema.Segment {
	if len(segments) <= c.MaxTotal && c.allSectionsWithin(segments) {
		return segments
	}

	selected := make([]bool, len(segments))
	perSection := make(map[string]int)
	total := 0

	admit := func(i int) {
		if total >= c.MaxTotal {
			return
		}
		sec := segments[i].Section
		if perSection[sec] >= c.MaxPerSection {
			return
		}
		selected[i] = true
		perSection[sec]++
		total++
	}

	// Visuals first, then text, both in reading order.
	for i, seg := range segments {
		if seg.OriginalType == schema.ChunkTypeVisual {
			admit(i)
		}
	}
	for i, seg := range segments {
		if seg.OriginalType != schema.ChunkTypeVisual && !selected[i] {
			admit(i)
		}
	}

	out := make([]*schema.Segment, 0, total)
	for i, keep := range selected {
		if keep {
			out = append(out, segments[i])
		}
	}
	return out
}

func (c *SectionCapper) allSectionsWithin(segments []*schema.Segment) bool {
	perSection := make(map[string]int)
	for _, seg := range segments {
		perSection[seg.Section]++
		if perSection[seg.Section] > c.MaxPerSection {
			return false
		}
	}
	return true
}
