package splitters

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papernotes/internal/rag/schema"
)

func textSegment(section, text string) *schema.Segment {
	return &schema.Segment{Text: text, Section: section, OriginalType: schema.ChunkTypeText}
}

func visualSegment(section, text string) *schema.Segment {
	return &schema.Segment{Text: text, Section: section, OriginalType: schema.ChunkTypeVisual}
}

func TestCapPerSection(t *testing.T) {
	c := NewSectionCapper(2, 100)

	var segments []*schema.Segment
	for i := 0; i < 5; i++ {
		segments = append(segments, textSegment("Method", fmt.Sprintf("method %d", i)))
	}
	segments = append(segments, textSegment("Results", "results text"))

	out := c.Cap(segments)
	require.Len(t, out, 3)

	perSection := map[string]int{}
	for _, seg := range out {
		perSection[seg.Section]++
	}
	assert.Equal(t, 2, perSection["Method"])
	assert.Equal(t, 1, perSection["Results"])
}

func TestCapGlobalLimit(t *testing.T) {
	c := NewSectionCapper(10, 4)

	var segments []*schema.Segment
	for i := 0; i < 10; i++ {
		segments = append(segments, textSegment(fmt.Sprintf("Section %d", i), "text"))
	}

	out := c.Cap(segments)
	assert.Len(t, out, 4)
}

func TestCapPrioritizesVisualsButKeepsOrder(t *testing.T) {
	c := NewSectionCapper(2, 2)

	segments := []*schema.Segment{
		textSegment("Method", "first text"),
		textSegment("Method", "second text"),
		visualSegment("Method", "figure description"),
	}

	out := c.Cap(segments)
	require.Len(t, out, 2)
	// The visual survives the cut, and the output keeps reading order: the
	// surviving text segment precedes the visual as in the original slice.
	assert.Equal(t, "first text", out[0].Text)
	assert.Equal(t, "figure description", out[1].Text)
}

func TestCapNoopUnderLimits(t *testing.T) {
	c := NewSectionCapper(7, 100)
	segments := []*schema.Segment{
		textSegment("Intro", "a"),
		visualSegment("Intro", "b"),
	}
	out := c.Cap(segments)
	assert.Equal(t, segments, out)
}
