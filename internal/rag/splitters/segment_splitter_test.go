package splitters

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papernotes/internal/rag/schema"
)

// wordCounter approximates tokens as whitespace-separated words so tests run
// without tokenizer data.
type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

func textChunk(id, section, content string) *schema.Chunk {
	return &schema.Chunk{ID: id, Type: schema.ChunkTypeText, Section: section, Content: content}
}

func TestSplitRespectsBudget(t *testing.T) {
	s := NewSegmentSplitter(20, 5, wordCounter{})

	long := strings.Repeat("alpha beta gamma delta. ", 30) // 120 words
	segments := s.Split([]*schema.Chunk{textChunk("c1", "Method", long)}, "http://example.com/paper.pdf")

	require.NotEmpty(t, segments)
	assert.Greater(t, len(segments), 1, "a 120-word chunk must not fit a 20-token budget")
	for _, seg := range segments {
		assert.LessOrEqual(t, wordCounter{}.Count(seg.Text), 20,
			"segment exceeds the token budget: %q", seg.Text)
		assert.Equal(t, "Method", seg.Section)
		assert.Equal(t, "http://example.com/paper.pdf", seg.Source)
	}
}

func TestSplitMergesSmallChunksWithinSection(t *testing.T) {
	s := NewSegmentSplitter(100, 10, wordCounter{})

	segments := s.Split([]*schema.Chunk{
		textChunk("c1", "Intro", "short paragraph one"),
		textChunk("c2", "Intro", "short paragraph two"),
		textChunk("c3", "Method", "different section"),
	}, "src")

	require.Len(t, segments, 2, "same-section chunks under budget must merge")
	assert.Contains(t, segments[0].Text, "paragraph one")
	assert.Contains(t, segments[0].Text, "paragraph two")
	assert.Equal(t, "Intro", segments[0].Section)
	assert.Equal(t, "Method", segments[1].Section)
}

func TestSplitVisualChunksAreNeverSplit(t *testing.T) {
	s := NewSegmentSplitter(5, 1, wordCounter{})

	visual := &schema.Chunk{
		ID:      "v1",
		Type:    schema.ChunkTypeVisual,
		Section: "Figures",
		Content: "a long description of the model architecture diagram spanning many words indeed",
		Metadata: map[string]interface{}{
			schema.MetadataKeyImageData: "imgpayload",
		},
	}
	segments := s.Split([]*schema.Chunk{visual}, "src")

	require.Len(t, segments, 1)
	assert.Equal(t, schema.ChunkTypeVisual, segments[0].OriginalType)
	assert.Equal(t, "v1", segments[0].ChunkID)
	assert.Equal(t, "imgpayload", segments[0].ImageData)
	assert.Equal(t, visual.Content, segments[0].Text)
}

func TestSplitOverlapCountsAgainstBudget(t *testing.T) {
	s := NewSegmentSplitter(20, 5, wordCounter{})

	para := func(n int) string {
		return strings.TrimSpace(strings.Repeat("w ", n))
	}
	// A short middle paragraph becomes the overlap seed for the next window;
	// the window must still stay within the budget when the next paragraph
	// joins it.
	text := para(18) + "\n\n" + para(4) + "\n\n" + para(18)

	segments := s.Split([]*schema.Chunk{textChunk("c1", "Results", text)}, "src")

	require.Greater(t, len(segments), 1)
	for _, seg := range segments {
		count := wordCounter{}.Count(seg.Text)
		assert.LessOrEqual(t, count, 20, "overlap pushed a segment past the budget: %d tokens", count)
	}
}

func TestSplitOverlapCarriesContext(t *testing.T) {
	s := NewSegmentSplitter(10, 4, wordCounter{})

	var words []string
	for i := 0; i < 30; i++ {
		words = append(words, "w")
	}
	segments := s.Split([]*schema.Chunk{textChunk("c1", "Body", strings.Join(words, " "))}, "src")

	require.Greater(t, len(segments), 1)
	// Consecutive segments share trailing text.
	first := strings.Fields(segments[0].Text)
	second := strings.Fields(segments[1].Text)
	require.NotEmpty(t, first)
	require.NotEmpty(t, second)
	assert.Equal(t, first[len(first)-1], second[0], "overlap should repeat the window tail")
}
