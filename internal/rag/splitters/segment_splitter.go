package splitters

import (
	"strings"

	"papernotes/internal/rag/schema"
)

// separators orders the split boundaries from most to least structural. The
// empty string is the hard fallback that cuts anywhere.
var separators = []string{"\n\n### ", "\n\n", "\n", " ", ""}

// SegmentSplitter merges consecutive same-section chunks and splits the
// result into token-bounded segments with overlap between neighbours.
type SegmentSplitter struct {
	Budget  int
	Overlap int
	counter TokenCounter
}

// NewSegmentSplitter creates a splitter with the given token budget and
// overlap.
func NewSegmentSplitter(budget, overlap int, counter TokenCounter) *SegmentSplitter {
	return &SegmentSplitter{Budget: budget, Overlap: overlap, counter: counter}
}

// Split turns the document's chunks into segments. Visual chunks map 1:1 and
// are never split; text chunks within a section are merged first so short
// paragraphs do not become undersized index points.
func (s *SegmentSplitter) Split(chunks []*schema.Chunk, source string) []*schema.Segment {
	var segments []*schema.Segment

	var buffer []*schema.Chunk
	flush := func() {
		if len(buffer) == 0 {
			return
		}
		segments = append(segments, s.splitGroup(buffer, source)...)
		buffer = nil
	}

	for _, c := range chunks {
		if c.Type == schema.ChunkTypeVisual {
			flush()
			segments = append(segments, &schema.Segment{
				Text:         c.Content,
				Source:       source,
				Section:      c.Section,
				ChunkID:      c.ID,
				ImageData:    c.ImageData(),
				OriginalType: schema.ChunkTypeVisual,
			})
			continue
		}
		if len(buffer) > 0 && buffer[0].Section != c.Section {
			flush()
		}
		buffer = append(buffer, c)
	}
	flush()

	return segments
}

// splitGroup joins one run of same-section chunks and partitions the text.
func (s *SegmentSplitter) splitGroup(group []*schema.Chunk, source string) []*schema.Segment {
	texts := make([]string, 0, len(group))
	for _, c := range group {
		texts = append(texts, c.Content)
	}
	joined := strings.Join(texts, "\n\n")

	var segments []*schema.Segment
	for _, part := range s.partition(joined) {
		segments = append(segments, &schema.Segment{
			Text:         part,
			Source:       source,
			Section:      group[0].Section,
			ChunkID:      group[0].ID,
			OriginalType: schema.ChunkTypeText,
		})
	}
	return segments
}

// partition splits text into pieces within the token budget, then merges them
// back into windows of at most Budget tokens, carrying up to Overlap tokens of
// trailing context into the next window. Overlap counts against the budget.
func (s *SegmentSplitter) partition(text string) []string {
	pieces := s.splitRecursive(text, separators)

	var out []string
	var window []string
	windowTokens := 0

	emit := func() {
		if len(window) == 0 {
			return
		}
		out = append(out, strings.Join(window, ""))

		// Seed the next window with the trailing pieces up to the overlap.
		var tail []string
		tailTokens := 0
		for i := len(window) - 1; i >= 0; i-- {
			t := s.counter.Count(window[i])
			if tailTokens+t > s.Overlap {
				break
			}
			tail = append([]string{window[i]}, tail...)
			tailTokens += t
		}
		window = tail
		windowTokens = tailTokens
	}

	for _, piece := range pieces {
		t := s.counter.Count(piece)
		if windowTokens+t > s.Budget && windowTokens > 0 {
			emit()
		}
		// The overlap tail yields to new content; a window never holds more
		// than Budget tokens, overlap included.
		for len(window) > 0 && windowTokens+t > s.Budget {
			windowTokens -= s.counter.Count(window[0])
			window = window[1:]
		}
		window = append(window, piece)
		windowTokens += t
	}
	if len(window) > 0 && strings.TrimSpace(strings.Join(window, "")) != "" {
		out = append(out, strings.Join(window, ""))
	}
	return out
}

// splitRecursive cuts text at the most structural separator that yields
// pieces within the budget, descending to finer separators as needed.
func (s *SegmentSplitter) splitRecursive(text string, seps []string) []string {
	if s.counter.Count(text) <= s.Budget {
		if text == "" {
			return nil
		}
		return []string{text}
	}
	if len(seps) == 0 {
		return s.hardCut(text)
	}

	sep := seps[0]
	if sep == "" {
		return s.hardCut(text)
	}

	parts := strings.SplitAfter(text, sep)
	if len(parts) == 1 {
		return s.splitRecursive(text, seps[1:])
	}

	var out []string
	for _, part := range parts {
		out = append(out, s.splitRecursive(part, seps[1:])...)
	}
	return out
}

// hardCut slices text by runes into budget-sized pieces when no separator
// helps. Counting per rune is slow but this path only runs on pathological
// unbroken text.
func (s *SegmentSplitter) hardCut(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	// Approximate runes-per-token from the whole string to avoid counting
	// tokens per rune.
	total := s.counter.Count(text)
	if total == 0 {
		return []string{text}
	}
	step := len(runes) * s.Budget / total
	if step < 1 {
		step = 1
	}
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + step
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}
