package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papernotes/internal/config"
	"papernotes/internal/rag/extractor"
	"papernotes/internal/rag/schema"
	"papernotes/internal/rag/splitters"
)

const testSourceURL = "https://example.com/papers/attention.pdf"

func newIndexingPipeline(ex DocumentExtractor, store *fakeStore, llmClient *fakeLLM, cfg config.PipelineConfig) *IndexingPipeline {
	return NewIndexingPipeline(
		ex,
		extractor.NewMatcher(),
		splitters.NewSegmentSplitter(cfg.TokenBudget, cfg.TokenOverlap, wordCounter{}),
		splitters.NewSectionCapper(cfg.MaxPerSection, cfg.MaxTotalSegments),
		&fakeEmbedder{},
		store,
		llmClient,
		cfg,
		"fast",
	)
}

func sampleExtraction() *extractor.Extraction {
	ex := &extractor.Extraction{Chunks: &schema.ChunkSet{}}
	ex.Chunks.Text = []*schema.Chunk{
		{ID: "c1", Type: schema.ChunkTypeText, Section: "Introduction", Content: "We propose a new attention model.", Page: 1},
		{ID: "c2", Type: schema.ChunkTypeText, Section: "Method", Content: "The encoder stacks six identical layers.", Page: 2},
	}
	// A well-structured table passes the usefulness gate without any caption.
	table := &schema.Visual{
		ID:       "v1",
		Type:     schema.ChunkTypeTable,
		Page:     3,
		BBox:     schema.BoundingBox{X0: 0, Y0: 0, X1: 300, Y1: 200},
		Rows:     6,
		Columns:  4,
		Accuracy: 95,
		FlatText: "Model BLEU Params",
		ImageData: "table-img",
	}
	ex.Visuals = append(ex.Visuals, table)
	ex.Chunks.Tables = []*schema.Chunk{{ID: "v1", Type: schema.ChunkTypeTable, Section: "Results", Content: "<table></table>", Page: 3}}
	return ex
}

func TestIndexingRun(t *testing.T) {
	store := &fakeStore{existing: map[string]bool{}}
	llmClient := newFakeLLM(map[string][]string{
		"segment_summary":    {"SUMMARY"},
		"visual_description": {"The table presents BLEU scores per model."},
	})

	p := newIndexingPipeline(&fakeExtractor{extraction: sampleExtraction()}, store, llmClient, config.DefaultPipeline())
	report, err := p.Run(context.Background(), testSourceURL)
	require.NoError(t, err)

	assert.Equal(t, schema.DocumentID(testSourceURL), report.DocumentID)
	assert.False(t, report.Skipped)
	assert.Equal(t, 1, report.Visuals)
	assert.Equal(t, 0, report.Failed)
	require.Equal(t, report.Indexed, len(store.upserted))
	require.NotEmpty(t, store.upserted)

	var sawVisual bool
	for _, point := range store.upserted {
		assert.Equal(t, report.DocumentID, point.DocumentID)
		assert.Equal(t, testSourceURL, point.DocumentURL)
		assert.NotEmpty(t, point.ID)
		assert.NotEmpty(t, point.Section)
		if point.DocType == string(schema.ChunkTypeVisual) {
			sawVisual = true
			assert.Equal(t, "table-img", point.ImageData)
			assert.Contains(t, point.Content, "BLEU scores")
		} else {
			assert.Equal(t, "SUMMARY", point.Content, "text segments index their summary")
		}
	}
	assert.True(t, sawVisual, "the gated-in table must be indexed as a visual point")
}

func TestIndexingRunSkipsIndexedDocument(t *testing.T) {
	docID := schema.DocumentID(testSourceURL)
	store := &fakeStore{existing: map[string]bool{docID: true}}
	llmClient := newFakeLLM(nil)

	p := newIndexingPipeline(&fakeExtractor{extraction: sampleExtraction()}, store, llmClient, config.DefaultPipeline())
	report, err := p.Run(context.Background(), testSourceURL)
	require.NoError(t, err)

	assert.True(t, report.Skipped)
	assert.Zero(t, report.Indexed)
	assert.Empty(t, store.upserted, "a skipped run must write nothing")
}

func TestIndexingRunEmptyExtraction(t *testing.T) {
	store := &fakeStore{existing: map[string]bool{}}
	p := newIndexingPipeline(
		&fakeExtractor{extraction: &extractor.Extraction{Chunks: &schema.ChunkSet{}}},
		store, newFakeLLM(nil), config.DefaultPipeline(),
	)

	_, err := p.Run(context.Background(), testSourceURL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoChunks)
}

func TestIndexingRunGatesUselessVisuals(t *testing.T) {
	ex := &extractor.Extraction{Chunks: &schema.ChunkSet{}}
	ex.Chunks.Text = []*schema.Chunk{
		{ID: "c1", Type: schema.ChunkTypeText, Section: "Introduction", Content: "Intro text.", Page: 1},
	}
	// No caption, no context, no structure: scores 0 and stays out.
	ex.Visuals = []*schema.Visual{{
		ID: "v1", Type: schema.ChunkTypeImage, Page: 1,
		BBox: schema.BoundingBox{X0: 0, Y0: 0, X1: 100, Y1: 100}, ImageData: "decoration",
	}}
	ex.Chunks.Images = []*schema.Chunk{{ID: "v1", Type: schema.ChunkTypeImage, Page: 1}}

	store := &fakeStore{existing: map[string]bool{}}
	llmClient := newFakeLLM(map[string][]string{"segment_summary": {"SUMMARY"}})

	p := newIndexingPipeline(&fakeExtractor{extraction: ex}, store, llmClient, config.DefaultPipeline())
	report, err := p.Run(context.Background(), testSourceURL)
	require.NoError(t, err)

	assert.Zero(t, report.Visuals)
	assert.Zero(t, llmClient.callCount("visual_description"))
	for _, point := range store.upserted {
		assert.NotEqual(t, string(schema.ChunkTypeVisual), point.DocType)
	}
}

func TestIndexingRunSummaryFallback(t *testing.T) {
	ex := &extractor.Extraction{Chunks: &schema.ChunkSet{}}
	ex.Chunks.Text = []*schema.Chunk{
		{ID: "c1", Type: schema.ChunkTypeText, Section: "Method", Content: "Raw segment text survives.", Page: 1},
	}

	store := &fakeStore{existing: map[string]bool{}}
	// No scripted segment_summary reply: every summary call fails.
	llmClient := newFakeLLM(nil)

	p := newIndexingPipeline(&fakeExtractor{extraction: ex}, store, llmClient, config.DefaultPipeline())
	report, err := p.Run(context.Background(), testSourceURL)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Indexed)
	require.Len(t, store.upserted, 1)
	assert.True(t, strings.Contains(store.upserted[0].Content, "Raw segment text"),
		"a failed summary falls back to the raw text")
}
