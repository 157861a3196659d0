package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papernotes/internal/config"
	"papernotes/internal/rag/schema"
)

const (
	actionableReport = `{"incorrect_claims":["claims 99% accuracy"],"unsupported_claims":[],"speculative_claims":[],"missing_core_information":[],"safe_sections":[]}`
	cleanReport      = `{"incorrect_claims":[],"unsupported_claims":[],"speculative_claims":[],"missing_core_information":[],"safe_sections":["1. Brief Overview"]}`
)

func notesRetrieval(docs []*schema.Document) *RetrievalPipeline {
	return NewRetrievalPipeline(&fakeEmbedder{}, &fakeStore{results: [][]*schema.Document{docs}})
}

func notesDocs() []*schema.Document {
	return []*schema.Document{
		{ID: "p1", ChunkID: "c1", Text: "the model reaches 28.4 BLEU", Score: 0.9, DocID: "doc-1"},
		{ID: "p2", ChunkID: "c2", Text: "trained on WMT14 for 3.5 days", Score: 0.8, DocID: "doc-1"},
		{ID: "p3", ChunkID: "c3", Text: "figure shows the encoder stack", Score: 0.7, DocID: "doc-1", ImageData: "img-a"},
		{ID: "p4", ChunkID: "c4", Text: "another view of the encoder", Score: 0.6, DocID: "doc-1", ImageData: "img-a"},
		{ID: "p5", ChunkID: "c5", Text: "ablation table", Score: 0.5, DocID: "doc-1", ImageData: "img-b"},
	}
}

func TestNotesRunRepairsOnce(t *testing.T) {
	llmClient := newFakeLLM(map[string][]string{
		"fact_extraction": {"FACTS"},
		"notes_synthesis": {"DRAFT NOTES"},
		"validation":      {actionableReport, cleanReport},
		"repair":          {"REPAIRED NOTES"},
	})

	p := NewNotesPipeline(notesRetrieval(notesDocs()), llmClient, config.DefaultPipeline(), "fast", "strong")
	result, err := p.Run(context.Background(), "doc-1")
	require.NoError(t, err)

	assert.Equal(t, "doc-1", result.DocumentID)
	assert.Equal(t, "REPAIRED NOTES", result.Notes)
	assert.Equal(t, 1, result.Iterations)
	assert.Equal(t, 2, llmClient.callCount("validation"))
	assert.Equal(t, 1, llmClient.callCount("repair"))
}

func TestNotesRunEarlyExitWhenClean(t *testing.T) {
	llmClient := newFakeLLM(map[string][]string{
		"fact_extraction": {"FACTS"},
		"notes_synthesis": {"DRAFT NOTES"},
		"validation":      {cleanReport},
	})

	p := NewNotesPipeline(notesRetrieval(notesDocs()), llmClient, config.DefaultPipeline(), "fast", "strong")
	result, err := p.Run(context.Background(), "doc-1")
	require.NoError(t, err)

	assert.Equal(t, "DRAFT NOTES", result.Notes)
	assert.Equal(t, 0, result.Iterations)
	assert.Equal(t, 0, llmClient.callCount("repair"))
}

func TestNotesRunBoundedIterations(t *testing.T) {
	llmClient := newFakeLLM(map[string][]string{
		"fact_extraction": {"FACTS"},
		"notes_synthesis": {"DRAFT NOTES"},
		"validation":      {actionableReport}, // always finds an issue
		"repair":          {"REPAIRED 1", "REPAIRED 2"},
	})

	cfg := config.DefaultPipeline()
	p := NewNotesPipeline(notesRetrieval(notesDocs()), llmClient, cfg, "fast", "strong")
	result, err := p.Run(context.Background(), "doc-1")
	require.NoError(t, err)

	assert.Equal(t, cfg.MaxIterations, result.Iterations)
	assert.Equal(t, "REPAIRED 2", result.Notes)
	assert.Equal(t, cfg.MaxIterations, llmClient.callCount("repair"))
}

func TestNotesRunSurvivesUnparsableValidation(t *testing.T) {
	llmClient := newFakeLLM(map[string][]string{
		"fact_extraction": {"FACTS"},
		"notes_synthesis": {"DRAFT NOTES"},
		"validation":      {"sorry, I cannot produce JSON today"},
	})

	p := NewNotesPipeline(notesRetrieval(notesDocs()), llmClient, config.DefaultPipeline(), "fast", "strong")
	result, err := p.Run(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "DRAFT NOTES", result.Notes)
	assert.Equal(t, 0, result.Iterations)
}

func TestNotesRunCollectsDistinctVisuals(t *testing.T) {
	llmClient := newFakeLLM(map[string][]string{
		"fact_extraction": {"FACTS"},
		"notes_synthesis": {"DRAFT NOTES"},
		"validation":      {cleanReport},
	})

	p := NewNotesPipeline(notesRetrieval(notesDocs()), llmClient, config.DefaultPipeline(), "fast", "strong")
	result, err := p.Run(context.Background(), "doc-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"img-a", "img-b"}, result.Visuals, "duplicate payloads collapse, order follows score")
}

func TestNotesRunNoContext(t *testing.T) {
	llmClient := newFakeLLM(nil)
	p := NewNotesPipeline(notesRetrieval(nil), llmClient, config.DefaultPipeline(), "fast", "strong")

	_, err := p.Run(context.Background(), "doc-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoContext)
}

func TestExtractFactsBatches(t *testing.T) {
	llmClient := newFakeLLM(map[string][]string{
		"fact_extraction": {"BATCH-1", "BATCH-2"},
	})

	cfg := config.DefaultPipeline()
	cfg.ExtractBatchSize = 2
	p := NewNotesPipeline(notesRetrieval(nil), llmClient, cfg, "fast", "strong")

	docs := []*schema.Document{
		{Text: "one"}, {Text: "two"}, {Text: "three"},
	}
	out, err := p.extractFacts(context.Background(), docs)
	require.NoError(t, err)

	assert.Equal(t, 2, llmClient.callCount("fact_extraction"))
	assert.Equal(t, "BATCH-1"+extractionJoiner+"BATCH-2", out)
}

func TestExtractJSONStripsFences(t *testing.T) {
	raw := "```json\n{\"safe_sections\":[]}\n```"
	assert.Equal(t, `{"safe_sections":[]}`, extractJSON(raw))

	assert.Equal(t, "no braces here", extractJSON("no braces here"))
}
