package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papernotes/internal/config"
	"papernotes/internal/rag/schema"
)

func TestEnhanceQueryFallsBack(t *testing.T) {
	p := NewQAPipeline(notesRetrieval(nil), newFakeLLM(nil), config.DefaultPipeline(), "strong")

	// No scripted reply means the enhancement call fails; the raw query must
	// survive untouched.
	assert.Equal(t, "what is BLEU?", p.EnhanceQuery(context.Background(), "what is BLEU?"))

	p = NewQAPipeline(notesRetrieval(nil), newFakeLLM(map[string][]string{
		"query_enhancement": {"BLEU metric machine translation evaluation"},
	}), config.DefaultPipeline(), "strong")
	assert.Equal(t, "BLEU metric machine translation evaluation", p.EnhanceQuery(context.Background(), "what is BLEU?"))
}

func TestAnswerStream(t *testing.T) {
	llmClient := newFakeLLM(map[string][]string{
		"query_enhancement": {"BLEU score transformer"},
		"factual_qa":        {"the model reaches 28.4 BLEU [Source 1]"},
	})

	docs := []*schema.Document{
		{ID: "p1", ChunkID: "c1", Text: "reaches 28.4 BLEU", Score: 0.9, DocID: "doc-1", Section: "Results"},
	}
	p := NewQAPipeline(notesRetrieval(docs), llmClient, config.DefaultPipeline(), "strong")

	stream, err := p.AnswerStream(context.Background(), "doc-1", "what score does it reach?")
	require.NoError(t, err)

	var answer string
	for delta := range stream {
		answer += delta
	}
	assert.Contains(t, answer, "28.4 BLEU")
	assert.Equal(t, 1, llmClient.callCount("factual_qa"))
	assert.Equal(t, 1, llmClient.callCount("query_enhancement"))
}

func TestAnswerStreamNoContext(t *testing.T) {
	p := NewQAPipeline(notesRetrieval(nil), newFakeLLM(nil), config.DefaultPipeline(), "strong")

	_, err := p.AnswerStream(context.Background(), "doc-1", "anything?")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoContext)
}

func TestNumberedContext(t *testing.T) {
	out := numberedContext([]*schema.Document{
		{Text: "first chunk", Section: "Method"},
		{Text: "second chunk", Section: "Results"},
	})
	assert.Contains(t, out, "[Source 1] (Method)\nfirst chunk")
	assert.Contains(t, out, "[Source 2] (Results)\nsecond chunk")
}
