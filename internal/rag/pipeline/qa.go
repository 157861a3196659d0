package pipeline

import (
	"context"
	"fmt"
	"strings"

	"papernotes/internal/config"
	"papernotes/internal/llm"
	"papernotes/internal/rag/prompts"
	"papernotes/internal/rag/schema"
	"papernotes/pkg/logger"
)

// QAPipeline answers questions about one indexed document, grounded in
// retrieved chunks and streamed token by token.
type QAPipeline struct {
	log       *logger.Logger
	retrieval *RetrievalPipeline
	llm       llm.Client
	cfg       config.PipelineConfig
	model     string
}

// NewQAPipeline wires a question-answering pipeline.
func NewQAPipeline(retrieval *RetrievalPipeline, llmClient llm.Client, cfg config.PipelineConfig, model string) *QAPipeline {
	return &QAPipeline{
		log:       logger.New("qa", ""),
		retrieval: retrieval,
		llm:       llmClient,
		cfg:       cfg,
		model:     model,
	}
}

// EnhanceQuery rewrites a user query into academic phrasing. The original
// query is always a safe fallback.
func (p *QAPipeline) EnhanceQuery(ctx context.Context, query string) string {
	enhanced, err := p.llm.Complete(ctx, llm.Request{
		Template: prompts.QueryEnhancement,
		Vars:     map[string]string{"user_input": query},
		Model:    p.model,
	})
	if err != nil || strings.TrimSpace(enhanced) == "" {
		if err != nil {
			p.log.WithField("error", err.Error()).Warn("query enhancement failed, using original query")
		}
		return query
	}
	return strings.TrimSpace(enhanced)
}

// AnswerStream retrieves grounding for the question and streams the answer.
// Retrieval sees the question as the user asked it; the QA prompt gets the
// academically rephrased form.
func (p *QAPipeline) AnswerStream(ctx context.Context, documentID, question string) (<-chan string, error) {
	docs, err := p.retrieval.Retrieve(ctx, documentID, []string{question}, p.cfg.ChatRetrievalK)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoContext, documentID)
	}

	return p.llm.CompleteStream(ctx, llm.Request{
		Template: prompts.FactualQA,
		Vars: map[string]string{
			"context":  numberedContext(docs),
			"question": p.EnhanceQuery(ctx, question),
		},
		Model: p.model,
	})
}

// numberedContext renders retrieved chunks as citable numbered sources.
func numberedContext(docs []*schema.Document) string {
	var sb strings.Builder
	for i, d := range docs {
		fmt.Fprintf(&sb, "[Source %d] (%s)\n%s\n\n", i+1, d.Section, d.Text)
	}
	return sb.String()
}
