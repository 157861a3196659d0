package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"papernotes/internal/config"
	"papernotes/internal/llm"
	"papernotes/internal/rag/prompts"
	"papernotes/internal/rag/schema"
	"papernotes/pkg/logger"
)

// ErrNoContext is returned when a notes run finds nothing indexed for the
// document.
var ErrNoContext = errors.New("no indexed content for document")

const (
	batchJoiner      = "\n\n---\n\n"
	extractionJoiner = "\n\n=== CHUNK ===\n\n"
)

// NotesPipeline synthesizes structured notes from a document's index via a
// two-stage map/reduce: per-batch fact extraction, then one synthesis pass
// refined by a bounded validate/repair loop.
type NotesPipeline struct {
	log       *logger.Logger
	retrieval *RetrievalPipeline
	llm       llm.Client
	cfg       config.PipelineConfig
	extract   string // fast model for stage-1 extraction
	synthesis string // stronger model for drafting, validation, repair
}

// NewNotesPipeline wires a notes pipeline.
func NewNotesPipeline(retrieval *RetrievalPipeline, llmClient llm.Client, cfg config.PipelineConfig, extractModel, synthesisModel string) *NotesPipeline {
	return &NotesPipeline{
		log:       logger.New("notes", ""),
		retrieval: retrieval,
		llm:       llmClient,
		cfg:       cfg,
		extract:   extractModel,
		synthesis: synthesisModel,
	}
}

// Run produces the final notes for one indexed document.
func (p *NotesPipeline) Run(ctx context.Context, documentID string) (*schema.NotesResult, error) {
	log := p.log.WithField("document_id", documentID)

	docs, err := p.retrieval.Retrieve(ctx, documentID, notesBattery, p.cfg.NotesRetrievalK)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoContext, documentID)
	}
	log.WithField("retrieved", len(docs)).Info("retrieval battery finished")

	source, err := p.extractFacts(ctx, docs)
	if err != nil {
		return nil, err
	}

	notes, err := p.llm.Complete(ctx, llm.Request{
		Template:  prompts.NotesSynthesis,
		Vars:      map[string]string{"element": source},
		Model:     p.synthesis,
		MaxTokens: p.cfg.NotesMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("notes synthesis failed: %w", err)
	}

	iterations := 0
	for iterations < p.cfg.MaxIterations {
		report, err := p.validate(ctx, notes, source)
		if err != nil {
			// An unparsable review is not worth failing the whole run over;
			// the draft stands.
			log.WithField("error", err.Error()).Warn("validation pass failed, keeping current notes")
			break
		}
		if !report.Actionable() {
			log.Info("validation found nothing to repair")
			break
		}

		repaired, err := p.repair(ctx, notes, report)
		if err != nil {
			log.WithField("error", err.Error()).Warn("repair pass failed, keeping current notes")
			break
		}
		notes = repaired
		iterations++
	}

	return &schema.NotesResult{
		DocumentID: documentID,
		Notes:      notes,
		Visuals:    topVisuals(docs, p.cfg.MaxVisuals),
		Iterations: iterations,
	}, nil
}

// extractFacts runs the stage-1 extraction over the retrieved chunks in
// fixed-size batches and merges the outputs.
func (p *NotesPipeline) extractFacts(ctx context.Context, docs []*schema.Document) (string, error) {
	var extractions []string
	for start := 0; start < len(docs); start += p.cfg.ExtractBatchSize {
		end := start + p.cfg.ExtractBatchSize
		if end > len(docs) {
			end = len(docs)
		}

		texts := make([]string, 0, end-start)
		for _, d := range docs[start:end] {
			texts = append(texts, d.Text)
		}

		out, err := p.llm.Complete(ctx, llm.Request{
			Template: prompts.FactExtraction,
			Vars:     map[string]string{"element": strings.Join(texts, batchJoiner)},
			Model:    p.extract,
		})
		if err != nil {
			return "", fmt.Errorf("fact extraction failed on batch %d: %w", start/p.cfg.ExtractBatchSize, err)
		}
		extractions = append(extractions, out)
	}
	return strings.Join(extractions, extractionJoiner), nil
}

func (p *NotesPipeline) validate(ctx context.Context, notes, source string) (*schema.ValidationReport, error) {
	raw, err := p.llm.Complete(ctx, llm.Request{
		Template: prompts.Validation,
		Vars:     map[string]string{"notes": notes, "source": source},
		Model:    p.synthesis,
	})
	if err != nil {
		return nil, err
	}

	var report schema.ValidationReport
	if err := json.Unmarshal([]byte(extractJSON(raw)), &report); err != nil {
		return nil, fmt.Errorf("failed to parse validation report: %w", err)
	}
	return &report, nil
}

func (p *NotesPipeline) repair(ctx context.Context, notes string, report *schema.ValidationReport) (string, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return "", err
	}
	return p.llm.Complete(ctx, llm.Request{
		Template:  prompts.Repair,
		Vars:      map[string]string{"validation": string(reportJSON), "notes": notes},
		Model:     p.synthesis,
		MaxTokens: p.cfg.NotesMaxTokens,
	})
}

// extractJSON strips code fences and surrounding prose from a model response
// that should be a single JSON object.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return raw
	}
	return raw[start : end+1]
}

// topVisuals picks the best-scored distinct visual payloads from the
// retrieved set. docs are already sorted by score.
func topVisuals(docs []*schema.Document, limit int) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, d := range docs {
		if d.ImageData == "" {
			continue
		}
		if _, ok := seen[d.ImageData]; ok {
			continue
		}
		seen[d.ImageData] = struct{}{}
		out = append(out, d.ImageData)
		if len(out) >= limit {
			break
		}
	}
	return out
}
