package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"papernotes/internal/config"
	"papernotes/internal/embedding"
	"papernotes/internal/llm"
	"papernotes/internal/rag/prompts"
	"papernotes/internal/rag/schema"
	"papernotes/internal/rag/storages/vectorstore"
	"papernotes/pkg/logger"
)

// ErrNoChunks is returned when a document yields nothing indexable.
var ErrNoChunks = errors.New("document produced no indexable chunks")

// IngestReport summarizes one ingestion run. Ingestion is partial-success:
// individual segment failures are counted, not fatal.
type IngestReport struct {
	DocumentID string `json:"document_id"`
	Skipped    bool   `json:"skipped"` // document was already indexed
	Indexed    int    `json:"indexed"`
	Failed     int    `json:"failed"`
	Visuals    int    `json:"visuals"` // visuals that passed the usefulness gate
}

// IndexingPipeline orchestrates extraction, visual matching, segmentation,
// summarization, embedding, and storage for one document.
type IndexingPipeline struct {
	log       *logger.Logger
	extractor DocumentExtractor
	matcher   VisualMatcher
	splitter  SegmentSplitter
	capper    SegmentCapper
	embedder  embedding.Service
	store     VectorIndex
	llm       llm.Client
	cfg       config.PipelineConfig
	model     string // fast model for summaries and visual descriptions
}

// NewIndexingPipeline wires an indexing pipeline.
func NewIndexingPipeline(
	ex DocumentExtractor,
	matcher VisualMatcher,
	splitter SegmentSplitter,
	capper SegmentCapper,
	embedder embedding.Service,
	store VectorIndex,
	llmClient llm.Client,
	cfg config.PipelineConfig,
	model string,
) *IndexingPipeline {
	return &IndexingPipeline{
		log:       logger.New("indexing", ""),
		extractor: ex,
		matcher:   matcher,
		splitter:  splitter,
		capper:    capper,
		embedder:  embedder,
		store:     store,
		llm:       llmClient,
		cfg:       cfg,
		model:     model,
	}
}

// Run ingests one document. Re-ingesting an already indexed document is a
// no-op reported via IngestReport.Skipped.
func (p *IndexingPipeline) Run(ctx context.Context, sourceURL string) (*IngestReport, error) {
	docID := schema.DocumentID(sourceURL)
	report := &IngestReport{DocumentID: docID}
	log := p.log.WithField("document_id", docID)

	if err := p.store.EnsureDocumentIDIndex(ctx); err != nil {
		log.WithField("error", err.Error()).Warn("document_id index unavailable; filters fall back to brute force")
	}

	exists, err := p.store.HasDocument(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing index for %s: %w", docID, err)
	}
	if exists {
		log.Info("document already indexed, skipping")
		report.Skipped = true
		return report, nil
	}

	extraction, err := p.extractor.Extract(ctx, sourceURL)
	if err != nil {
		return nil, err
	}
	if extraction.Chunks.Empty() {
		return nil, fmt.Errorf("%w: %s", ErrNoChunks, sourceURL)
	}

	p.matcher.Match(extraction.Visuals, extraction.Blocks)
	visualChunks := p.describeVisuals(ctx, extraction.Visuals)
	report.Visuals = len(visualChunks)

	merged := mergeByPage(extraction.Chunks.Text, visualChunks)
	segments := p.capper.Cap(p.splitter.Split(merged, sourceURL))
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoChunks, sourceURL)
	}
	log.WithField("segments", len(segments)).Info("segmented document")

	batch := make([]*vectorstore.Point, 0, p.cfg.UpsertBatchSize)
	for _, seg := range segments {
		point, err := p.buildPoint(ctx, seg, docID)
		if err != nil {
			log.WithField("error", err.Error()).Warn("skipping segment")
			report.Failed++
			continue
		}
		batch = append(batch, point)

		if len(batch) >= p.cfg.UpsertBatchSize {
			if err := p.store.Upsert(ctx, batch); err != nil {
				return report, fmt.Errorf("failed to store batch: %w", err)
			}
			report.Indexed += len(batch)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := p.store.Upsert(ctx, batch); err != nil {
			return report, fmt.Errorf("failed to store batch: %w", err)
		}
		report.Indexed += len(batch)
	}

	if report.Indexed == 0 {
		return report, fmt.Errorf("%w: all %d segments failed", ErrNoChunks, report.Failed)
	}
	log.WithField("indexed", report.Indexed).WithField("failed", report.Failed).Info("ingestion finished")
	return report, nil
}

// buildPoint summarizes one segment and embeds the summary. Visual segments
// already carry a description and are stored verbatim.
func (p *IndexingPipeline) buildPoint(ctx context.Context, seg *schema.Segment, docID string) (*vectorstore.Point, error) {
	content := seg.Text
	docType := string(schema.ChunkTypeText)

	if seg.OriginalType == schema.ChunkTypeVisual {
		docType = string(schema.ChunkTypeVisual)
	} else {
		summary, err := p.llm.Complete(ctx, llm.Request{
			Template:  prompts.SegmentSummary,
			Vars:      map[string]string{"element": seg.Text},
			Model:     p.model,
			MaxTokens: p.cfg.SummaryMaxTokens,
		})
		if err != nil {
			// The raw segment still makes a workable index entry.
			p.log.WithField("error", err.Error()).Warn("segment summary failed, indexing raw text")
		} else if strings.TrimSpace(summary) != "" {
			content = summary
		}
	}

	vec, err := p.embedder.Embed(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}

	return &vectorstore.Point{
		ID:          uuid.New().String(),
		Content:     content,
		DocumentID:  docID,
		DocumentURL: seg.Source,
		ChunkID:     seg.ChunkID,
		Section:     seg.Section,
		DocType:     docType,
		ImageData:   seg.ImageData,
		Embedding:   *vec,
	}, nil
}

// describeVisuals turns visuals above the usefulness gate into description
// chunks. A failed description falls back to the caption so the visual is
// not lost.
func (p *IndexingPipeline) describeVisuals(ctx context.Context, visuals []*schema.Visual) []*schema.Chunk {
	var out []*schema.Chunk
	for _, v := range visuals {
		if v.UsefulnessScore < p.cfg.ConfidenceGate {
			continue
		}

		element := visualElement(v)
		description, err := p.llm.Complete(ctx, llm.Request{
			Template: prompts.VisualDescription,
			Vars:     map[string]string{"element": element},
			Model:    p.model,
		})
		if err != nil || strings.TrimSpace(description) == "" {
			if err != nil {
				p.log.WithField("visual", v.ID).WithField("error", err.Error()).Warn("visual description failed, using caption")
			}
			description = v.Caption
		}
		if strings.TrimSpace(description) == "" {
			continue
		}

		out = append(out, &schema.Chunk{
			ID:         v.ID,
			Type:       schema.ChunkTypeVisual,
			Section:    sectionForVisual(v),
			Content:    description,
			Page:       v.Page,
			Confidence: v.UsefulnessScore,
			Metadata: map[string]interface{}{
				schema.MetadataKeyImageData:  v.ImageData,
				schema.MetadataKeyPageNumber: v.Page,
				schema.MetadataKeyConfidence: v.UsefulnessScore,
			},
		})
	}
	return out
}

func visualElement(v *schema.Visual) string {
	var sb strings.Builder
	if v.Caption != "" {
		sb.WriteString("Caption: ")
		sb.WriteString(v.Caption)
		sb.WriteString("\n")
	}
	if v.Context != "" {
		sb.WriteString("Context: ")
		sb.WriteString(v.Context)
		sb.WriteString("\n")
	}
	if v.Type == schema.ChunkTypeTable && strings.TrimSpace(v.FlatText) != "" {
		sb.WriteString("Table text: ")
		sb.WriteString(v.FlatText)
		sb.WriteString("\n")
	}
	if sb.Len() == 0 {
		sb.WriteString("(no caption or context found)")
	}
	return sb.String()
}

func sectionForVisual(v *schema.Visual) string {
	if v.Type == schema.ChunkTypeTable {
		return "Tables"
	}
	return "Figures"
}

// mergeByPage interleaves text and visual chunks back into reading order.
func mergeByPage(text, visuals []*schema.Chunk) []*schema.Chunk {
	merged := make([]*schema.Chunk, 0, len(text)+len(visuals))
	merged = append(merged, text...)
	merged = append(merged, visuals...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Page < merged[j].Page
	})
	return merged
}
