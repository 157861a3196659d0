package pipeline

import (
	"context"

	"papernotes/internal/embedding"
	"papernotes/internal/rag/extractor"
	"papernotes/internal/rag/schema"
	"papernotes/internal/rag/storages/vectorstore"
)

// DocumentExtractor turns a source URL into typed chunks.
type DocumentExtractor interface {
	Extract(ctx context.Context, sourceURL string) (*extractor.Extraction, error)
}

// VisualMatcher attaches captions and usefulness scores to visuals.
type VisualMatcher interface {
	Match(visuals []*schema.Visual, blocks []schema.TextBlock)
}

// SegmentSplitter partitions chunks into token-bounded segments.
type SegmentSplitter interface {
	Split(chunks []*schema.Chunk, source string) []*schema.Segment
}

// SegmentCapper bounds segment volume per section and per document.
type SegmentCapper interface {
	Cap(segments []*schema.Segment) []*schema.Segment
}

// VectorIndex is the hybrid chunk index the pipelines write to and search.
type VectorIndex interface {
	EnsureDocumentIDIndex(ctx context.Context) error
	HasDocument(ctx context.Context, documentID string) (bool, error)
	Upsert(ctx context.Context, points []*vectorstore.Point) error
	HybridSearch(ctx context.Context, query *embedding.Hybrid, documentID string, topK int) ([]*schema.Document, error)
}

var _ VectorIndex = (*vectorstore.HybridStore)(nil)
