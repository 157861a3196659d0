package vectorstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"papernotes/internal/database/milvus"
	"papernotes/internal/embedding"
	"papernotes/internal/rag/schema"
	"papernotes/pkg/logger"
)

const (
	// Schema fields of the chunk index collection.
	FieldID          = "id"
	FieldContent     = "content"
	FieldDocumentID  = "document_id"
	FieldDocumentURL = "document_url"
	FieldChunkID     = "chunk_id"
	FieldSection     = "section"
	FieldDocType     = "doc_type"
	FieldImageData   = "image_data"
	FieldDense       = "dense"
	FieldSparse      = "sparse"

	varcharMaxLength = 65535
)

var outputFields = []string{
	FieldID, FieldContent, FieldDocumentID, FieldDocumentURL,
	FieldChunkID, FieldSection, FieldDocType, FieldImageData,
}

// Point is one index entry ready for storage: the summary text, its grounding
// payload, and both halves of the hybrid embedding.
type Point struct {
	ID          string
	Content     string
	DocumentID  string
	DocumentURL string
	ChunkID     string
	Section     string
	DocType     string
	ImageData   string
	Embedding   embedding.Hybrid
}

// HybridStore indexes document chunks in a Milvus collection carrying a dense
// and a sparse vector per point, and searches them with rank fusion.
type HybridStore struct {
	log        *logger.Logger
	client     client.Client
	collection string
	rrfK       int

	scalarIdxOnce sync.Once
	scalarIdxErr  error
}

// NewHybridStore creates a store over the shared Milvus connection.
func NewHybridStore(mc *milvus.Client, collection string, rrfK int) (*HybridStore, error) {
	if mc == nil || mc.Client == nil {
		return nil, fmt.Errorf("milvus client is not initialized")
	}
	if rrfK <= 0 {
		rrfK = 60
	}
	return &HybridStore{
		log:        logger.New("vectorstore", ""),
		client:     mc.Client,
		collection: collection,
		rrfK:       rrfK,
	}, nil
}

// EnsureCollection creates the chunk collection with its vector indexes when
// missing, then loads it. dim is the dense vector size reported by the
// embedding provider.
func (s *HybridStore) EnsureCollection(ctx context.Context, dim int) error {
	exists, err := s.client.HasCollection(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection '%s': %w", s.collection, err)
	}

	if !exists {
		collSchema := entity.NewSchema().
			WithName(s.collection).
			WithDescription("hybrid chunk index for research papers").
			WithField(entity.NewField().WithName(FieldID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(128).WithIsPrimaryKey(true)).
			WithField(entity.NewField().WithName(FieldContent).WithDataType(entity.FieldTypeVarChar).WithMaxLength(varcharMaxLength)).
			WithField(entity.NewField().WithName(FieldDocumentID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(64)).
			WithField(entity.NewField().WithName(FieldDocumentURL).WithDataType(entity.FieldTypeVarChar).WithMaxLength(2048)).
			WithField(entity.NewField().WithName(FieldChunkID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(128)).
			WithField(entity.NewField().WithName(FieldSection).WithDataType(entity.FieldTypeVarChar).WithMaxLength(512)).
			WithField(entity.NewField().WithName(FieldDocType).WithDataType(entity.FieldTypeVarChar).WithMaxLength(32)).
			WithField(entity.NewField().WithName(FieldImageData).WithDataType(entity.FieldTypeVarChar).WithMaxLength(varcharMaxLength)).
			WithField(entity.NewField().WithName(FieldDense).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(dim))).
			WithField(entity.NewField().WithName(FieldSparse).WithDataType(entity.FieldTypeSparseVector))

		if err := s.client.CreateCollection(ctx, collSchema, entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("failed to create collection '%s': %w", s.collection, err)
		}

		denseIdx, err := entity.NewIndexHNSW(entity.COSINE, 16, 200)
		if err != nil {
			return fmt.Errorf("failed to build dense index: %w", err)
		}
		if err := s.client.CreateIndex(ctx, s.collection, FieldDense, denseIdx, false); err != nil {
			return fmt.Errorf("failed to create dense index: %w", err)
		}

		sparseIdx, err := entity.NewIndexSparseInverted(entity.IP, 0.2)
		if err != nil {
			return fmt.Errorf("failed to build sparse index: %w", err)
		}
		if err := s.client.CreateIndex(ctx, s.collection, FieldSparse, sparseIdx, false); err != nil {
			return fmt.Errorf("failed to create sparse index: %w", err)
		}
		s.log.WithField("collection", s.collection).Info("created hybrid collection")
	}

	if err := s.client.LoadCollection(ctx, s.collection, false); err != nil {
		return fmt.Errorf("failed to load collection '%s': %w", s.collection, err)
	}
	return nil
}

// EnsureDocumentIDIndex creates the scalar index used by document-scoped
// filters. Errors that merely report the index already exists are swallowed so
// restarting the service stays idempotent.
func (s *HybridStore) EnsureDocumentIDIndex(ctx context.Context) error {
	s.scalarIdxOnce.Do(func() {
		idx := entity.NewScalarIndexWithType(entity.Inverted)
		if err := s.client.CreateIndex(ctx, s.collection, FieldDocumentID, idx, false); err != nil {
			s.log.WithField("error", err.Error()).Warn("document_id index creation reported an error")
			s.scalarIdxErr = err
		}
	})
	return s.scalarIdxErr
}

// HasDocument reports whether at least one point for the given document id is
// already indexed. A single-point scroll is enough; counting would scan more.
func (s *HybridStore) HasDocument(ctx context.Context, documentID string) (bool, error) {
	expr := fmt.Sprintf(`%s == "%s"`, FieldDocumentID, documentID)
	rs, err := s.client.Query(ctx, s.collection, nil, expr, []string{FieldID}, client.WithLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to probe document '%s': %w", documentID, err)
	}
	idCol := rs.GetColumn(FieldID)
	return idCol != nil && idCol.Len() > 0, nil
}

// Upsert writes one batch of points. Re-running an ingestion overwrites the
// same ids rather than duplicating them.
func (s *HybridStore) Upsert(ctx context.Context, points []*Point) error {
	if len(points) == 0 {
		return nil
	}

	ids := make([]string, len(points))
	contents := make([]string, len(points))
	docIDs := make([]string, len(points))
	docURLs := make([]string, len(points))
	chunkIDs := make([]string, len(points))
	sections := make([]string, len(points))
	docTypes := make([]string, len(points))
	imageData := make([]string, len(points))
	denseVecs := make([][]float32, len(points))
	sparseVecs := make([]entity.SparseEmbedding, len(points))

	dim := 0
	for i, p := range points {
		ids[i] = p.ID
		contents[i] = p.Content
		docIDs[i] = p.DocumentID
		docURLs[i] = p.DocumentURL
		chunkIDs[i] = p.ChunkID
		sections[i] = p.Section
		docTypes[i] = p.DocType
		imageData[i] = p.ImageData
		denseVecs[i] = p.Embedding.Dense
		if len(p.Embedding.Dense) > dim {
			dim = len(p.Embedding.Dense)
		}
		sparse, err := entity.NewSliceSparseEmbedding(p.Embedding.Sparse.Indices, p.Embedding.Sparse.Values)
		if err != nil {
			return fmt.Errorf("invalid sparse vector for point '%s': %w", p.ID, err)
		}
		sparseVecs[i] = sparse
	}

	_, err := s.client.Upsert(ctx, s.collection, "",
		entity.NewColumnVarChar(FieldID, ids),
		entity.NewColumnVarChar(FieldContent, contents),
		entity.NewColumnVarChar(FieldDocumentID, docIDs),
		entity.NewColumnVarChar(FieldDocumentURL, docURLs),
		entity.NewColumnVarChar(FieldChunkID, chunkIDs),
		entity.NewColumnVarChar(FieldSection, sections),
		entity.NewColumnVarChar(FieldDocType, docTypes),
		entity.NewColumnVarChar(FieldImageData, imageData),
		entity.NewColumnFloatVector(FieldDense, dim, denseVecs),
		entity.NewColumnSparseVectors(FieldSparse, sparseVecs),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert %d points: %w", len(points), err)
	}
	return nil
}

// HybridSearch runs one dense and one sparse search leg scoped to documentID
// and fuses them with reciprocal rank fusion. An empty documentID searches the
// whole collection.
func (s *HybridStore) HybridSearch(ctx context.Context, query *embedding.Hybrid, documentID string, topK int) ([]*schema.Document, error) {
	expr := ""
	if documentID != "" {
		expr = fmt.Sprintf(`%s == "%s"`, FieldDocumentID, documentID)
	}

	denseParam, err := entity.NewIndexHNSWSearchParam(128)
	if err != nil {
		return nil, fmt.Errorf("failed to build dense search params: %w", err)
	}
	denseReq := client.NewANNSearchRequest(FieldDense, entity.COSINE, expr,
		[]entity.Vector{entity.FloatVector(query.Dense)}, denseParam, topK)

	sparseVec, err := entity.NewSliceSparseEmbedding(query.Sparse.Indices, query.Sparse.Values)
	if err != nil {
		return nil, fmt.Errorf("invalid sparse query vector: %w", err)
	}
	sparseParam, err := entity.NewIndexSparseInvertedSearchParam(0)
	if err != nil {
		return nil, fmt.Errorf("failed to build sparse search params: %w", err)
	}
	sparseReq := client.NewANNSearchRequest(FieldSparse, entity.IP, expr,
		[]entity.Vector{sparseVec}, sparseParam, topK)

	results, err := s.client.HybridSearch(ctx, s.collection, nil, topK, outputFields,
		newReranker(s.rrfK), []*client.ANNSearchRequest{denseReq, sparseReq})
	if err != nil {
		return nil, fmt.Errorf("hybrid search failed: %w", err)
	}

	var docs []*schema.Document
	for _, res := range results {
		cols := varcharColumns(res.Fields)
		for i := 0; i < res.ResultCount; i++ {
			doc := &schema.Document{
				ID:        cols.at(FieldID, i),
				Text:      cols.at(FieldContent, i),
				Score:     float64(res.Scores[i]),
				ChunkID:   cols.at(FieldChunkID, i),
				Section:   cols.at(FieldSection, i),
				Source:    cols.at(FieldDocumentURL, i),
				DocID:     cols.at(FieldDocumentID, i),
				ImageData: cols.at(FieldImageData, i),
				Metadata: map[string]interface{}{
					FieldDocType: cols.at(FieldDocType, i),
				},
			}
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// varcharCols resolves result columns by name once per result set.
// newReranker builds the RRF fusion reranker the hybrid searches share.
func newReranker(k int) client.Reranker {
	return client.NewRRFReranker().WithK(float64(k))
}

type varcharCols map[string][]string

func varcharColumns(fields []entity.Column) varcharCols {
	cols := make(varcharCols, len(fields))
	for _, field := range fields {
		if vc, ok := field.(*entity.ColumnVarChar); ok {
			cols[field.Name()] = vc.Data()
		}
	}
	return cols
}

func (c varcharCols) at(name string, i int) string {
	data, ok := c[name]
	if !ok || i >= len(data) {
		return ""
	}
	return data[i]
}
