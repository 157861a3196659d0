package vectorstore

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"papernotes/internal/database/milvus"
	"papernotes/internal/embedding"
	"papernotes/internal/rag/schema"
	"papernotes/pkg/logger"
)

const (
	// Schema fields of the pre-built paper catalog collection.
	FieldTitle            = "title"
	FieldAuthors          = "authors"
	FieldAbstract         = "abstract"
	FieldDownloadURL      = "download_url"
	FieldPublicationDate  = "publication_date"
	FieldSourceRepository = "source_repository"
	FieldFieldOfStudy     = "field_of_study"
)

var catalogOutputFields = []string{
	FieldID, FieldTitle, FieldAuthors, FieldAbstract, FieldDownloadURL,
	FieldPublicationDate, FieldSourceRepository, FieldFieldOfStudy,
}

// CatalogStore reads the pre-built paper catalog collection. The catalog is
// populated by a separate crawler, so this store never writes.
type CatalogStore struct {
	log        *logger.Logger
	client     client.Client
	collection string
	rrfK       int
}

// NewCatalogStore creates a read-only view over the catalog collection.
func NewCatalogStore(mc *milvus.Client, collection string, rrfK int) (*CatalogStore, error) {
	if mc == nil || mc.Client == nil {
		return nil, fmt.Errorf("milvus client is not initialized")
	}
	if rrfK <= 0 {
		rrfK = 60
	}
	return &CatalogStore{
		log:        logger.New("catalog", ""),
		client:     mc.Client,
		collection: collection,
		rrfK:       rrfK,
	}, nil
}

// Load makes the catalog collection searchable. Missing catalogs are not
// fatal: ingestion by direct URL still works without one.
func (s *CatalogStore) Load(ctx context.Context) error {
	exists, err := s.client.HasCollection(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check catalog collection '%s': %w", s.collection, err)
	}
	if !exists {
		s.log.WithField("collection", s.collection).Warn("catalog collection does not exist; catalog lookups disabled")
		return milvus.ErrNotFound
	}
	if err := s.client.LoadCollection(ctx, s.collection, false); err != nil {
		return fmt.Errorf("failed to load catalog collection '%s': %w", s.collection, err)
	}
	return nil
}

// RetrieveMetadata fetches one catalog entry by its point id. Returns
// milvus.ErrNotFound when the id matches nothing.
func (s *CatalogStore) RetrieveMetadata(ctx context.Context, pointID string) (*schema.PaperMetadata, error) {
	expr := fmt.Sprintf(`%s == "%s"`, FieldID, pointID)
	rs, err := s.client.Query(ctx, s.collection, nil, expr, catalogOutputFields, client.WithLimit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog for '%s': %w", pointID, err)
	}

	cols := make(varcharCols, len(rs))
	for _, col := range rs {
		if vc, ok := col.(*entity.ColumnVarChar); ok {
			cols[col.Name()] = vc.Data()
		}
	}
	if len(cols[FieldID]) == 0 {
		return nil, milvus.ErrNotFound
	}
	return catalogEntry(cols, 0), nil
}

// Search runs a hybrid search over the catalog and returns scored paper
// metadata.
func (s *CatalogStore) Search(ctx context.Context, query *embedding.Hybrid, topK int) ([]*schema.PaperMetadata, error) {
	denseParam, err := entity.NewIndexHNSWSearchParam(128)
	if err != nil {
		return nil, fmt.Errorf("failed to build dense search params: %w", err)
	}
	denseReq := client.NewANNSearchRequest(FieldDense, entity.COSINE, "",
		[]entity.Vector{entity.FloatVector(query.Dense)}, denseParam, topK)

	sparseVec, err := entity.NewSliceSparseEmbedding(query.Sparse.Indices, query.Sparse.Values)
	if err != nil {
		return nil, fmt.Errorf("invalid sparse query vector: %w", err)
	}
	sparseParam, err := entity.NewIndexSparseInvertedSearchParam(0)
	if err != nil {
		return nil, fmt.Errorf("failed to build sparse search params: %w", err)
	}
	sparseReq := client.NewANNSearchRequest(FieldSparse, entity.IP, "",
		[]entity.Vector{sparseVec}, sparseParam, topK)

	results, err := s.client.HybridSearch(ctx, s.collection, nil, topK, catalogOutputFields,
		newReranker(s.rrfK), []*client.ANNSearchRequest{denseReq, sparseReq})
	if err != nil {
		return nil, fmt.Errorf("catalog search failed: %w", err)
	}

	var papers []*schema.PaperMetadata
	for _, res := range results {
		cols := varcharColumns(res.Fields)
		for i := 0; i < res.ResultCount; i++ {
			paper := catalogEntry(cols, i)
			paper.Score = float64(res.Scores[i])
			papers = append(papers, paper)
		}
	}
	return papers, nil
}

func catalogEntry(cols varcharCols, i int) *schema.PaperMetadata {
	return &schema.PaperMetadata{
		ID:               cols.at(FieldID, i),
		Title:            cols.at(FieldTitle, i),
		Authors:          cols.at(FieldAuthors, i),
		Abstract:         cols.at(FieldAbstract, i),
		DownloadURL:      cols.at(FieldDownloadURL, i),
		PublicationDate:  cols.at(FieldPublicationDate, i),
		SourceRepository: cols.at(FieldSourceRepository, i),
		FieldOfStudy:     cols.at(FieldFieldOfStudy, i),
	}
}
