package embedding

import (
	"context"
	"fmt"
	"sync"
)

// SparseVector is a term-weighted vector in index/value form, matching the
// wire shape the vector database expects for sparse search.
type SparseVector struct {
	Indices []uint32
	Values  []float32
}

// Hybrid pairs the dense (semantic) and sparse (lexical) representations of
// one text.
type Hybrid struct {
	Dense  []float32
	Sparse SparseVector
}

// DenseModel is a provider that turns text into a dense vector.
type DenseModel interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Service is the embedding collaborator consumed by the pipelines: one call
// yields both halves of the hybrid pair.
type Service interface {
	Embed(ctx context.Context, text string) (*Hybrid, error)
	// Dimension reports the dense vector size. It is probed once and cached
	// for collection sizing.
	Dimension(ctx context.Context) (int, error)
}

// NewDenseModel creates a dense embedding provider by name.
func NewDenseModel(provider, model, baseURL string) (DenseModel, error) {
	switch provider {
	case "ollama":
		return NewOllamaModel(model, baseURL)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", provider)
	}
}

// HybridService combines a remote dense model with the local sparse encoder.
type HybridService struct {
	dense  DenseModel
	sparse *SparseEncoder

	dimOnce sync.Once
	dim     int
	dimErr  error
}

// NewHybridService creates a hybrid embedding service.
func NewHybridService(dense DenseModel) *HybridService {
	return &HybridService{dense: dense, sparse: NewSparseEncoder()}
}

// Embed computes the hybrid pair for one text.
func (s *HybridService) Embed(ctx context.Context, text string) (*Hybrid, error) {
	denseVec, err := s.dense.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("dense embedding failed: %w", err)
	}
	return &Hybrid{
		Dense:  denseVec,
		Sparse: s.sparse.Encode(text),
	}, nil
}

// Dimension probes the dense model once with a short text and caches the
// resulting vector size.
func (s *HybridService) Dimension(ctx context.Context) (int, error) {
	s.dimOnce.Do(func() {
		probe, err := s.dense.Embed(ctx, "dimension probe")
		if err != nil {
			s.dimErr = fmt.Errorf("failed to probe embedding dimension: %w", err)
			return
		}
		s.dim = len(probe)
	})
	return s.dim, s.dimErr
}

var _ Service = (*HybridService)(nil)
