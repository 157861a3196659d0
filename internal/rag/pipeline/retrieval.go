package pipeline

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"papernotes/internal/embedding"
	"papernotes/internal/rag/schema"
	"papernotes/pkg/logger"
)

// notesBattery is the fixed set of probes run against a document before
// synthesis, one per aspect the final notes must cover.
var notesBattery = []string{
	"Problem definition and motivation",
	"Algorithm description and methodology",
	"Mathematical formulation and equations",
	"Experimental setup datasets and baselines",
	"Results metrics accuracy F1 runtime",
	"Limitations and future work",
	"Related work and referenced methods",
}

// NotesBattery returns a copy of the synthesis retrieval probes.
func NotesBattery() []string {
	out := make([]string, len(notesBattery))
	copy(out, notesBattery)
	return out
}

// RetrievalPipeline runs document-scoped hybrid searches and fuses the
// results of multiple queries into one deduplicated set.
type RetrievalPipeline struct {
	log      *logger.Logger
	embedder embedding.Service
	store    VectorIndex
}

// NewRetrievalPipeline wires a retrieval pipeline.
func NewRetrievalPipeline(embedder embedding.Service, store VectorIndex) *RetrievalPipeline {
	return &RetrievalPipeline{
		log:      logger.New("retrieval", ""),
		embedder: embedder,
		store:    store,
	}
}

// Retrieve runs every query against the given document concurrently and
// merges the result sets. Duplicates keep their best score; results from
// other documents are dropped even if the store filter let them through.
func (p *RetrievalPipeline) Retrieve(ctx context.Context, documentID string, queries []string, topK int) ([]*schema.Document, error) {
	perQuery := make([][]*schema.Document, len(queries))
	eg, gCtx := errgroup.WithContext(ctx)
	for i, query := range queries {
		eg.Go(func() error {
			vec, err := p.embedder.Embed(gCtx, query)
			if err != nil {
				return fmt.Errorf("failed to embed query %q: %w", query, err)
			}
			docs, err := p.store.HybridSearch(gCtx, vec, documentID, topK)
			if err != nil {
				return fmt.Errorf("search failed for query %q: %w", query, err)
			}
			perQuery[i] = docs
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]*schema.Document)
	var order []string

	for _, docs := range perQuery {
		for _, doc := range docs {
			if doc.DocID != "" && doc.DocID != documentID {
				p.log.WithField("got", doc.DocID).WithField("want", documentID).
					Warn("dropping out-of-scope search result")
				continue
			}
			key := doc.DedupKey()
			if prev, ok := seen[key]; ok {
				if doc.Score > prev.Score {
					seen[key] = doc
				}
				continue
			}
			seen[key] = doc
			order = append(order, key)
		}
	}

	out := make([]*schema.Document, 0, len(order))
	for _, key := range order {
		out = append(out, seen[key])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}
