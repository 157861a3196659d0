package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"papernotes/internal/embedding"
	"papernotes/internal/llm"
	"papernotes/internal/rag/extractor"
	"papernotes/internal/rag/schema"
	"papernotes/internal/rag/storages/vectorstore"
)

// fakeEmbedder returns tiny deterministic vectors without any provider.
type fakeEmbedder struct {
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) (*embedding.Hybrid, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()
	if f.fail {
		return nil, fmt.Errorf("embedding provider down")
	}
	return &embedding.Hybrid{
		Dense:  []float32{float32(len(text)), 1, 0, 0},
		Sparse: embedding.SparseVector{Indices: []uint32{1}, Values: []float32{1}},
	}, nil
}

func (f *fakeEmbedder) Dimension(ctx context.Context) (int, error) { return 4, nil }

// fakeStore is an in-memory VectorIndex with scripted search results.
type fakeStore struct {
	mu       sync.Mutex
	existing map[string]bool
	upserted []*vectorstore.Point
	// results are returned in order, one slice per HybridSearch call; when
	// exhausted, the last slice repeats.
	results     [][]*schema.Document
	searchCalls int
}

func (f *fakeStore) EnsureDocumentIDIndex(ctx context.Context) error { return nil }

func (f *fakeStore) HasDocument(ctx context.Context, documentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing[documentID], nil
}

func (f *fakeStore) Upsert(ctx context.Context, points []*vectorstore.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted = append(f.upserted, points...)
	return nil
}

func (f *fakeStore) HybridSearch(ctx context.Context, query *embedding.Hybrid, documentID string, topK int) ([]*schema.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.results) == 0 {
		return nil, nil
	}
	i := f.searchCalls
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	f.searchCalls++
	return f.results[i], nil
}

// fakeLLM replies per template name from scripted queues; when a queue runs
// dry its last entry repeats.
type fakeLLM struct {
	mu      sync.Mutex
	replies map[string][]string
	calls   map[string]int
}

func newFakeLLM(replies map[string][]string) *fakeLLM {
	return &fakeLLM{replies: replies, calls: make(map[string]int)}
}

func (f *fakeLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	if _, err := req.Template.Render(req.Vars); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	name := req.Template.Name
	f.calls[name]++

	queue, ok := f.replies[name]
	if !ok || len(queue) == 0 {
		return "", fmt.Errorf("no scripted reply for template %q", name)
	}
	i := f.calls[name] - 1
	if i >= len(queue) {
		i = len(queue) - 1
	}
	return queue[i], nil
}

func (f *fakeLLM) CompleteStream(ctx context.Context, req llm.Request) (<-chan string, error) {
	reply, err := f.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	ch := make(chan string, len(reply))
	for _, word := range strings.SplitAfter(reply, " ") {
		ch <- word
	}
	close(ch)
	return ch, nil
}

func (f *fakeLLM) callCount(template string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[template]
}

var _ llm.Client = (*fakeLLM)(nil)

// fakeExtractor returns a canned extraction.
type fakeExtractor struct {
	extraction *extractor.Extraction
	err        error
}

func (f *fakeExtractor) Extract(ctx context.Context, sourceURL string) (*extractor.Extraction, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.extraction, nil
}

// wordCounter approximates tokens as words for hermetic splitting.
type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }
