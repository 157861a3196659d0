package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"papernotes/internal/config"
	"papernotes/internal/database/milvus"
	"papernotes/internal/embedding"
	"papernotes/internal/jobs"
	"papernotes/internal/rag/pipeline"
	"papernotes/internal/rag/schema"
	"papernotes/pkg/logger"
)

var (
	// ErrSessionNotFound is returned for chat calls with an unknown session id.
	ErrSessionNotFound = errors.New("chat session not found")
	// ErrUnknownPaper is returned when an index key resolves to no catalog
	// entry and is not a direct URL.
	ErrUnknownPaper = errors.New("unknown paper")
)

// Catalog is the read-only paper catalog the service resolves index keys
// against.
type Catalog interface {
	RetrieveMetadata(ctx context.Context, pointID string) (*schema.PaperMetadata, error)
	Search(ctx context.Context, query *embedding.Hybrid, topK int) ([]*schema.PaperMetadata, error)
}

// Ingestor runs the indexing pipeline for one source URL.
type Ingestor interface {
	Run(ctx context.Context, sourceURL string) (*pipeline.IngestReport, error)
}

// NotesSynthesizer produces structured notes for an indexed document.
type NotesSynthesizer interface {
	Run(ctx context.Context, documentID string) (*schema.NotesResult, error)
}

// Answerer streams grounded answers and rewrites queries for retrieval.
type Answerer interface {
	EnhanceQuery(ctx context.Context, query string) string
	AnswerStream(ctx context.Context, documentID, question string) (<-chan string, error)
}

// ChatSession ties a conversation to a document and the ingestion job that
// primes it.
type ChatSession struct {
	ID         string `json:"session_id"`
	DocumentID string `json:"document_id"`
	SourceURL  string `json:"source_url"`
	JobID      string `json:"job_id"`
}

// Service is the application facade behind the HTTP handlers: ingestion,
// note synthesis, chat, and catalog search, with background job dedup.
type Service struct {
	log      *logger.Logger
	indexing Ingestor
	notes    NotesSynthesizer
	qa       Answerer
	catalog  Catalog
	embedder embedding.Service
	registry *jobs.Registry
	cfg      config.PipelineConfig

	mu       sync.Mutex
	sessions map[string]*ChatSession
}

// New wires the service facade.
func New(
	indexing Ingestor,
	notes NotesSynthesizer,
	qa Answerer,
	catalog Catalog,
	embedder embedding.Service,
	registry *jobs.Registry,
	cfg config.PipelineConfig,
) *Service {
	return &Service{
		log:      logger.New("notes_service", ""),
		indexing: indexing,
		notes:    notes,
		qa:       qa,
		catalog:  catalog,
		embedder: embedder,
		registry: registry,
		cfg:      cfg,
		sessions: make(map[string]*ChatSession),
	}
}

// ResolveSource maps an index key to a downloadable URL: direct http(s) URLs
// pass through, anything else is looked up in the paper catalog.
func (s *Service) ResolveSource(ctx context.Context, indexKey string) (string, error) {
	if strings.HasPrefix(indexKey, "http://") || strings.HasPrefix(indexKey, "https://") {
		return indexKey, nil
	}
	meta, err := s.catalog.RetrieveMetadata(ctx, indexKey)
	if err != nil {
		if errors.Is(err, milvus.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrUnknownPaper, indexKey)
		}
		return "", err
	}
	if meta.DownloadURL == "" {
		return "", fmt.Errorf("%w: catalog entry %s has no download URL", ErrUnknownPaper, indexKey)
	}
	return meta.DownloadURL, nil
}

// Ingest starts (or joins) the background ingestion of a document.
func (s *Service) Ingest(ctx context.Context, indexKey string) (jobID, documentID string, started bool, err error) {
	sourceURL, err := s.ResolveSource(ctx, indexKey)
	if err != nil {
		return "", "", false, err
	}
	documentID = schema.DocumentID(sourceURL)
	jobID, started = s.startIngestJob(ctx, sourceURL, documentID)
	return jobID, documentID, started, nil
}

func (s *Service) startIngestJob(ctx context.Context, sourceURL, documentID string) (string, bool) {
	return s.registry.Start(ctx, "ingest:"+documentID, func(jobCtx context.Context) (interface{}, error) {
		return s.indexing.Run(jobCtx, sourceURL)
	})
}

// StartNotes starts (or joins) a background notes run. The job ingests the
// document first when needed; re-ingestion of an indexed document is a no-op.
func (s *Service) StartNotes(ctx context.Context, indexKey string) (jobID, documentID string, started bool, err error) {
	sourceURL, err := s.ResolveSource(ctx, indexKey)
	if err != nil {
		return "", "", false, err
	}
	documentID = schema.DocumentID(sourceURL)

	jobID, started = s.registry.Start(ctx, "notes:"+documentID, func(jobCtx context.Context) (interface{}, error) {
		if _, err := s.indexing.Run(jobCtx, sourceURL); err != nil {
			return nil, err
		}
		return s.notes.Run(jobCtx, documentID)
	})
	return jobID, documentID, started, nil
}

// JobStatus reports a background job's state.
func (s *Service) JobStatus(jobID string) jobs.Record {
	return s.registry.Status(jobID)
}

// InitChat creates a chat session over a paper and kicks off its ingestion.
func (s *Service) InitChat(ctx context.Context, indexKey string) (*ChatSession, error) {
	sourceURL, err := s.ResolveSource(ctx, indexKey)
	if err != nil {
		return nil, err
	}
	documentID := schema.DocumentID(sourceURL)
	jobID, _ := s.startIngestJob(ctx, sourceURL, documentID)

	session := &ChatSession{
		ID:         uuid.New().String(),
		DocumentID: documentID,
		SourceURL:  sourceURL,
		JobID:      jobID,
	}
	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	s.log.WithField("session_id", session.ID).WithField("document_id", documentID).Info("chat session created")
	return session, nil
}

// ChatStatus reports whether a session's document is ready to answer.
func (s *Service) ChatStatus(sessionID string) (*ChatSession, jobs.Record, error) {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil, jobs.Record{}, ErrSessionNotFound
	}
	return session, s.registry.Status(session.JobID), nil
}

// SendMessage answers one chat message as a token stream. It blocks until the
// session's ingestion finishes, polling the job rather than holding locks.
func (s *Service) SendMessage(ctx context.Context, sessionID, message string) (<-chan string, error) {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	if err := s.awaitIngestion(ctx, session.JobID); err != nil {
		return nil, err
	}
	return s.qa.AnswerStream(ctx, session.DocumentID, message)
}

// awaitIngestion waits for a priming job to reach a terminal state.
func (s *Service) awaitIngestion(ctx context.Context, jobID string) error {
	interval := time.Duration(s.cfg.JobPollIntervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		switch rec := s.registry.Status(jobID); rec.Status {
		case jobs.StatusDone, jobs.StatusNotFound:
			// A forgotten job means the document was indexed by an earlier
			// process lifetime; retrieval will tell the truth either way.
			return nil
		case jobs.StatusError:
			return fmt.Errorf("document ingestion failed: %s", rec.Error)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SearchPapers runs an enhanced hybrid search over the paper catalog.
func (s *Service) SearchPapers(ctx context.Context, query string) ([]*schema.PaperMetadata, error) {
	enhanced := s.qa.EnhanceQuery(ctx, query)
	vec, err := s.embedder.Embed(ctx, enhanced)
	if err != nil {
		return nil, fmt.Errorf("failed to embed search query: %w", err)
	}
	return s.catalog.Search(ctx, vec, s.cfg.SearchRetrievalK)
}
