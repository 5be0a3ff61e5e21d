package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/backend"
	"github.com/hyperjump/kensaku/internal/chunker"
	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/metadata"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/pkg/utils"
)

// Service validates and schedules ingestions. The pipeline for one job is:
// read rows, chunk, embed every batch, then hand the whole chunk set to the
// adapter in one Upsert. Embedding everything before the upsert means an
// embedding failure commits nothing, and the adapters' own all-or-nothing
// upsert semantics cover the persistence side.
type Service struct {
	adapters   map[string]backend.Adapter
	store      metadata.Store
	embedder   embedding.Embedder
	chunker    *chunker.Chunker
	jobs       *JobRegistry
	batchSize  int
	snippetLen int
	logger     *zap.Logger
}

// Params describes one ingestion request.
type Params struct {
	Backend   string
	IndexName string
	CSVPath   string
	Columns   ColumnMapping
}

// NewService creates an ingestion service over the given adapters.
func NewService(
	adapters map[string]backend.Adapter,
	store metadata.Store,
	embedder embedding.Embedder,
	ch *chunker.Chunker,
	jobs *JobRegistry,
	batchSize int,
	snippetLen int,
	logger *zap.Logger,
) *Service {
	if snippetLen <= 0 {
		snippetLen = 400
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		adapters:   adapters,
		store:      store,
		embedder:   embedder,
		chunker:    ch,
		jobs:       jobs,
		batchSize:  batchSize,
		snippetLen: snippetLen,
		logger:     logger,
	}
}

// Jobs returns the job registry for status queries.
func (s *Service) Jobs() *JobRegistry {
	return s.jobs
}

// Schedule validates the request synchronously, then starts the pipeline in
// the background and returns the job acknowledgment immediately. The caller
// gets "scheduled", never a completion guarantee.
func (s *Service) Schedule(ctx context.Context, p Params) (*Job, error) {
	adapter, ok := s.adapters[p.Backend]
	if !ok {
		return nil, fmt.Errorf("unknown backend: %s", p.Backend)
	}
	if err := ValidateCSV(p.CSVPath, p.Columns); err != nil {
		return nil, err
	}
	// Reject unknown indices before scheduling. Every backend records a
	// descriptor at create time, so the metadata store answers for all three.
	if _, err := s.store.GetDescriptor(ctx, p.Backend, p.IndexName); err != nil {
		return nil, err
	}

	job := s.jobs.Create(p.Backend, p.IndexName)
	go s.run(job.ID, adapter, p)
	s.logger.Info("ingestion scheduled",
		zap.String("job_id", job.ID),
		zap.String("backend", p.Backend),
		zap.String("index", p.IndexName),
		zap.String("csv", p.CSVPath))
	return job, nil
}

// run executes the pipeline for a scheduled job. It owns its context: the
// triggering HTTP request is long gone by the time work happens here.
func (s *Service) run(jobID string, adapter backend.Adapter, p Params) {
	ctx := context.Background()
	s.jobs.setRunning(jobID)

	added, err := s.ingest(ctx, adapter, p)
	if err != nil {
		s.logger.Error("ingestion failed",
			zap.String("job_id", jobID), zap.String("index", p.IndexName), zap.Error(err))
		s.jobs.setFailed(jobID, err)
		return
	}
	s.logger.Info("ingestion completed",
		zap.String("job_id", jobID), zap.String("index", p.IndexName), zap.Int("chunks_added", added))
	s.jobs.setCompleted(jobID, added)
}

func (s *Service) ingest(ctx context.Context, adapter backend.Adapter, p Params) (int, error) {
	docs, err := ReadCSV(p.CSVPath, p.Columns)
	if err != nil {
		return 0, err
	}

	var chunks []*models.Chunk
	for _, doc := range docs {
		for _, segment := range s.chunker.Split(doc.Text) {
			chunks = append(chunks, &models.Chunk{
				ChunkID:     uuid.New().String(),
				DocID:       doc.DocID,
				Title:       doc.Title,
				Category:    doc.Category,
				Text:        segment,
				TextSnippet: utils.Snippet(segment, s.snippetLen),
			})
		}
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	s.logger.Info("prepared chunks for indexing",
		zap.String("index", p.IndexName), zap.Int("chunks", len(chunks)))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	dispatcher := embedding.NewDispatcher(s.embedder, s.batchSize, adapter.NormalizeVectors())
	vectors, err := dispatcher.EmbedTexts(ctx, texts)
	if err != nil {
		return 0, err
	}
	for i, c := range chunks {
		c.Embedding = vectors[i]
	}

	return adapter.Upsert(ctx, p.IndexName, chunks)
}
