package ingestion_engine

import (
	"context"

	"github.com/markdave123-py/ragchat/internal/models"
)

type Ingestor interface {
	Ingest(ctx context.Context, doc *models.Document, chunkCount int) (int, error)
	LoadCorpus(ctx context.Context, src CorpusSource) (int, error)
	Start(ctx context.Context, numWorkers int)
	Enqueue(job IngestJob) (string, error)
	Status(jobID string) (JobStatus, bool)
}
