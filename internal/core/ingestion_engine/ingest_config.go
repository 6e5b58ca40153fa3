package ingestion_engine

import (
	"sync"
	"time"

	"github.com/markdave123-py/ragchat/internal/core"
	"github.com/markdave123-py/ragchat/internal/models"
)

// IngestConfig tunes ingestion.
//
// ChunkCount:        default number of chunks per document when a job does not say.
// BatchSize:         how many chunk texts go into one embedding request.
// EmbedDim:          expected embedding dimension; 0 skips the check.
// CorpusConcurrency: parallel file extractions during corpus load.
type IngestConfig struct {
	ChunkCount        int
	BatchSize         int
	EmbedDim          int
	CorpusConcurrency int
}

// JobState tracks a background ingestion.
type JobState string

const (
	JobUploaded   JobState = "uploaded"
	JobProcessing JobState = "processing"
	JobReady      JobState = "ready"
	JobFailed     JobState = "failed"
)

// IngestJob is one queued document. Either Data is set, or ObjectKey points at
// the archived original in object storage.
type IngestJob struct {
	ID         string
	Source     string
	Format     models.Format
	ChunkCount int
	Data       []byte
	ObjectKey  string
}

// JobStatus is the externally visible view of a job.
type JobStatus struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	State     JobState  `json:"state"`
	Chunks    int       `json:"chunks"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DocumentIngestor chunks, embeds and stores documents:
//
// store:     vector store receiving the entries.
// embedder:  embedding provider (OpenAI/Gemini).
// extractor: bytes -> text.
// obj:       optional object storage holding archived originals.
// jobs:      in-memory queue of uploads to process.
type DocumentIngestor struct {
	store     core.VectorStore
	embedder  core.EmbeddingProvider
	extractor core.DocumentExtractor
	obj       core.ObjectClient
	cfg       *IngestConfig
	jobs      chan IngestJob
	stopped   chan struct{}
	stopOnce  sync.Once

	mu     sync.RWMutex
	status map[string]*JobStatus
}
