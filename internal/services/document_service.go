package services

import (
	"context"
	"path"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/markdave123-py/ragchat/internal/core"
	"github.com/markdave123-py/ragchat/internal/core/ingestion_engine"
	"github.com/markdave123-py/ragchat/internal/models"
)

// UploadResult describes what happened to an uploaded document.
type UploadResult struct {
	Source     string `json:"source"`
	Format     string `json:"format"`
	StorageURL string `json:"storage_url,omitempty"`
	Chunks     int    `json:"chunks,omitempty"`
	JobID      string `json:"job_id,omitempty"`
}

type DocumentService struct {
	extractor core.DocumentExtractor
	fetcher   *ingestion_engine.URLFetcher
	ingestor  ingestion_engine.Ingestor
	storage   core.ObjectClient
}

// NewDocumentService wires extraction and ingestion. storage may be nil.
func NewDocumentService(extractor core.DocumentExtractor, fetcher *ingestion_engine.URLFetcher, ingestor ingestion_engine.Ingestor, storage core.ObjectClient) *DocumentService {
	return &DocumentService{extractor: extractor, fetcher: fetcher, ingestor: ingestor, storage: storage}
}

// DetectFormat picks the format from the file name, falling back to the content type.
func DetectFormat(filename, contentType string) (models.Format, error) {
	f, err := ingestion_engine.ParseFormat(filename)
	if err == nil {
		return f, nil
	}
	if contentType != "" {
		if ct, cerr := ingestion_engine.ParseFormat(strings.SplitN(contentType, ";", 2)[0]); cerr == nil {
			return ct, nil
		}
	}
	return "", err
}

// Extract turns an upload into text without storing anything.
func (s *DocumentService) Extract(filename, contentType string, data []byte) (*models.Document, error) {
	format, err := DetectFormat(filename, contentType)
	if err != nil {
		return nil, err
	}
	return s.extractor.Extract(data, format, path.Base(filename))
}

// Upload archives the original when object storage is configured, then ingests
// it now or queues it when async is set.
func (s *DocumentService) Upload(ctx context.Context, userID, filename, contentType string, data []byte, chunkCount int, async bool) (*UploadResult, error) {
	format, err := DetectFormat(filename, contentType)
	if err != nil {
		return nil, err
	}
	source := path.Base(filename)
	res := &UploadResult{Source: source, Format: string(format)}

	var key string
	if s.storage != nil {
		key = s.objectKey(userID, uuid.NewString(), source)
		url, err := s.storage.UploadFile(ctx, key, data, contentType)
		if err != nil {
			return nil, err
		}
		res.StorageURL = url
	}

	if async {
		job := ingestion_engine.IngestJob{Source: source, Format: format, ChunkCount: chunkCount}
		if key != "" {
			job.ObjectKey = key
		} else {
			job.Data = data
		}
		id, err := s.ingestor.Enqueue(job)
		if err != nil {
			return nil, err
		}
		res.JobID = id
		return res, nil
	}

	doc, err := s.extractor.Extract(data, format, source)
	if err != nil {
		return nil, err
	}
	n, err := s.ingestor.Ingest(ctx, doc, chunkCount)
	if err != nil {
		return nil, err
	}
	res.Chunks = n
	log.Infof("DocumentService: ingested %s as %d chunks", source, n)
	return res, nil
}

// IngestURL fetches a page and ingests it under its URL.
func (s *DocumentService) IngestURL(ctx context.Context, url string, chunkCount int) (*UploadResult, error) {
	doc, err := s.fetcher.FetchURL(ctx, url)
	if err != nil {
		return nil, err
	}
	n, err := s.ingestor.Ingest(ctx, doc, chunkCount)
	if err != nil {
		return nil, err
	}
	return &UploadResult{Source: doc.Source, Format: string(doc.Format), Chunks: n}, nil
}

// FetchURL fetches and extracts a page without ingesting it.
func (s *DocumentService) FetchURL(ctx context.Context, url string) (*models.Document, error) {
	return s.fetcher.FetchURL(ctx, url)
}

func (s *DocumentService) JobStatus(id string) (ingestion_engine.JobStatus, bool) {
	return s.ingestor.Status(id)
}

// objectKey creates a consistent S3 key layout.
func (s *DocumentService) objectKey(userID, docID, filename string) string {
	if userID == "" {
		userID = "anonymous"
	}
	filename = strings.TrimSpace(filename)
	filename = strings.ReplaceAll(filename, " ", "_")
	return path.Join("users", userID, "documents", docID, filename)
}
