package ingestion_engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/ragchat/internal/core"
	"github.com/markdave123-py/ragchat/internal/models"
)

var _ Ingestor = (*DocumentIngestor)(nil)

// NewDocumentIngestor constructs the ingestor with a bounded job queue (64).
// obj may be nil when object storage is not configured.
func NewDocumentIngestor(store core.VectorStore, emb core.EmbeddingProvider, extractor core.DocumentExtractor, obj core.ObjectClient, cfg *IngestConfig) *DocumentIngestor {
	if cfg.ChunkCount < 1 {
		cfg.ChunkCount = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 64
	}
	if cfg.CorpusConcurrency < 1 {
		cfg.CorpusConcurrency = 4
	}
	return &DocumentIngestor{
		store: store, embedder: emb, extractor: extractor, obj: obj, cfg: cfg,
		jobs:    make(chan IngestJob, 64),
		stopped: make(chan struct{}),
		status: make(map[string]*JobStatus),
	}
}

// Ingest chunks doc, embeds every chunk and adds them to the store in one call.
// Nothing is stored unless every embedding succeeded. Returns the number of entries added.
func (i *DocumentIngestor) Ingest(ctx context.Context, doc *models.Document, chunkCount int) (int, error) {
	if doc == nil {
		return 0, fmt.Errorf("nil document")
	}
	if chunkCount == 0 {
		chunkCount = i.cfg.ChunkCount
	}
	chunks, err := ChunkText(doc.Text, doc.Source, chunkCount)
	if err != nil {
		return 0, err
	}
	return i.storeChunks(ctx, chunks)
}

// LoadCorpus fills an empty store from src. A non-empty store is left untouched;
// this is a load-once guard, the corpus is never refreshed.
func (i *DocumentIngestor) LoadCorpus(ctx context.Context, src CorpusSource) (int, error) {
	n, err := i.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count collection: %w", err)
	}
	if n > 0 {
		log.Infof("DocumentIngestor: collection already contains %d documents, skipping corpus load", n)
		return 0, nil
	}

	names, err := src.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list corpus: %w", err)
	}
	if len(names) == 0 {
		log.Warnf("DocumentIngestor: no supported files found in %s", src)
		return 0, nil
	}

	docs := make([]*models.Document, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.cfg.CorpusConcurrency)
	for idx, name := range names {
		idx, name := idx, name
		g.Go(func() error {
			format, err := ParseFormat(name)
			if err != nil {
				log.Warnf("DocumentIngestor: skipping %s: %v", name, err)
				return nil
			}
			data, err := src.Read(gctx, name)
			if err != nil {
				return fmt.Errorf("read %s: %w", name, err)
			}
			doc, err := i.extractor.Extract(data, format, BaseName(name))
			if err != nil {
				// a corrupt file only costs itself
				log.Warnf("DocumentIngestor: error reading %s: %v", name, err)
				return nil
			}
			docs[idx] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var all []models.Chunk
	for _, doc := range docs {
		if doc == nil || doc.Text == "" {
			continue
		}
		chunks, err := ChunkText(doc.Text, doc.Source, i.cfg.ChunkCount)
		if err != nil {
			return 0, err
		}
		all = append(all, chunks...)
	}
	if len(all) == 0 {
		log.Warnf("DocumentIngestor: corpus %s produced no text", src)
		return 0, nil
	}

	added, err := i.storeChunks(ctx, all)
	if err != nil {
		return 0, err
	}
	log.Infof("DocumentIngestor: loaded %d files (%d chunks) into the collection", len(names), added)
	return added, nil
}

// storeChunks embeds all chunks first, then writes them in a single Add.
func (i *DocumentIngestor) storeChunks(ctx context.Context, chunks []models.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for idx := range chunks {
		texts[idx] = chunks[idx].Text
	}

	vecs := make([][]float32, 0, len(chunks))
	for start := 0; start < len(texts); start += i.cfg.BatchSize {
		end := min(start+i.cfg.BatchSize, len(texts))
		batch, err := i.embedder.EmbedTexts(ctx, texts[start:end])
		if err != nil {
			return 0, fmt.Errorf("embed: %w", err)
		}
		if len(batch) != end-start {
			return 0, fmt.Errorf("%w: size mismatch: got %d want %d", core.ErrEmbedding, len(batch), end-start)
		}
		vecs = append(vecs, batch...)
	}

	entries := make([]models.CollectionEntry, len(chunks))
	for k := range chunks {
		if i.cfg.EmbedDim > 0 && len(vecs[k]) != i.cfg.EmbedDim {
			return 0, fmt.Errorf("%w: %s has dimension %d, want %d", core.ErrEmbedding, chunks[k].ID, len(vecs[k]), i.cfg.EmbedDim)
		}
		entries[k] = models.CollectionEntry{ID: chunks[k].ID, Text: chunks[k].Text, Embedding: vecs[k]}
	}

	if err := i.store.Add(ctx, entries); err != nil {
		return 0, fmt.Errorf("add entries: %w", err)
	}
	return len(entries), nil
}

// Start runs numWorkers goroutines reading from the jobs channel.
func (i *DocumentIngestor) Start(ctx context.Context, numWorkers int) {
	go func() {
		<-ctx.Done()
		i.stopOnce.Do(func() { close(i.stopped) })
	}()

	for w := 1; w <= numWorkers; w++ {
		go func(w int) {
			for {
				select {
				case <-ctx.Done():
					log.Println("DocumentIngestor: Worker shutting down.")
					return
				case job := <-i.jobs:
					log.Infof("DocumentIngestor: Processing job %s (%s) by worker with ID %d", job.ID, job.Source, w)

					if err := i.processOne(ctx, job); err != nil {
						log.Errorf("DocumentIngestor: Error processing job %s: %v", job.ID, err)
					}
				}
			}
		}(w)
	}
}

// Enqueue schedules a job and returns its id. It never blocks: a full queue or
// stopped workers fail with ErrQueueUnavailable and the job is not recorded.
func (i *DocumentIngestor) Enqueue(job IngestJob) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	select {
	case <-i.stopped:
		return "", fmt.Errorf("%w: workers stopped", core.ErrQueueUnavailable)
	default:
	}

	i.setStatus(job, JobUploaded, 0, nil)
	select {
	case i.jobs <- job:
		return job.ID, nil
	default:
		i.mu.Lock()
		delete(i.status, job.ID)
		i.mu.Unlock()
		return "", fmt.Errorf("%w: queue full", core.ErrQueueUnavailable)
	}
}

// Status reports the state of a queued job.
func (i *DocumentIngestor) Status(jobID string) (JobStatus, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	st, ok := i.status[jobID]
	if !ok {
		return JobStatus{}, false
	}
	return *st, true
}

// processOne extracts, chunks, embeds and persists a single job.
func (i *DocumentIngestor) processOne(ctx context.Context, job IngestJob) error {
	proctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	i.setStatus(job, JobProcessing, 0, nil)

	data := job.Data
	if data == nil && job.ObjectKey != "" {
		if i.obj == nil {
			err := fmt.Errorf("job %s references object %s but no object storage is configured", job.ID, job.ObjectKey)
			i.setStatus(job, JobFailed, 0, err)
			return err
		}
		var err error
		data, err = i.obj.GetFile(proctx, job.ObjectKey)
		if err != nil {
			i.setStatus(job, JobFailed, 0, err)
			return fmt.Errorf("get object: %w", err)
		}
	}

	doc, err := i.extractor.Extract(data, job.Format, job.Source)
	if err != nil {
		i.setStatus(job, JobFailed, 0, err)
		return err
	}

	n, err := i.Ingest(proctx, doc, job.ChunkCount)
	if err != nil {
		i.setStatus(job, JobFailed, 0, err)
		return err
	}

	i.setStatus(job, JobReady, n, nil)
	return nil
}

func (i *DocumentIngestor) setStatus(job IngestJob, state JobState, chunks int, err error) {
	st := &JobStatus{ID: job.ID, Source: job.Source, State: state, Chunks: chunks, UpdatedAt: time.Now()}
	if err != nil {
		st.Error = err.Error()
	}
	i.mu.Lock()
	i.status[job.ID] = st
	i.mu.Unlock()
}
