package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/ragchat/internal/config"
	"github.com/markdave123-py/ragchat/internal/core"
	"github.com/markdave123-py/ragchat/internal/core/chat"
	"github.com/markdave123-py/ragchat/internal/core/ingestion_engine"
	"github.com/markdave123-py/ragchat/internal/models"
)

type scriptedTokens struct {
	frags []string
	i     int
}

func (s *scriptedTokens) Recv() (string, error) {
	if s.i >= len(s.frags) {
		return "", io.EOF
	}
	s.i++
	return s.frags[s.i-1], nil
}

func (s *scriptedTokens) Close() error { return nil }

type echoLLM struct {
	models []string
	fail   error
}

func (e *echoLLM) Complete(context.Context, core.CompletionRequest) (*core.Completion, error) {
	return nil, errors.New("not used")
}

func (e *echoLLM) Stream(_ context.Context, req core.CompletionRequest) (core.TokenStream, error) {
	e.models = append(e.models, req.Model)
	if e.fail != nil {
		return nil, e.fail
	}
	last := req.Messages[len(req.Messages)-1].Content
	return &scriptedTokens{frags: []string{"echo: ", last}}, nil
}

func newSessionService(t *testing.T, llm core.LLMProvider) *SessionService {
	t.Helper()
	prompts, err := config.LoadPrompts("")
	require.NoError(t, err)
	orch := chat.NewOrchestrator(llm, nil, nil, prompts, chat.Options{Model: "gpt-4o-mini"})
	cfg := &config.Config{GenModel: "mini", LLMProvider: "openai"}
	return NewSessionService(orch, prompts, 10, cfg.ResolveModel)
}

func TestSessionServiceCreateSeedsGreeting(t *testing.T) {
	svc := newSessionService(t, &echoLLM{})
	sess := svc.Create()

	hist, err := svc.History(sess.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, models.RoleAssistant, hist[0].Role)
	assert.Contains(t, hist[0].Content, "course information assistant")
}

func TestSessionServiceRespondAndHistory(t *testing.T) {
	llm := &echoLLM{}
	svc := newSessionService(t, llm)
	sess := svc.Create()

	s, err := svc.Respond(context.Background(), sess.ID, "hello", "regular")
	require.NoError(t, err)
	answer, err := chat.Collect(s)
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", answer)
	assert.Equal(t, []string{"gpt-4o"}, llm.models)

	hist, err := svc.History(sess.ID)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, "hello", hist[1].Content)
	assert.Equal(t, "echo: hello", hist[2].Content)
}

func TestSessionServiceSingleWriter(t *testing.T) {
	svc := newSessionService(t, &echoLLM{})
	sess := svc.Create()
	ctx := context.Background()

	first, err := svc.Respond(ctx, sess.ID, "one", "")
	require.NoError(t, err)

	_, err = svc.Respond(ctx, sess.ID, "two", "")
	assert.ErrorIs(t, err, core.ErrSessionBusy)
	_, err = svc.History(sess.ID)
	assert.ErrorIs(t, err, core.ErrSessionBusy)

	// other sessions are unaffected
	other := svc.Create()
	s, err := svc.Respond(ctx, other.ID, "x", "")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = first.Recv()
	require.NoError(t, err)
	require.NoError(t, first.Close())

	s, err = svc.Respond(ctx, sess.ID, "two", "")
	require.NoError(t, err)
	_, err = chat.Collect(s)
	require.NoError(t, err)

	// the end of the stream alone releases the session
	_, err = svc.History(sess.ID)
	assert.NoError(t, err)
}

func TestSessionServiceFailedRespondReleases(t *testing.T) {
	svc := newSessionService(t, &echoLLM{fail: core.ErrTransport})
	sess := svc.Create()

	_, err := svc.Respond(context.Background(), sess.ID, "q", "")
	require.ErrorIs(t, err, core.ErrTransport)

	hist, err := svc.History(sess.ID)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestSessionServiceUnknownAndDelete(t *testing.T) {
	svc := newSessionService(t, &echoLLM{})

	_, err := svc.Respond(context.Background(), "nope", "q", "")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)

	sess := svc.Create()
	require.NoError(t, svc.Delete(sess.ID))
	_, err = svc.History(sess.ID)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

type recordingIngestor struct {
	ingested []*models.Document
	jobs     []ingestion_engine.IngestJob
}

func (r *recordingIngestor) Ingest(_ context.Context, doc *models.Document, chunkCount int) (int, error) {
	r.ingested = append(r.ingested, doc)
	return chunkCount, nil
}

func (r *recordingIngestor) LoadCorpus(context.Context, ingestion_engine.CorpusSource) (int, error) {
	return 0, nil
}

func (r *recordingIngestor) Start(context.Context, int) {}

func (r *recordingIngestor) Enqueue(job ingestion_engine.IngestJob) (string, error) {
	r.jobs = append(r.jobs, job)
	return "job-1", nil
}

func (r *recordingIngestor) Status(string) (ingestion_engine.JobStatus, bool) {
	return ingestion_engine.JobStatus{}, false
}

type memObjects map[string][]byte

func (m memObjects) UploadFile(_ context.Context, key string, data []byte, _ string) (string, error) {
	m[key] = data
	return "https://bucket/" + key, nil
}

func (m memObjects) GetFile(_ context.Context, key string) ([]byte, error) { return m[key], nil }

func (m memObjects) ListKeys(context.Context, string) ([]string, error) { return nil, nil }

func TestDetectFormat(t *testing.T) {
	f, err := DetectFormat("syllabus.pdf", "")
	require.NoError(t, err)
	assert.Equal(t, models.FormatPDF, f)

	f, err = DetectFormat("blob", "text/html; charset=utf-8")
	require.NoError(t, err)
	assert.Equal(t, models.FormatHTML, f)

	_, err = DetectFormat("deck.pptx", "application/octet-stream")
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)
}

func TestDocumentServiceUploadSync(t *testing.T) {
	ing := &recordingIngestor{}
	svc := NewDocumentService(ingestion_engine.NewDocconvExtractor(false), nil, ing, nil)

	res, err := svc.Upload(context.Background(), "", "notes.txt", "text/plain", []byte("week one notes"), 3, false)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Chunks)
	assert.Empty(t, res.JobID)
	assert.Empty(t, res.StorageURL)
	require.Len(t, ing.ingested, 1)
	assert.Equal(t, "notes.txt", ing.ingested[0].Source)
	assert.Equal(t, "week one notes", ing.ingested[0].Text)
}

func TestDocumentServiceUploadAsyncArchives(t *testing.T) {
	ing := &recordingIngestor{}
	objs := memObjects{}
	svc := NewDocumentService(ingestion_engine.NewDocconvExtractor(false), nil, ing, objs)

	res, err := svc.Upload(context.Background(), "u42", "Course Notes.txt", "text/plain", []byte("body"), 0, true)
	require.NoError(t, err)
	assert.Equal(t, "job-1", res.JobID)
	assert.True(t, strings.HasPrefix(res.StorageURL, "https://bucket/users/u42/documents/"))
	assert.True(t, strings.HasSuffix(res.StorageURL, "/Course_Notes.txt"))

	require.Len(t, ing.jobs, 1)
	job := ing.jobs[0]
	assert.Nil(t, job.Data)
	assert.Equal(t, []byte("body"), objs[job.ObjectKey])
	assert.Empty(t, ing.ingested)
}

func TestDocumentServiceExtractUnsupported(t *testing.T) {
	svc := NewDocumentService(ingestion_engine.NewDocconvExtractor(false), nil, &recordingIngestor{}, nil)
	_, err := svc.Extract("slides.pptx", "", []byte("x"))
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)
}
