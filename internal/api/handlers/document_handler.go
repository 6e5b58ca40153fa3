package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	middleware "github.com/markdave123-py/ragchat/internal/api/middlewares"
	"github.com/markdave123-py/ragchat/internal/core/chat"
	"github.com/markdave123-py/ragchat/internal/services"
)

const maxUploadBytes = 32 << 20

type DocumentHandler struct {
	docs         *services.DocumentService
	qa           *chat.DocumentQA
	resolveModel func(string) string
}

func NewDocumentHandler(docs *services.DocumentService, qa *chat.DocumentQA, resolveModel func(string) string) *DocumentHandler {
	return &DocumentHandler{docs: docs, qa: qa, resolveModel: resolveModel}
}

type upload struct {
	filename    string
	contentType string
	data        []byte
}

func readUpload(r *http.Request) (*upload, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("invalid file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return &upload{filename: header.Filename, contentType: header.Header.Get("Content-Type"), data: data}, nil
}

func formInt(r *http.Request, key string) (int, error) {
	v := r.FormValue(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

// Extract returns the text of an uploaded file without storing it.
func (h *DocumentHandler) Extract(w http.ResponseWriter, r *http.Request) {
	up, err := readUpload(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	doc, err := h.docs.Extract(up.filename, up.contentType, up.data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Upload ingests a file into the collection, synchronously unless async=true.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	up, err := readUpload(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	chunks, err := formInt(r, "chunk_count")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	async, _ := strconv.ParseBool(r.FormValue("async"))

	res, err := h.docs.Upload(r.Context(), middleware.UserID(r.Context()), up.filename, up.contentType, up.data, chunks, async)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusCreated
	if async {
		status = http.StatusAccepted
	}
	writeJSON(w, status, res)
}

type urlRequest struct {
	URL        string `json:"url"`
	ChunkCount int    `json:"chunk_count"`
}

// FromURL fetches a page and ingests it.
func (h *DocumentHandler) FromURL(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		badRequest(w, "body must be {\"url\": ..., \"chunk_count\": ...}")
		return
	}
	if req.ChunkCount < 0 {
		badRequest(w, "chunk_count must be a non-negative integer")
		return
	}
	res, err := h.docs.IngestURL(r.Context(), req.URL, req.ChunkCount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *DocumentHandler) JobStatus(w http.ResponseWriter, r *http.Request) {
	st, ok := h.docs.JobStatus(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Ask streams an answer about an uploaded file: either a question or a summary format.
func (h *DocumentHandler) Ask(w http.ResponseWriter, r *http.Request) {
	up, err := readUpload(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	question, summary := r.FormValue("question"), r.FormValue("summary")
	if (question == "") == (summary == "") {
		badRequest(w, "provide exactly one of question or summary")
		return
	}

	doc, err := h.docs.Extract(up.filename, up.contentType, up.data)
	if err != nil {
		writeError(w, err)
		return
	}

	model := h.resolveModel(r.FormValue("model"))
	var stream *chat.Stream
	if summary != "" {
		stream, err = h.qa.Summarize(r.Context(), doc, summary, model)
	} else {
		stream, err = h.qa.AskDocument(r.Context(), doc, question, model)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	streamSSE(w, r, stream)
}
