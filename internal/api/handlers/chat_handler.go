package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/ragchat/internal/models"
	"github.com/markdave123-py/ragchat/internal/services"
)

type ChatHandler struct {
	sessions *services.SessionService
}

func NewChatHandler(sessions *services.SessionService) *ChatHandler {
	return &ChatHandler{sessions: sessions}
}

type sessionResponse struct {
	ID      string            `json:"id"`
	History []models.ChatTurn `json:"history"`
}

type messageRequest struct {
	Query string `json:"query"`
	Model string `json:"model"`
}

func (h *ChatHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Create()
	writeJSON(w, http.StatusCreated, sessionResponse{ID: sess.ID, History: sess.Visible()})
}

func (h *ChatHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	hist, err := h.sessions.History(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{ID: id, History: hist})
}

func (h *ChatHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PostMessage answers one user message as a server-sent event stream.
func (h *ChatHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		badRequest(w, "body must be {\"query\": ..., \"model\": ...}")
		return
	}

	stream, err := h.sessions.Respond(r.Context(), chi.URLParam(r, "id"), req.Query, req.Model)
	if err != nil {
		writeError(w, err)
		return
	}
	streamSSE(w, r, stream)
}
