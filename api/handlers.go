package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/poiesic/ragnote/chat"
	"github.com/poiesic/ragnote/core"
	"github.com/poiesic/ragnote/ingestion"
	"github.com/poiesic/ragnote/storage"
)

// ModelHeader names the model that produced a chat answer.
const ModelHeader = "X-Model-Used"

// Assistant is the behaviour the handlers need. *ragnote.Assistant
// implements it.
type Assistant interface {
	Ingest(ctx context.Context, text string) (string, error)
	DeleteChunk(ctx context.Context, id core.ID) error
	Chat(ctx context.Context, req chat.Request) (*chat.Response, error)
	UpdateProfile(ctx context.Context, userID, info string) (*core.UserProfile, error)
}

type Handler struct {
	assistant Assistant
	logger    *slog.Logger
}

// NewHandler creates the HTTP handlers. A nil logger uses slog.Default().
func NewHandler(assistant Assistant, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{assistant: assistant, logger: logger.With("component", "api")}
}

type createNoteRequest struct {
	Text string `json:"text"`
}

type createNoteResponse struct {
	InstanceID string `json:"instanceId"`
	Message    string `json:"message"`
}

type chatRequest struct {
	Text           string `json:"text"`
	ConversationID string `json:"conversationId,omitempty"`
	UserID         string `json:"userId,omitempty"`
}

type chatResponse struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversationId"`
	ContextUsed    bool   `json:"contextUsed"`
	URLsExtracted  int    `json:"urlsExtracted"`
}

type userInfoRequest struct {
	UserID string `json:"userId,omitempty"`
	Info   string `json:"info"`
}

type userInfoResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req createNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		http.Error(w, "Missing text", http.StatusBadRequest)
		return
	}

	instanceID, err := h.assistant.Ingest(r.Context(), req.Text)
	if err != nil {
		if errors.Is(err, ingestion.ErrEmptyText) {
			http.Error(w, "Missing text", http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to start ingestion", "err", err)
		http.Error(w, "Failed to create note", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, createNoteResponse{InstanceID: instanceID, Message: "Created note"})
}

func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid note id", http.StatusBadRequest)
		return
	}

	if err := h.assistant.DeleteChunk(r.Context(), core.ID(id)); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "Note not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to delete note", "id", id, "err", err)
		http.Error(w, "Failed to delete note", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) PostChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Please provide a question"})
		return
	}
	h.chat(w, r, chat.Request{Text: req.Text, ConversationID: req.ConversationID, UserID: req.UserID})
}

// GetChat accepts the question as ?text= and answers like PostChat.
func (h *Handler) GetChat(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if strings.TrimSpace(query.Get("text")) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Please provide a question using the ?text= parameter"})
		return
	}
	h.chat(w, r, chat.Request{
		Text:           query.Get("text"),
		ConversationID: query.Get("conversationId"),
		UserID:         query.Get("userId"),
	})
}

func (h *Handler) chat(w http.ResponseWriter, r *http.Request, req chat.Request) {
	resp, err := h.assistant.Chat(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyQuestion):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Please provide a question"})
		case errors.Is(err, core.ErrConversationOwnership):
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "Conversation belongs to another user"})
		case errors.Is(err, core.ErrGeneration):
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: "We were unable to generate output"})
		default:
			h.logger.Error("chat failed", "err", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to process chat"})
		}
		return
	}

	w.Header().Set(ModelHeader, resp.Model)
	writeJSON(w, http.StatusOK, chatResponse{
		Response:       resp.Response,
		ConversationID: resp.ConversationID,
		ContextUsed:    resp.ContextUsed,
		URLsExtracted:  resp.URLsExtracted,
	})
}

func (h *Handler) UpdateUserInfo(w http.ResponseWriter, r *http.Request) {
	var req userInfoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Info) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "User information is required"})
		return
	}

	if _, err := h.assistant.UpdateProfile(r.Context(), req.UserID, req.Info); err != nil {
		if errors.Is(err, chat.ErrEmptyProfile) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "User information is required"})
			return
		}
		h.logger.Error("failed to update profile", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to update user information"})
		return
	}

	writeJSON(w, http.StatusOK, userInfoResponse{Success: true, Message: "User information updated successfully"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
