package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wenshu-inc/wenshu-engine/pkg/services"
)

// CreateConversationRequest is the body of POST /api/conversations.
type CreateConversationRequest struct {
	Title         string      `json:"title"`
	ModelID       *uuid.UUID  `json:"model_id,omitempty"`
	DatasourceIDs []uuid.UUID `json:"datasource_ids"`
}

// TitleRequest is the body of PUT /api/conversations/{id}/title.
type TitleRequest struct {
	Title string `json:"title"`
}

// ModelRequest is the body of PUT /api/conversations/{id}/model. A null model_id unbinds.
type ModelRequest struct {
	ModelID *uuid.UUID `json:"model_id"`
}

// DatasourcesRequest is the body of PUT /api/conversations/{id}/datasources.
type DatasourcesRequest struct {
	DatasourceIDs []uuid.UUID `json:"datasource_ids"`
}

// MessageRequest is the body of POST /api/conversations/{id}/messages.
type MessageRequest struct {
	Content string `json:"content"`
}

// ConversationsHandler handles conversation and message requests.
type ConversationsHandler struct {
	conversationService services.ConversationService
	logger              *zap.Logger
}

// NewConversationsHandler creates a new conversations handler.
func NewConversationsHandler(conversationService services.ConversationService, logger *zap.Logger) *ConversationsHandler {
	return &ConversationsHandler{
		conversationService: conversationService,
		logger:              logger,
	}
}

// RegisterRoutes registers the conversations handler's routes on the given mux.
func (h *ConversationsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/conversations", h.List)
	mux.HandleFunc("POST /api/conversations", h.Create)
	mux.HandleFunc("GET /api/conversations/{id}", h.Get)
	mux.HandleFunc("DELETE /api/conversations/{id}", h.Delete)
	mux.HandleFunc("PUT /api/conversations/{id}/title", h.Rename)
	mux.HandleFunc("PUT /api/conversations/{id}/model", h.SetModel)
	mux.HandleFunc("PUT /api/conversations/{id}/datasources", h.SetDatasources)
	mux.HandleFunc("POST /api/conversations/{id}/messages", h.SendMessage)
}

// List handles GET /api/conversations
func (h *ConversationsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.conversationService.List(r.Context())
	if err != nil {
		WriteServiceError(w, err, "List conversations", h.logger)
		return
	}
	writeData(w, http.StatusOK, list, h.logger)
}

// Create handles POST /api/conversations
func (h *ConversationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	conv, err := h.conversationService.Create(r.Context(), req.Title, req.ModelID, req.DatasourceIDs)
	if err != nil {
		WriteServiceError(w, err, "Create conversation", h.logger)
		return
	}
	writeData(w, http.StatusCreated, conv, h.logger)
}

// Get handles GET /api/conversations/{id}
func (h *ConversationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	detail, err := h.conversationService.Get(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err, "Get conversation", h.logger)
		return
	}
	writeData(w, http.StatusOK, detail, h.logger)
}

// Delete handles DELETE /api/conversations/{id}
func (h *ConversationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.conversationService.Delete(r.Context(), id); err != nil {
		WriteServiceError(w, err, "Delete conversation", h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, DeleteResponse{Success: true, Message: "Conversation deleted successfully"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Rename handles PUT /api/conversations/{id}/title
func (h *ConversationsHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}
	var req TitleRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	if err := h.conversationService.Rename(r.Context(), id, req.Title); err != nil {
		WriteServiceError(w, err, "Rename conversation", h.logger)
		return
	}
	h.writeConversation(w, r, id)
}

// SetModel handles PUT /api/conversations/{id}/model
func (h *ConversationsHandler) SetModel(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}
	var req ModelRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	if err := h.conversationService.SetModel(r.Context(), id, req.ModelID); err != nil {
		WriteServiceError(w, err, "Set conversation model", h.logger)
		return
	}
	h.writeConversation(w, r, id)
}

// SetDatasources handles PUT /api/conversations/{id}/datasources
func (h *ConversationsHandler) SetDatasources(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}
	var req DatasourcesRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	if err := h.conversationService.SetDatasources(r.Context(), id, req.DatasourceIDs); err != nil {
		WriteServiceError(w, err, "Set conversation datasources", h.logger)
		return
	}
	h.writeConversation(w, r, id)
}

// SendMessage handles POST /api/conversations/{id}/messages
// Chat failures are part of the assistant message, not an HTTP error.
func (h *ConversationsHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}
	var req MessageRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	result, err := h.conversationService.SendMessage(r.Context(), id, req.Content)
	if err != nil {
		WriteServiceError(w, err, "Send message", h.logger)
		return
	}
	writeData(w, http.StatusOK, result, h.logger)
}

func (h *ConversationsHandler) writeConversation(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	detail, err := h.conversationService.Get(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err, "Get conversation", h.logger)
		return
	}
	writeData(w, http.StatusOK, detail.Conversation, h.logger)
}
