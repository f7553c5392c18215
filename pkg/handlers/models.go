package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/wenshu-inc/wenshu-engine/pkg/services"
)

// ModelsHandler handles LLM model configuration requests.
type ModelsHandler struct {
	modelService services.ModelService
	logger       *zap.Logger
}

// NewModelsHandler creates a new models handler.
func NewModelsHandler(modelService services.ModelService, logger *zap.Logger) *ModelsHandler {
	return &ModelsHandler{
		modelService: modelService,
		logger:       logger,
	}
}

// RegisterRoutes registers the models handler's routes on the given mux.
func (h *ModelsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/models", h.List)
	mux.HandleFunc("POST /api/models", h.Create)
	mux.HandleFunc("GET /api/models/default", h.GetDefault)
	mux.HandleFunc("POST /api/models/test-connection", h.TestConnection)
	mux.HandleFunc("GET /api/models/{id}", h.Get)
	mux.HandleFunc("PUT /api/models/{id}", h.Update)
	mux.HandleFunc("DELETE /api/models/{id}", h.Delete)
	mux.HandleFunc("PUT /api/models/{id}/default", h.SetDefault)
}

// List handles GET /api/models
func (h *ModelsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.modelService.List(r.Context())
	if err != nil {
		WriteServiceError(w, err, "List models", h.logger)
		return
	}
	writeData(w, http.StatusOK, list, h.logger)
}

// Create handles POST /api/models
func (h *ModelsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.ModelInput
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	m, err := h.modelService.Create(r.Context(), &req)
	if err != nil {
		WriteServiceError(w, err, "Create model", h.logger)
		return
	}
	writeData(w, http.StatusCreated, m, h.logger)
}

// Get handles GET /api/models/{id}
func (h *ModelsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	m, err := h.modelService.Get(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err, "Get model", h.logger)
		return
	}
	writeData(w, http.StatusOK, m, h.logger)
}

// GetDefault handles GET /api/models/default
func (h *ModelsHandler) GetDefault(w http.ResponseWriter, r *http.Request) {
	m, err := h.modelService.GetDefault(r.Context())
	if err != nil {
		WriteServiceError(w, err, "Get default model", h.logger)
		return
	}
	writeData(w, http.StatusOK, m, h.logger)
}

// Update handles PUT /api/models/{id}
// An empty or "******" api_key keeps the stored key.
func (h *ModelsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	var req services.ModelInput
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	m, err := h.modelService.Update(r.Context(), id, &req)
	if err != nil {
		WriteServiceError(w, err, "Update model", h.logger)
		return
	}
	writeData(w, http.StatusOK, m, h.logger)
}

// Delete handles DELETE /api/models/{id}
func (h *ModelsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.modelService.Delete(r.Context(), id); err != nil {
		WriteServiceError(w, err, "Delete model", h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, DeleteResponse{Success: true, Message: "Model deleted successfully"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// SetDefault handles PUT /api/models/{id}/default
func (h *ModelsHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.modelService.SetDefault(r.Context(), id); err != nil {
		WriteServiceError(w, err, "Set default model", h.logger)
		return
	}

	m, err := h.modelService.Get(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err, "Get model", h.logger)
		return
	}
	writeData(w, http.StatusOK, m, h.logger)
}

// TestConnection handles POST /api/models/test-connection
// Provider failures are a 200 with success=false.
func (h *ModelsHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	var req services.ModelTestRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	result, err := h.modelService.TestConnection(r.Context(), &req)
	if err != nil {
		WriteServiceError(w, err, "Test model", h.logger)
		return
	}
	writeData(w, http.StatusOK, result, h.logger)
}
