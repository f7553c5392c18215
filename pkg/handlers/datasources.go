package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/wenshu-inc/wenshu-engine/pkg/services"
	sqlgate "github.com/wenshu-inc/wenshu-engine/pkg/sql"
)

// QueryRequest is the body of POST /api/datasources/{id}/query.
type QueryRequest struct {
	Query   string `json:"query"`
	MaxRows int    `json:"max_rows"`
}

// DeleteResponse reports a successful delete.
type DeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// DatasourcesHandler handles datasource-related HTTP requests.
type DatasourcesHandler struct {
	datasourceService services.DatasourceService
	logger            *zap.Logger
}

// NewDatasourcesHandler creates a new datasources handler.
func NewDatasourcesHandler(datasourceService services.DatasourceService, logger *zap.Logger) *DatasourcesHandler {
	return &DatasourcesHandler{
		datasourceService: datasourceService,
		logger:            logger,
	}
}

// RegisterRoutes registers the datasources handler's routes on the given mux.
func (h *DatasourcesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/datasources", h.List)
	mux.HandleFunc("POST /api/datasources", h.Create)
	mux.HandleFunc("POST /api/datasources/test-connection", h.TestConnection)
	mux.HandleFunc("POST /api/datasources/refresh", h.Refresh)
	mux.HandleFunc("GET /api/datasources/{id}", h.Get)
	mux.HandleFunc("PUT /api/datasources/{id}", h.Update)
	mux.HandleFunc("DELETE /api/datasources/{id}", h.Delete)
	mux.HandleFunc("GET /api/datasources/{id}/schema", h.Schema)
	mux.HandleFunc("GET /api/datasources/{id}/sample", h.Sample)
	mux.HandleFunc("POST /api/datasources/{id}/query", h.Query)
}

// List handles GET /api/datasources
func (h *DatasourcesHandler) List(w http.ResponseWriter, r *http.Request) {
	datasources, err := h.datasourceService.List(r.Context())
	if err != nil {
		WriteServiceError(w, err, "List datasources", h.logger)
		return
	}
	writeData(w, http.StatusOK, datasources, h.logger)
}

// Create handles POST /api/datasources
func (h *DatasourcesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.DatasourceInput
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	ds, err := h.datasourceService.Create(r.Context(), &req)
	if err != nil {
		WriteServiceError(w, err, "Create datasource", h.logger)
		return
	}
	writeData(w, http.StatusCreated, ds, h.logger)
}

// Get handles GET /api/datasources/{id}
func (h *DatasourcesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	ds, err := h.datasourceService.Get(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err, "Get datasource", h.logger)
		return
	}
	writeData(w, http.StatusOK, ds, h.logger)
}

// Update handles PUT /api/datasources/{id}
// A password of "******" keeps the stored password.
func (h *DatasourcesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	var req services.DatasourceInput
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	ds, err := h.datasourceService.Update(r.Context(), id, &req)
	if err != nil {
		WriteServiceError(w, err, "Update datasource", h.logger)
		return
	}
	writeData(w, http.StatusOK, ds, h.logger)
}

// Delete handles DELETE /api/datasources/{id}
func (h *DatasourcesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.datasourceService.Delete(r.Context(), id); err != nil {
		WriteServiceError(w, err, "Delete datasource", h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, DeleteResponse{Success: true, Message: "Datasource deleted successfully"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// TestConnection handles POST /api/datasources/test-connection
// A failed connection is a 200 with success=false and a suggestion.
func (h *DatasourcesHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	var req services.TestConnectionRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	result, err := h.datasourceService.TestConnection(r.Context(), &req)
	if err != nil {
		WriteServiceError(w, err, "Test connection", h.logger)
		return
	}
	writeData(w, http.StatusOK, result, h.logger)
}

// Refresh handles POST /api/datasources/refresh
func (h *DatasourcesHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, h.datasourceService.RefreshAll(r.Context()), h.logger)
}

// Schema handles GET /api/datasources/{id}/schema?include_views=
func (h *DatasourcesHandler) Schema(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	snapshot, err := h.datasourceService.GetSchema(r.Context(), id, queryBool(r, "include_views"))
	if err != nil {
		WriteServiceError(w, err, "Get schema", h.logger)
		return
	}
	writeData(w, http.StatusOK, snapshot, h.logger)
}

// Sample handles GET /api/datasources/{id}/sample?table=&limit=
// Without a table every table is sampled.
func (h *DatasourcesHandler) Sample(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit", 3, h.logger)
	if !ok {
		return
	}

	table := r.URL.Query().Get("table")
	if table == "" {
		set, err := h.datasourceService.GetAllSampleData(r.Context(), id, limit)
		if err != nil {
			WriteServiceError(w, err, "Get sample data", h.logger)
			return
		}
		writeData(w, http.StatusOK, set, h.logger)
		return
	}

	if err := sqlgate.CheckIdentifier(table); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_table", err.Error(), h.logger)
		return
	}

	rows, err := h.datasourceService.GetSampleData(r.Context(), id, table, limit)
	if err != nil {
		WriteServiceError(w, err, "Get sample data", h.logger)
		return
	}
	writeData(w, http.StatusOK, rows, h.logger)
}

// Query handles POST /api/datasources/{id}/query
func (h *DatasourcesHandler) Query(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	var req QueryRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "missing_query", "query is required", h.logger)
		return
	}

	result, err := h.datasourceService.ExecuteReadonlyQuery(r.Context(), id, req.Query, req.MaxRows, sqlgate.SurfaceHTTP)
	if err != nil {
		WriteServiceError(w, err, "Execute query", h.logger)
		return
	}
	writeData(w, http.StatusOK, result, h.logger)
}
