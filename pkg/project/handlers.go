package project

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/datadict/datadict/pkg/api"
	"github.com/datadict/datadict/pkg/auth"
	"github.com/datadict/datadict/pkg/dictionary"
)

// Handlers serves the project CRUD endpoints. Creating a project also seeds
// its first dictionary version; deleting a project purges every version and
// document that belongs to it.
type Handlers struct {
	store   *Store
	manager *dictionary.Manager
	logger  *slog.Logger
	debug   bool
}

func NewHandlers(store *Store, manager *dictionary.Manager, logger *slog.Logger, debug bool) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{store: store, manager: manager, logger: logger, debug: debug}
}

func (h *Handlers) Routes(r chi.Router) {
	r.Route("/projects", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Route("/{projectID}", func(r chi.Router) {
			r.Get("/", h.get)
			r.Put("/", h.update)
			r.Delete("/", h.remove)
		})
	})
}

type createRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	DBType      string `json:"db_type"`
}

type updateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	DBType      *string `json:"db_type"`
}

func (h *Handlers) identity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		api.WriteError(w, api.Unauthenticated(""), h.debug)
		return auth.Identity{}, false
	}
	return id, true
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	limit := queryInt(r, "limit", 0)
	offset := queryInt(r, "offset", 0)
	records, err := h.store.ListByOwner(id.UserID, limit, offset)
	if err != nil {
		h.logger.Error("list projects failed", "userId", id.UserID, "error", err)
		api.WriteError(w, api.Database("failed to list projects", err), h.debug)
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]any{"projects": records},
		fmt.Sprintf("Found %d projects", len(records)))
}

func (h *Handlers) create(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, api.Validation("invalid request body: %v", err), h.debug)
		return
	}
	if req.Name == "" {
		api.WriteError(w, api.Validation("name is required"), h.debug)
		return
	}
	record := &Record{
		OwnerID:     id.UserID,
		Name:        req.Name,
		Description: req.Description,
		DBType:      req.DBType,
	}
	if err := h.store.Create(record); err != nil {
		h.logger.Error("create project failed", "userId", id.UserID, "error", err)
		api.WriteError(w, api.Database("failed to create project", err), h.debug)
		return
	}

	// Seed the first version with the starter schema. The project itself is
	// already committed, so a seeding failure is logged and the project is
	// returned without versions rather than rolled back.
	_, _, err := h.manager.CreateVersion(r.Context(), record.ID, id.UserID, dictionary.CreateVersionRequest{
		Name:        "Initial Version",
		Description: "Auto-created on project setup",
	})
	if err != nil {
		h.logger.Warn("initial version seeding failed",
			"projectId", record.ID, "error", err)
	}

	api.WriteSuccess(w, http.StatusCreated, map[string]any{"project": record},
		fmt.Sprintf("Project %q created successfully", record.Name))
}

func (h *Handlers) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	projectID := chi.URLParam(r, "projectID")
	record, err := h.store.Get(projectID, id.UserID)
	if err != nil {
		api.WriteError(w, api.Database("failed to load project", err), h.debug)
		return
	}
	if record == nil {
		api.WriteError(w, api.NotFound("project %s not found", projectID), h.debug)
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]any{"project": record},
		"Project retrieved successfully")
}

func (h *Handlers) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	projectID := chi.URLParam(r, "projectID")
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, api.Validation("invalid request body: %v", err), h.debug)
		return
	}
	updates := map[string]any{}
	if req.Name != nil {
		if *req.Name == "" {
			api.WriteError(w, api.Validation("name cannot be empty"), h.debug)
			return
		}
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.DBType != nil {
		updates["db_type"] = *req.DBType
	}
	if err := h.store.Update(projectID, id.UserID, updates); err != nil {
		api.WriteError(w, err, h.debug)
		return
	}
	record, err := h.store.Get(projectID, id.UserID)
	if err != nil {
		api.WriteError(w, api.Database("failed to reload project", err), h.debug)
		return
	}
	if record == nil {
		api.WriteError(w, api.NotFound("project %s not found", projectID), h.debug)
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]any{"project": record},
		"Project updated successfully")
}

func (h *Handlers) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	projectID := chi.URLParam(r, "projectID")
	record, err := h.store.Get(projectID, id.UserID)
	if err != nil {
		api.WriteError(w, api.Database("failed to load project", err), h.debug)
		return
	}
	if record == nil {
		api.WriteError(w, api.NotFound("project %s not found", projectID), h.debug)
		return
	}
	if err := h.manager.PurgeProject(r.Context(), projectID); err != nil {
		h.logger.Error("project purge failed", "projectId", projectID, "error", err)
		api.WriteError(w, err, h.debug)
		return
	}
	if err := h.store.Delete(projectID, id.UserID); err != nil {
		api.WriteError(w, err, h.debug)
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]any{"deleted_project": projectID},
		fmt.Sprintf("Project %q deleted successfully", record.Name))
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
