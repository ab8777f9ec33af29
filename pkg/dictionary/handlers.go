package dictionary

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/datadict/datadict/pkg/api"
	"github.com/datadict/datadict/pkg/auth"
)

// OwnershipGate confirms that a user owns a project before any version
// operation proceeds.
type OwnershipGate interface {
	VerifyAccess(projectID, userID string) error
}

// Handlers serves the version and sub-document endpoints.
type Handlers struct {
	manager *Manager
	gate    OwnershipGate
	logger  *slog.Logger
	debug   bool
}

// NewHandlers creates the dictionary handler set.
func NewHandlers(manager *Manager, gate OwnershipGate, logger *slog.Logger, debug bool) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{manager: manager, gate: gate, logger: logger, debug: debug}
}

// Routes mounts the version and sub-document routes on r. The caller is
// expected to have auth middleware installed already.
func (h *Handlers) Routes(r chi.Router) {
	r.Route("/projects/{projectID}/versions", func(r chi.Router) {
		r.Get("/", h.listVersions)
		r.Post("/", h.createVersion)
		r.Get("/latest", h.getLatest)

		r.Route("/{version}", func(r chi.Router) {
			r.Get("/", h.getVersion)
			r.Put("/", h.updateVersion)
			r.Delete("/", h.deleteVersion)

			r.Get("/erd", h.getERD)
			r.Put("/erd", h.updateERD)

			r.Route("/tables", func(r chi.Router) {
				r.Get("/", h.listTables)
				r.Post("/", h.createTable)
				r.Route("/{tableName}", func(r chi.Router) {
					r.Get("/", h.getTable)
					r.Patch("/", h.updateTable)
					r.Delete("/", h.deleteTable)

					r.Post("/columns", h.addColumn)
					r.Put("/columns/{columnName}", h.updateColumn)
					r.Delete("/columns/{columnName}", h.deleteColumn)
				})
			})
		})
	})
}

// authorize resolves the caller's identity and runs the ownership gate for
// the project in the URL. Returns the project id and user id on success.
func (h *Handlers) authorize(w http.ResponseWriter, r *http.Request) (projectID, userID string, ok bool) {
	id, found := auth.IdentityFromContext(r.Context())
	if !found {
		api.WriteError(w, api.Unauthenticated(""), h.debug)
		return "", "", false
	}
	projectID = chi.URLParam(r, "projectID")
	if err := h.gate.VerifyAccess(projectID, id.UserID); err != nil {
		api.WriteError(w, err, h.debug)
		return "", "", false
	}
	return projectID, id.UserID, true
}

// versionParam parses the numeric version path segment.
func versionParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "version")
	version, err := strconv.Atoi(raw)
	if err != nil || version < 1 {
		return 0, api.Validation("invalid version number %q", raw)
	}
	return version, nil
}

// schemaQuery returns the schema_name query parameter, defaulting to public.
func schemaQuery(r *http.Request) string {
	if s := r.URL.Query().Get("schema_name"); s != "" {
		return s
	}
	return DefaultSchemaName
}

func (h *Handlers) listVersions(w http.ResponseWriter, r *http.Request) {
	projectID, _, ok := h.authorize(w, r)
	if !ok {
		return
	}
	versions, err := h.manager.ListVersions(projectID)
	if err != nil {
		h.logger.Error("list versions failed", "projectId", projectID, "error", err)
		api.WriteError(w, err, h.debug)
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]any{"versions": versions},
		fmt.Sprintf("Found %d versions", len(versions)))
}

func (h *Handlers) createVersion(w http.ResponseWriter, r *http.Request) {
	projectID, userID, ok := h.authorize(w, r)
	if !ok {
		return
	}
	var req CreateVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, api.Validation("invalid request body: %v", err), h.debug)
		return
	}
	if req.Name == "" {
		api.WriteError(w, api.Validation("name is required"), h.debug)
		return
	}
	record, doc, err := h.manager.CreateVersion(r.Context(), projectID, userID, req)
	if err != nil {
		h.logger.Error("create version failed", "projectId", projectID, "error", err)
		api.WriteError(w, err, h.debug)
		return
	}
	api.WriteSuccess(w, http.StatusCreated,
		map[string]any{"version": record, "dictionary": doc},
		fmt.Sprintf("Version %d created successfully", record.Version))
}

func (h *Handlers) getLatest(w http.ResponseWriter, r *http.Request) {
	projectID, _, ok := h.authorize(w, r)
	if !ok {
		return
	}
	record, doc, err := h.manager.GetLatest(r.Context(), projectID)
	if err != nil {
		h.logger.Error("get latest version failed", "projectId", projectID, "error", err)
		api.WriteError(w, err, h.debug)
		return
	}
	if record == nil {
		// A project with no versions is a valid state, not an error.
		api.WriteSuccess(w, http.StatusOK,
			map[string]any{"version": nil, "dictionary": nil},
			"No versions found for this project")
		return
	}
	api.WriteSuccess(w, http.StatusOK,
		map[string]any{"version": record, "dictionary": doc},
		"Latest version retrieved successfully")
}

func (h *Handlers) getVersion(w http.ResponseWriter, r *http.Request) {
	projectID, _, ok := h.authorize(w, r)
	if !ok {
		return
	}
	version, err := versionParam(r)
	if err != nil {
		api.WriteError(w, err, h.debug)
		return
	}
	record, doc, err := h.manager.GetVersion(r.Context(), projectID, version)
	if err != nil {
		api.WriteError(w, err, h.debug)
		return
	}
	api.WriteSuccess(w, http.StatusOK,
		map[string]any{"version": record, "dictionary": doc},
		fmt.Sprintf("Version %d retrieved successfully", version))
}

func (h *Handlers) updateVersion(w http.ResponseWriter, r *http.Request) {
	projectID, _, ok := h.authorize(w, r)
	if !ok {
		return
	}
	version, err := versionParam(r)
	if err != nil {
		api.WriteError(w, err, h.debug)
		return
	}
	var req UpdateVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, api.Validation("invalid request body: %v", err), h.debug)
		return
	}
	if err := h.manager.UpdateVersion(r.Context(), projectID, version, req); err != nil {
		h.logger.Error("update version failed", "projectId", projectID, "version", version, "error", err)
		api.WriteError(w, err, h.debug)
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]any{"version": version},
		fmt.Sprintf("Version %d updated successfully", version))
}

func (h *Handlers) deleteVersion(w http.ResponseWriter, r *http.Request) {
	projectID, _, ok := h.authorize(w, r)
	if !ok {
		return
	}
	version, err := versionParam(r)
	if err != nil {
		api.WriteError(w, err, h.debug)
		return
	}
	if err := h.manager.DeleteVersion(r.Context(), projectID, version); err != nil {
		api.WriteError(w, err, h.debug)
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]any{"deleted_version": version},
		fmt.Sprintf("Version %d deleted successfully", version))
}

func (h *Handlers) listTables(w http.ResponseWriter, r *http.Request) {
	projectID, _, ok := h.authorize(w, r)
	if !ok {
		return
	}
	version, err := versionParam(r)
	if err != nil {
		api.WriteError(w, err, h.debug)
		return
	}
	doc, err := h.manager.LoadDocument(r.Context(), projectID, version)
	if err != nil {
		api.WriteError(w, err, h.debug)
		return
	}
	schemaName := schemaQuery(r)
	tables := doc.TablesInSchema(schemaName)
	if tables == nil {
		tables = []Table{}
	}
	api.WriteSuccess(w, http.StatusOK,
		map[string]any{"tables": tables, "schema": schemaName, "count": len(tables)},
		fmt.Sprintf("Found %d tables in schema %s", len(tables), schemaName))
}

func (h *Handlers) createTable(w http.ResponseWriter, r *http.Request) {
	projectID, _, ok := h.authorize(w, r)
	if !ok {
		return
	}
	version, err := versionParam(r)
	if err != nil {
		api.WriteError(w, err, h.debug)
		return
	}
	var table Table
	if err := json.NewDecoder(r.Body).Decode(&table); err != nil {
		api.WriteError(w, api.Validation("invalid request body: %v", err), h.debug)
		return
	}
	var created *Table
	_, err = h.manager.MutateDocument(r.Context(), projectID, version, func(d *Dictionary) error {
		var mutErr error
		created, mutErr = d.CreateTable(table)
		return mutErr
	})
	if err != nil {
		api.WriteError(w, err, h.debug)
		return
	}
	api.WriteSuccess(w, http.StatusCreated, map[string]any{"table": created},
		fmt.Sprintf("Table %q created successfully in schema %q", created.Name, created.SchemaName))
}

func (h *Handlers) getTable(w http.ResponseWriter, r *http.Request) {
	projectID, _, ok := h.authorize(w, r)
	if !ok {
		return
	}
	version, err := versionParam(r)
	if err != nil {
		api.WriteError(w, err, h.debug)
		return
	}
	tableName := chi.URLParam(r, "tableName")
	schemaName := schemaQuery(r)
	doc, err := h.manager.LoadDocument(r.Context(), projectID, version)
	if err != nil {
		api.WriteError(w, err, h.debug)
		return
	}
	table := doc.FindTable(tableName, schemaName)
	if table == nil {
		api.WriteError(w, api.NotFound("table %q not found in schema %q", tableName, schemaName), h.debug)
		return
	}
	rels := doc.TableRelationships(tableName)
	if rels == nil {
		rels = []Relationship{}
	}
	api.WriteSuccess(w, http.StatusOK,
		map[string]any{"table": table, "relationships": rels},
		fmt.Sprintf("Table %q retrieved successfully", tableName))
}

func (h *Handlers) updateTable(w http.ResponseWriter, r *http.Request) {
	projectID, _, ok := h.authorize(w, r)
	if !ok {
		return
	}
	version, err := versionParam(r)
	if err != nil {
		api.WriteError(w, err, h.debug)
		return
	}
	tableName := chi.URLParam(r, "tableName")
	schemaName := schemaQuery(r)
	var patch Table
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		api.WriteError(w, api.Validation("invalid request body: %v", err), h.debug)
		return
	}
	var updated *Table
	_, err = h.manager.MutateDocument(r.Context(), projectID, version, func(d *Dictionary) error {
		var mutErr error
		updated, mutErr = d.UpdateTable(tableName, schemaName, patch)
		return mutErr
	})
	if err != nil {
		api.WriteError(w, err, h.debug)
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]any{"table": updated},
		fmt.Sprintf("Table %q updated successfully", tableName))
}

func (h *Handlers) deleteTable(w http.ResponseWriter, r *http.Request) {
	projectID, _, ok := h.authorize(w, r)
	if !ok {
		return
	}
	version, err := versionParam(r)
	if err != nil {
		api.WriteError(w, err, h.debug)
		return
	}
	tableName := chi.URLParam(r, "tableName")
	schemaName := schemaQuery(r)
	removed := 0
	_, err = h.manager.MutateDocument(r.Context(), projectID, version, func(d *Dictionary) error {
		var mutErr error
		removed, mutErr = d.DeleteTable(tableName, schemaName)
		return mutErr
	})
	if err != nil {
		api.WriteError(w, err, h.debug)
		return
	}
	api.WriteSuccess(w, http.StatusOK,
		map[string]any{"deleted_table": tableName, "relationships_removed": removed},
		fmt.Sprintf("Table %q deleted successfully from schema %q", tableName, schemaName))
}

func (h *Handlers) addColumn(w http.ResponseWriter, r *http.Request) {
	projectID, _, ok := h.authorize(w, r)
	if !ok {
		return
	}
	version, err := versionParam(r)
	if err != nil {
		api.WriteError(w, err, h.debug)
		return
	}
	tableName := chi.URLParam(r, "tableName")
	schemaName := schemaQuery(r)
	var column Column
	if err := json.NewDecoder(r.Body).Decode(&column); err != nil {
		api.WriteError(w, api.Validation("invalid request body: %v", err), h.debug)
		return
	}
	var created *Column
	_, err = h.manager.MutateDocument(r.Context(), projectID, version, func(d *Dictionary) error {
		var mutErr error
		created, mutErr = d.AddColumn(tableName, schemaName, column)
		return mutErr
	})
	if err != nil {
		api.WriteError(w, err, h.debug)
		return
	}
	api.WriteSuccess(w, http.StatusCreated, map[string]any{"column": created},
		fmt.Sprintf("Column %q added to table %q", created.Name, tableName))
}

func (h *Handlers) updateColumn(w http.ResponseWriter, r *http.Request) {
	projectID, _, ok := h.authorize(w, r)
	if !ok {
		return
	}
	version, err := versionParam(r)
	if err != nil {
		api.WriteError(w, err, h.debug)
		return
	}
	tableName := chi.URLParam(r, "tableName")
	columnName := chi.URLParam(r, "columnName")
	schemaName := schemaQuery(r)
	var patch Column
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		api.WriteError(w, api.Validation("invalid request body: %v", err), h.debug)
		return
	}
	var updated *Column
	_, err = h.manager.MutateDocument(r.Context(), projectID, version, func(d *Dictionary) error {
		var mutErr error
		updated, mutErr = d.UpdateColumn(tableName, schemaName, columnName, patch)
		return mutErr
	})
	if err != nil {
		api.WriteError(w, err, h.debug)
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]any{"column": updated},
		fmt.Sprintf("Column %q updated in table %q", columnName, tableName))
}

func (h *Handlers) deleteColumn(w http.ResponseWriter, r *http.Request) {
	projectID, _, ok := h.authorize(w, r)
	if !ok {
		return
	}
	version, err := versionParam(r)
	if err != nil {
		api.WriteError(w, err, h.debug)
		return
	}
	tableName := chi.URLParam(r, "tableName")
	columnName := chi.URLParam(r, "columnName")
	schemaName := schemaQuery(r)
	removed := 0
	_, err = h.manager.MutateDocument(r.Context(), projectID, version, func(d *Dictionary) error {
		var mutErr error
		removed, mutErr = d.DeleteColumn(tableName, schemaName, columnName)
		return mutErr
	})
	if err != nil {
		api.WriteError(w, err, h.debug)
		return
	}
	api.WriteSuccess(w, http.StatusOK,
		map[string]any{"deleted_column": columnName, "relationships_removed": removed},
		fmt.Sprintf("Column %q deleted successfully from table %q", columnName, tableName))
}

func (h *Handlers) getERD(w http.ResponseWriter, r *http.Request) {
	projectID, _, ok := h.authorize(w, r)
	if !ok {
		return
	}
	version, err := versionParam(r)
	if err != nil {
		api.WriteError(w, err, h.debug)
		return
	}
	doc, err := h.manager.LoadDocument(r.Context(), projectID, version)
	if err != nil {
		api.WriteError(w, err, h.debug)
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]any{"erd": doc.ERD},
		"ERD layout retrieved successfully")
}

func (h *Handlers) updateERD(w http.ResponseWriter, r *http.Request) {
	projectID, _, ok := h.authorize(w, r)
	if !ok {
		return
	}
	version, err := versionParam(r)
	if err != nil {
		api.WriteError(w, err, h.debug)
		return
	}
	var erd ERDLayout
	if err := json.NewDecoder(r.Body).Decode(&erd); err != nil {
		api.WriteError(w, api.Validation("invalid request body: %v", err), h.debug)
		return
	}
	doc, err := h.manager.MutateDocument(r.Context(), projectID, version, func(d *Dictionary) error {
		d.SetERD(erd)
		return nil
	})
	if err != nil {
		api.WriteError(w, err, h.debug)
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]any{"erd": doc.ERD},
		"ERD layout updated successfully")
}
