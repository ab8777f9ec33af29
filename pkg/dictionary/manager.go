package dictionary

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/datadict/datadict/pkg/api"
)

// createRetries bounds the retry loop for the concurrent-create race on the
// (project_id, version) unique index.
const createRetries = 3

// CreateVersionRequest is the payload for creating a new dictionary version.
// Content is resolved in priority order: BaseVersion, then Schemas, then the
// default sample schema.
type CreateVersionRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	BaseVersion *int     `json:"base_version,omitempty"`
	Schemas     []Schema `json:"schemas,omitempty"`
}

// UpdateVersionRequest is a partial patch across both stores. Nil fields are
// untouched; Schemas replaces the table list wholesale.
type UpdateVersionRequest struct {
	Name          *string         `json:"name,omitempty"`
	Description   *string         `json:"description,omitempty"`
	Schemas       *[]Schema       `json:"schemas,omitempty"`
	Relationships *[]Relationship `json:"relationships,omitempty"`
	ERD           *ERDLayout      `json:"erd,omitempty"`
	Metadata      *map[string]any `json:"metadata,omitempty"`
}

// Manager orchestrates version lifecycle operations across the relational
// version index and the document store. The two stores have no shared
// transaction: the document write happens first on create, and a failure on
// the relational write triggers a best-effort compensating document delete.
type Manager struct {
	versions  *VersionStore
	documents DocumentStore
	logger    *slog.Logger
}

// NewManager creates a Manager over the two stores.
func NewManager(versions *VersionStore, documents DocumentStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{versions: versions, documents: documents, logger: logger}
}

// Versions exposes the underlying version store, mainly for migration wiring.
func (m *Manager) Versions() *VersionStore { return m.versions }

// ListVersions returns all version records for a project, newest first.
func (m *Manager) ListVersions(projectID string) ([]VersionRecord, error) {
	records, err := m.versions.ListByProject(projectID)
	if err != nil {
		return nil, api.Database("failed to list versions", err)
	}
	return records, nil
}

// CreateVersion creates the next version for a project: the document is
// inserted first, then the version record becomes the new latest. On a
// version-number conflict (two concurrent creates) the orphaned document is
// deleted best-effort and the whole sequence retried with a recomputed
// number.
func (m *Manager) CreateVersion(ctx context.Context, projectID, userID string, req CreateVersionRequest) (*VersionRecord, *Dictionary, error) {
	schemas, relationships, erd, err := m.resolveContent(ctx, projectID, req)
	if err != nil {
		return nil, nil, err
	}

	var lastErr error
	for attempt := 0; attempt < createRetries; attempt++ {
		max, err := m.versions.MaxVersion(projectID)
		if err != nil {
			return nil, nil, api.Database("failed to compute next version", err)
		}
		next := max + 1

		now := time.Now().UTC()
		doc := &Dictionary{
			ProjectID:     projectID,
			Version:       next,
			Name:          req.Name,
			Description:   req.Description,
			Schemas:       schemas,
			Relationships: relationships,
			ERD:           erd,
			Metadata:      map[string]any{},
			CreatedBy:     userID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		ref, err := m.documents.Insert(ctx, doc)
		if err != nil {
			return nil, nil, api.Database("failed to store dictionary document", err)
		}

		record := &VersionRecord{
			ID:          uuid.New().String(),
			ProjectID:   projectID,
			Version:     next,
			DocumentRef: ref,
			Name:        req.Name,
			Description: req.Description,
			Metadata:    JSONAny{},
			CreatedBy:   userID,
		}
		err = m.versions.CreateAsLatest(record)
		if err == nil {
			return record, doc, nil
		}

		// The document is already in the other store; remove it before
		// surfacing or retrying so the failed attempt leaves no orphan.
		if delErr := m.documents.Delete(ctx, ref); delErr != nil {
			m.logger.Warn("orphaned dictionary document after failed version insert",
				"projectId", projectID, "version", next, "documentRef", ref, "error", delErr)
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, nil, api.Database("failed to create version record", err)
		}
		lastErr = err
		m.logger.Info("version number conflict, retrying",
			"projectId", projectID, "version", next, "attempt", attempt+1)
	}
	conflict := api.Conflict("version creation conflicted with a concurrent request")
	conflict.Err = lastErr
	return nil, nil, conflict
}

// GetLatest returns the latest version record and its document. A project
// with no versions returns (nil, nil, nil). A version record whose document
// is missing is a fatal consistency error, never silently swallowed.
func (m *Manager) GetLatest(ctx context.Context, projectID string) (*VersionRecord, *Dictionary, error) {
	record, err := m.versions.GetLatest(projectID)
	if err != nil {
		return nil, nil, api.Database("failed to look up latest version", err)
	}
	if record == nil {
		return nil, nil, nil
	}
	doc, err := m.resolveDocument(ctx, record)
	if err != nil {
		return nil, nil, err
	}
	return record, doc, nil
}

// GetVersion returns one version record and its document, or NotFound.
func (m *Manager) GetVersion(ctx context.Context, projectID string, version int) (*VersionRecord, *Dictionary, error) {
	record, err := m.versions.Get(projectID, version)
	if err != nil {
		return nil, nil, api.Database("failed to look up version", err)
	}
	if record == nil {
		return nil, nil, api.NotFound("version %d not found", version)
	}
	doc, err := m.resolveDocument(ctx, record)
	if err != nil {
		return nil, nil, err
	}
	return record, doc, nil
}

// UpdateVersion applies a partial patch: relational fields (name,
// description) and document fields (schemas, relationships, erd, metadata)
// are each updated only when present. Supplied schemas replace the stored
// table list wholesale.
func (m *Manager) UpdateVersion(ctx context.Context, projectID string, version int, req UpdateVersionRequest) error {
	record, err := m.versions.Get(projectID, version)
	if err != nil {
		return api.Database("failed to look up version", err)
	}
	if record == nil {
		return api.NotFound("version %d not found", version)
	}
	if req.Relationships != nil {
		for _, rel := range *req.Relationships {
			if err := rel.Validate(); err != nil {
				return api.Validation("%v", err)
			}
		}
	}

	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if len(updates) > 0 {
		if err := m.versions.UpdateMetadata(record.ID, updates); err != nil {
			return api.Database("failed to update version record", err)
		}
	}

	patch := DocumentPatch{
		Name:          req.Name,
		Description:   req.Description,
		Relationships: req.Relationships,
		Metadata:      req.Metadata,
	}
	if req.Schemas != nil {
		patch.Schemas = &SchemaSet{
			Tables:        FlattenSchemas(*req.Schemas),
			Relationships: []Relationship{},
		}
	}
	if req.ERD != nil {
		erd := *req.ERD
		if erd.Nodes == nil {
			erd.Nodes = []ERDNode{}
		}
		if erd.Edges == nil {
			erd.Edges = []ERDEdge{}
		}
		patch.ERD = &erd
	}
	if patch.IsEmpty() {
		return nil
	}
	if err := m.documents.Update(ctx, record.DocumentRef, patch); err != nil {
		return api.Database("failed to update dictionary document", err)
	}
	return nil
}

// DeleteVersion removes one version. Deleting the only version of a project
// is rejected; deleting the latest promotes the remaining version with the
// highest number. The document delete after the relational delete is
// fire-and-forget: a failure is logged, not surfaced.
func (m *Manager) DeleteVersion(ctx context.Context, projectID string, version int) error {
	records, err := m.versions.ListByProject(projectID)
	if err != nil {
		return api.Database("failed to list versions", err)
	}
	if len(records) == 0 {
		return api.NotFound("no versions found")
	}
	if len(records) == 1 {
		if records[0].Version != version {
			return api.NotFound("version %d not found", version)
		}
		return api.Validation("cannot delete the only version")
	}

	var target *VersionRecord
	for i := range records {
		if records[i].Version == version {
			target = &records[i]
			break
		}
	}
	if target == nil {
		return api.NotFound("version %d not found", version)
	}

	promoted, err := m.versions.DeleteAndPromote(projectID, version, target.IsLatest)
	if err != nil {
		return api.Database("failed to delete version record", err)
	}
	if promoted != 0 {
		m.logger.Info("promoted new latest version",
			"projectId", projectID, "deleted", version, "promoted", promoted)
	}

	if err := m.documents.Delete(ctx, target.DocumentRef); err != nil {
		m.logger.Warn("failed to delete dictionary document, document orphaned",
			"projectId", projectID, "version", version,
			"documentRef", target.DocumentRef, "error", err)
	}
	return nil
}

// MutateDocument loads a version's document, applies fn to it, and persists
// the schema tree, relationships, and ERD. Business-rule failures inside fn
// abort before anything is written.
func (m *Manager) MutateDocument(ctx context.Context, projectID string, version int, fn func(*Dictionary) error) (*Dictionary, error) {
	record, err := m.versions.Get(projectID, version)
	if err != nil {
		return nil, api.Database("failed to look up version", err)
	}
	if record == nil {
		return nil, api.NotFound("version %d not found", version)
	}
	doc, err := m.resolveDocument(ctx, record)
	if err != nil {
		return nil, err
	}
	if err := fn(doc); err != nil {
		return nil, err
	}
	patch := DocumentPatch{
		Schemas:       &doc.Schemas,
		Relationships: &doc.Relationships,
		ERD:           &doc.ERD,
	}
	if err := m.documents.Update(ctx, record.DocumentRef, patch); err != nil {
		return nil, api.Database("failed to update dictionary document", err)
	}
	return doc, nil
}

// LoadDocument returns a version's document without mutating it.
func (m *Manager) LoadDocument(ctx context.Context, projectID string, version int) (*Dictionary, error) {
	record, err := m.versions.Get(projectID, version)
	if err != nil {
		return nil, api.Database("failed to look up version", err)
	}
	if record == nil {
		return nil, api.NotFound("version %d not found", version)
	}
	return m.resolveDocument(ctx, record)
}

// PurgeProject removes every version record and document for a project. The
// document deletes are best-effort; relational rows always go.
func (m *Manager) PurgeProject(ctx context.Context, projectID string) error {
	refs, err := m.versions.DeleteByProject(projectID)
	if err != nil {
		return api.Database("failed to delete version records", err)
	}
	if err := m.documents.DeleteMany(ctx, refs); err != nil {
		m.logger.Warn("failed to delete dictionary documents during project purge",
			"projectId", projectID, "documents", len(refs), "error", err)
	}
	return nil
}

// resolveContent picks the new version's content: deep copy of the base
// version's document, explicitly supplied schemas, or the default sample
// schema.
func (m *Manager) resolveContent(ctx context.Context, projectID string, req CreateVersionRequest) (SchemaSet, []Relationship, ERDLayout, error) {
	empty := ERDLayout{Nodes: []ERDNode{}, Edges: []ERDEdge{}}

	if req.BaseVersion != nil {
		record, err := m.versions.Get(projectID, *req.BaseVersion)
		if err != nil {
			return SchemaSet{}, nil, empty, api.Database("failed to look up base version", err)
		}
		if record == nil {
			return SchemaSet{}, nil, empty, api.NotFound("base version %d not found", *req.BaseVersion)
		}
		base, err := m.resolveDocument(ctx, record)
		if err != nil {
			return SchemaSet{}, nil, empty, err
		}
		schemas, relationships, erd := base.CloneContent()
		return schemas, relationships, erd, nil
	}

	var tables []Table
	if len(req.Schemas) > 0 {
		tables = FlattenSchemas(req.Schemas)
	} else {
		tables = DefaultTables()
	}
	return SchemaSet{Tables: tables, Relationships: []Relationship{}}, []Relationship{}, empty, nil
}

// resolveDocument fetches the document a record points at. A missing
// document behind a live record is a consistency failure.
func (m *Manager) resolveDocument(ctx context.Context, record *VersionRecord) (*Dictionary, error) {
	doc, err := m.documents.Get(ctx, record.DocumentRef)
	if err != nil {
		return nil, api.Database("failed to load dictionary document", err)
	}
	if doc == nil {
		m.logger.Error("dictionary document missing for version record",
			"projectId", record.ProjectID, "version", record.Version,
			"documentRef", record.DocumentRef)
		return nil, api.Database("dictionary document missing for existing version", nil)
	}
	return doc, nil
}
