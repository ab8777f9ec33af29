package dictionary

import (
	"context"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datadict/datadict/pkg/api"
)

func newTestManager(t *testing.T) (*Manager, *MemoryDocumentStore) {
	t.Helper()
	vs := newTestVersionStore(t)
	docs := NewMemoryDocumentStore()
	return NewManager(vs, docs, slog.Default()), docs
}

func TestManager_CreateVersionDefaultSchema(t *testing.T) {
	m, docs := newTestManager(t)
	ctx := context.Background()

	record, doc, err := m.CreateVersion(ctx, "proj-1", "alice", CreateVersionRequest{
		Name: "Initial Version",
	})
	require.NoError(t, err)
	require.NotNil(t, record)
	require.NotNil(t, doc)

	assert.Equal(t, 1, record.Version)
	assert.True(t, record.IsLatest)
	assert.Equal(t, "alice", record.CreatedBy)
	assert.NotEmpty(t, record.DocumentRef)
	assert.Equal(t, 1, docs.Len())

	// The starter schema: one sample table with id, name, created_at.
	require.Len(t, doc.Schemas.Tables, 1)
	table := doc.Schemas.Tables[0]
	assert.Equal(t, "sample_table", table.Name)
	assert.Equal(t, DefaultSchemaName, table.SchemaName)
	require.Len(t, table.Columns, 3)
	assert.Equal(t, "id", table.Columns[0].Name)
	assert.True(t, table.Columns[0].IsPK())
}

func TestManager_CreateVersionNumbering(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		record, _, err := m.CreateVersion(ctx, "proj-1", "alice", CreateVersionRequest{Name: "v"})
		require.NoError(t, err)
		assert.Equal(t, want, record.Version)
	}

	latest, _, err := m.GetLatest(ctx, "proj-1")
	require.NoError(t, err)
	assert.Equal(t, 3, latest.Version)

	// Earlier versions lost the latest flag.
	v1, _, err := m.GetVersion(ctx, "proj-1", 1)
	require.NoError(t, err)
	assert.False(t, v1.IsLatest)
}

func TestManager_CreateVersionExplicitSchemas(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	req := CreateVersionRequest{
		Name: "seeded",
		Schemas: []Schema{{
			Name: "sales",
			Tables: []Table{
				{Name: "orders", Columns: []Column{{Name: "id", DataType: "bigint", Key: KeyPrimary}}},
				{Name: "customers", Columns: []Column{{Name: "id", DataType: "bigint", Key: KeyPrimary}}},
			},
		}},
	}
	_, doc, err := m.CreateVersion(ctx, "proj-1", "alice", req)
	require.NoError(t, err)

	require.Len(t, doc.Schemas.Tables, 2)
	for _, table := range doc.Schemas.Tables {
		assert.Equal(t, "sales", table.SchemaName)
	}
}

func TestManager_CreateVersionFromBase(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, baseDoc, err := m.CreateVersion(ctx, "proj-1", "alice", CreateVersionRequest{Name: "v1"})
	require.NoError(t, err)

	base := 1
	record, doc, err := m.CreateVersion(ctx, "proj-1", "alice", CreateVersionRequest{
		Name:        "v2",
		BaseVersion: &base,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, record.Version)
	require.Len(t, doc.Schemas.Tables, len(baseDoc.Schemas.Tables))

	// The copy is deep: mutating the new version leaves the base untouched.
	_, err = m.MutateDocument(ctx, "proj-1", 2, func(d *Dictionary) error {
		_, mutErr := d.AddColumn("sample_table", DefaultSchemaName, Column{Name: "email", DataType: "varchar"})
		return mutErr
	})
	require.NoError(t, err)

	baseAfter, err := m.LoadDocument(ctx, "proj-1", 1)
	require.NoError(t, err)
	assert.Len(t, baseAfter.Schemas.Tables[0].Columns, 3)

	v2, err := m.LoadDocument(ctx, "proj-1", 2)
	require.NoError(t, err)
	assert.Len(t, v2.Schemas.Tables[0].Columns, 4)
}

func TestManager_CreateVersionBaseNotFound(t *testing.T) {
	m, docs := newTestManager(t)
	ctx := context.Background()

	base := 7
	_, _, err := m.CreateVersion(ctx, "proj-1", "alice", CreateVersionRequest{
		Name:        "v",
		BaseVersion: &base,
	})
	require.Error(t, err)
	assert.True(t, api.IsNotFound(err))
	assert.Equal(t, 0, docs.Len())
}

func TestManager_CreateVersionCompensatesOnRelationalFailure(t *testing.T) {
	vs := newTestVersionStore(t)
	docs := NewMemoryDocumentStore()
	m := NewManager(vs, docs, slog.Default())
	ctx := context.Background()

	_, _, err := m.CreateVersion(ctx, "proj-1", "alice", CreateVersionRequest{Name: "v1"})
	require.NoError(t, err)
	require.Equal(t, 1, docs.Len())

	// Reject further version-row inserts so only the document write lands.
	require.NoError(t, vs.db.Exec(`
		CREATE TRIGGER reject_version_inserts BEFORE INSERT ON dictionary_versions
		BEGIN SELECT RAISE(ABORT, 'version insert rejected'); END`).Error)

	_, _, err = m.CreateVersion(ctx, "proj-1", "alice", CreateVersionRequest{Name: "v2"})
	require.Error(t, err)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Code)

	// The compensating delete removed the just-inserted document.
	assert.Equal(t, 1, docs.Len())

	records, err := vs.ListByProject("proj-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].Version)
	assert.True(t, records[0].IsLatest)
}

func TestManager_CreateVersionConflictRetriesAndCleansUp(t *testing.T) {
	vs := newTestVersionStore(t)
	docs := NewMemoryDocumentStore()
	m := NewManager(vs, docs, slog.Default())
	ctx := context.Background()

	_, _, err := m.CreateVersion(ctx, "proj-1", "alice", CreateVersionRequest{Name: "v1"})
	require.NoError(t, err)

	// Mimic a concurrent writer grabbing version 2 between the max-version
	// read and the insert: the trigger slips a conflicting row in first, so
	// the manager's own insert hits the unique index on every attempt.
	require.NoError(t, vs.db.Exec(`
		CREATE TRIGGER concurrent_version_writer BEFORE INSERT ON dictionary_versions
		WHEN NEW.version = 2
		BEGIN
			INSERT INTO dictionary_versions (id, project_id, version, document_ref, name, is_latest, created_at)
			VALUES ('shadow', NEW.project_id, NEW.version, 'shadow-ref', 'Concurrent', 0, CURRENT_TIMESTAMP);
		END`).Error)

	_, _, err = m.CreateVersion(ctx, "proj-1", "alice", CreateVersionRequest{Name: "v2"})
	require.Error(t, err)
	assert.True(t, api.IsConflict(err))

	// Every failed attempt deleted its document; only v1's remains.
	assert.Equal(t, 1, docs.Len())

	records, err := vs.ListByProject("proj-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].Version)
	assert.True(t, records[0].IsLatest)
}

func TestManager_GetLatestEmptyProject(t *testing.T) {
	m, _ := newTestManager(t)

	record, doc, err := m.GetLatest(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.Nil(t, record)
	assert.Nil(t, doc)
}

func TestManager_GetVersionNotFound(t *testing.T) {
	m, _ := newTestManager(t)

	_, _, err := m.GetVersion(context.Background(), "proj-1", 4)
	require.Error(t, err)
	assert.True(t, api.IsNotFound(err))
}

func TestManager_MissingDocumentIsConsistencyError(t *testing.T) {
	m, docs := newTestManager(t)
	ctx := context.Background()

	record, _, err := m.CreateVersion(ctx, "proj-1", "alice", CreateVersionRequest{Name: "v1"})
	require.NoError(t, err)

	// Simulate a lost document behind a live version record.
	require.NoError(t, docs.Delete(ctx, record.DocumentRef))

	_, _, err = m.GetLatest(ctx, "proj-1")
	require.Error(t, err)
	assert.False(t, api.IsNotFound(err))
}

func TestManager_UpdateVersion(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	record, _, err := m.CreateVersion(ctx, "proj-1", "alice", CreateVersionRequest{Name: "v1"})
	require.NoError(t, err)

	name := "Renamed"
	schemas := []Schema{{
		Name:   "analytics",
		Tables: []Table{{Name: "events", Columns: []Column{{Name: "id", DataType: "uuid", Key: KeyPrimary}}}},
	}}
	err = m.UpdateVersion(ctx, "proj-1", record.Version, UpdateVersionRequest{
		Name:    &name,
		Schemas: &schemas,
	})
	require.NoError(t, err)

	got, doc, err := m.GetVersion(ctx, "proj-1", record.Version)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, "Renamed", doc.Name)

	// Supplied schemas replace the stored tables wholesale.
	require.Len(t, doc.Schemas.Tables, 1)
	assert.Equal(t, "events", doc.Schemas.Tables[0].Name)
	assert.Equal(t, "analytics", doc.Schemas.Tables[0].SchemaName)
}

func TestManager_UpdateVersionNoFields(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, _, err := m.CreateVersion(ctx, "proj-1", "alice", CreateVersionRequest{Name: "v1"})
	require.NoError(t, err)

	require.NoError(t, m.UpdateVersion(ctx, "proj-1", 1, UpdateVersionRequest{}))

	got, _, err := m.GetVersion(ctx, "proj-1", 1)
	require.NoError(t, err)
	assert.Equal(t, "v1", got.Name)
}

func TestManager_UpdateVersionRejectsInvalidRelationship(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, _, err := m.CreateVersion(ctx, "proj-1", "alice", CreateVersionRequest{Name: "v1"})
	require.NoError(t, err)

	bad := []Relationship{{
		ID:               "rel-1",
		SourceTable:      "orders",
		SourceColumn:     "user_id",
		TargetTable:      "users",
		TargetColumn:     "id",
		RelationshipType: "many-ish",
	}}
	err = m.UpdateVersion(ctx, "proj-1", 1, UpdateVersionRequest{Relationships: &bad})
	require.Error(t, err)
	assert.True(t, api.IsValidation(err))

	bad[0].RelationshipType = OneToMany
	bad[0].OnDelete = "TRUNCATE"
	err = m.UpdateVersion(ctx, "proj-1", 1, UpdateVersionRequest{Relationships: &bad})
	require.Error(t, err)
	assert.True(t, api.IsValidation(err))

	bad[0].OnDelete = "CASCADE"
	require.NoError(t, m.UpdateVersion(ctx, "proj-1", 1, UpdateVersionRequest{Relationships: &bad}))

	_, doc, err := m.GetVersion(ctx, "proj-1", 1)
	require.NoError(t, err)
	require.Len(t, doc.Relationships, 1)
	assert.Equal(t, "CASCADE", doc.Relationships[0].OnDelete)
}

func TestManager_DeleteOnlyVersionRejected(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, _, err := m.CreateVersion(ctx, "proj-1", "alice", CreateVersionRequest{Name: "v1"})
	require.NoError(t, err)

	err = m.DeleteVersion(ctx, "proj-1", 1)
	require.Error(t, err)
	assert.True(t, api.IsValidation(err))
}

func TestManager_DeleteLatestPromotesPrevious(t *testing.T) {
	m, docs := newTestManager(t)
	ctx := context.Background()

	_, _, err := m.CreateVersion(ctx, "proj-1", "alice", CreateVersionRequest{Name: "v1"})
	require.NoError(t, err)
	record2, _, err := m.CreateVersion(ctx, "proj-1", "alice", CreateVersionRequest{Name: "v2"})
	require.NoError(t, err)

	require.NoError(t, m.DeleteVersion(ctx, "proj-1", 2))

	latest, _, err := m.GetLatest(ctx, "proj-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 1, latest.Version)
	assert.True(t, latest.IsLatest)

	// The deleted version's document went with it.
	doc, err := docs.Get(ctx, record2.DocumentRef)
	require.NoError(t, err)
	assert.Nil(t, doc)
	assert.Equal(t, 1, docs.Len())
}

func TestManager_DeleteNonLatestKeepsLatest(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, _, err := m.CreateVersion(ctx, "proj-1", "alice", CreateVersionRequest{Name: "v"})
		require.NoError(t, err)
	}

	require.NoError(t, m.DeleteVersion(ctx, "proj-1", 1))

	latest, _, err := m.GetLatest(ctx, "proj-1")
	require.NoError(t, err)
	assert.Equal(t, 3, latest.Version)

	// A new version keeps counting past the deleted numbers.
	record, _, err := m.CreateVersion(ctx, "proj-1", "alice", CreateVersionRequest{Name: "v4"})
	require.NoError(t, err)
	assert.Equal(t, 4, record.Version)
}

func TestManager_DeleteVersionNotFound(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	err := m.DeleteVersion(ctx, "proj-1", 1)
	require.Error(t, err)
	assert.True(t, api.IsNotFound(err))

	_, _, err = m.CreateVersion(ctx, "proj-1", "alice", CreateVersionRequest{Name: "v1"})
	require.NoError(t, err)
	_, _, err = m.CreateVersion(ctx, "proj-1", "alice", CreateVersionRequest{Name: "v2"})
	require.NoError(t, err)

	err = m.DeleteVersion(ctx, "proj-1", 9)
	require.Error(t, err)
	assert.True(t, api.IsNotFound(err))
}

func TestManager_MutateDocumentAbortsOnRuleFailure(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, _, err := m.CreateVersion(ctx, "proj-1", "alice", CreateVersionRequest{Name: "v1"})
	require.NoError(t, err)

	// A duplicate table name fails the mutation; nothing is persisted.
	_, err = m.MutateDocument(ctx, "proj-1", 1, func(d *Dictionary) error {
		_, mutErr := d.CreateTable(Table{Name: "sample_table"})
		return mutErr
	})
	require.Error(t, err)
	assert.True(t, api.IsConflict(err))

	doc, err := m.LoadDocument(ctx, "proj-1", 1)
	require.NoError(t, err)
	assert.Len(t, doc.Schemas.Tables, 1)
}

func TestManager_PurgeProject(t *testing.T) {
	m, docs := newTestManager(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := m.CreateVersion(ctx, "proj-1", "alice", CreateVersionRequest{Name: "v"})
		require.NoError(t, err)
	}
	_, _, err := m.CreateVersion(ctx, "proj-2", "bob", CreateVersionRequest{Name: "other"})
	require.NoError(t, err)

	require.NoError(t, m.PurgeProject(ctx, "proj-1"))

	records, err := m.ListVersions("proj-1")
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 1, docs.Len())
}
