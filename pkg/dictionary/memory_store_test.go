package dictionary

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_InsertAndGetCopies(t *testing.T) {
	s := NewMemoryDocumentStore()
	ctx := context.Background()

	doc := &Dictionary{
		ProjectID: "proj-1",
		Version:   1,
		Name:      "v1",
		Schemas:   SchemaSet{Tables: DefaultTables(), Relationships: []Relationship{}},
	}
	ref, err := s.Insert(ctx, doc)
	require.NoError(t, err)
	require.NotEmpty(t, ref)

	got, err := s.Get(ctx, ref)
	require.NoError(t, err)
	require.NotNil(t, got)

	// Mutating the returned copy must not touch the stored document.
	got.Schemas.Tables[0].Columns[0].Name = "mutated"
	again, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "id", again.Schemas.Tables[0].Columns[0].Name)
}

func TestMemoryStore_GetAbsent(t *testing.T) {
	s := NewMemoryDocumentStore()

	got, err := s.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_UpdatePartialPatch(t *testing.T) {
	s := NewMemoryDocumentStore()
	ctx := context.Background()

	ref, err := s.Insert(ctx, &Dictionary{
		ProjectID:   "proj-1",
		Version:     1,
		Name:        "v1",
		Description: "original",
		Schemas:     SchemaSet{Tables: DefaultTables(), Relationships: []Relationship{}},
	})
	require.NoError(t, err)

	name := "renamed"
	require.NoError(t, s.Update(ctx, ref, DocumentPatch{Name: &name}))

	got, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	// Untouched fields survive the patch.
	assert.Equal(t, "original", got.Description)
	assert.Len(t, got.Schemas.Tables, 1)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestMemoryStore_UpdateClonesERDAndMetadata(t *testing.T) {
	s := NewMemoryDocumentStore()
	ctx := context.Background()

	ref, err := s.Insert(ctx, &Dictionary{ProjectID: "proj-1", Version: 1, Name: "v1"})
	require.NoError(t, err)

	erd := ERDLayout{
		Nodes: []ERDNode{{ID: "users", X: 10, Y: 20}},
		Edges: []ERDEdge{},
	}
	meta := map[string]any{"owner": "alice"}
	require.NoError(t, s.Update(ctx, ref, DocumentPatch{ERD: &erd, Metadata: &meta}))

	// Mutating the patch values after the update must not touch the store.
	erd.Nodes[0].ID = "mutated"
	meta["owner"] = "mallory"

	got, err := s.Get(ctx, ref)
	require.NoError(t, err)
	require.Len(t, got.ERD.Nodes, 1)
	assert.Equal(t, "users", got.ERD.Nodes[0].ID)
	assert.Equal(t, "alice", got.Metadata["owner"])
}

func TestMemoryStore_DeleteIsIdempotent(t *testing.T) {
	s := NewMemoryDocumentStore()
	ctx := context.Background()

	ref, err := s.Insert(ctx, &Dictionary{ProjectID: "proj-1", Version: 1})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, ref))
	require.NoError(t, s.Delete(ctx, ref))
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_DeleteMany(t *testing.T) {
	s := NewMemoryDocumentStore()
	ctx := context.Background()

	var refs []string
	for i := 1; i <= 3; i++ {
		ref, err := s.Insert(ctx, &Dictionary{ProjectID: "proj-1", Version: i})
		require.NoError(t, err)
		refs = append(refs, ref)
	}
	keep, err := s.Insert(ctx, &Dictionary{ProjectID: "proj-2", Version: 1})
	require.NoError(t, err)

	require.NoError(t, s.DeleteMany(ctx, refs))
	assert.Equal(t, 1, s.Len())

	got, err := s.Get(ctx, keep)
	require.NoError(t, err)
	assert.NotNil(t, got)
}
