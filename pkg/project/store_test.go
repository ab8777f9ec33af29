package project

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/datadict/datadict/pkg/api"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store := NewStore(db)
	require.NoError(t, store.AutoMigrate())
	return store
}

func TestStore_CreateAndGet(t *testing.T) {
	store := newTestStore(t)

	record := &Record{OwnerID: "alice", Name: "Warehouse", DBType: "postgresql"}
	require.NoError(t, store.Create(record))
	assert.NotEmpty(t, record.ID)

	got, err := store.Get(record.ID, "alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Warehouse", got.Name)

	// Another user cannot see it.
	got, err = store.Get(record.ID, "bob")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_ListByOwner(t *testing.T) {
	store := newTestStore(t)

	for _, name := range []string{"one", "two", "three"} {
		require.NoError(t, store.Create(&Record{OwnerID: "alice", Name: name}))
	}
	require.NoError(t, store.Create(&Record{OwnerID: "bob", Name: "other"}))

	records, err := store.ListByOwner("alice", 0, 0)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	records, err = store.ListByOwner("alice", 2, 0)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = store.ListByOwner("carol", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStore_Update(t *testing.T) {
	store := newTestStore(t)

	record := &Record{OwnerID: "alice", Name: "Warehouse"}
	require.NoError(t, store.Create(record))

	err := store.Update(record.ID, "alice", map[string]any{"name": "Lakehouse"})
	require.NoError(t, err)

	got, err := store.Get(record.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Lakehouse", got.Name)

	// Updating someone else's project reports not found.
	err = store.Update(record.ID, "bob", map[string]any{"name": "stolen"})
	require.Error(t, err)
	assert.True(t, api.IsNotFound(err))
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)

	record := &Record{OwnerID: "alice", Name: "Warehouse"}
	require.NoError(t, store.Create(record))

	require.NoError(t, store.Delete(record.ID, "alice"))

	got, err := store.Get(record.ID, "alice")
	require.NoError(t, err)
	assert.Nil(t, got)

	err = store.Delete(record.ID, "alice")
	require.Error(t, err)
	assert.True(t, api.IsNotFound(err))
}

func TestStore_VerifyAccess(t *testing.T) {
	store := newTestStore(t)

	record := &Record{OwnerID: "alice", Name: "Warehouse"}
	require.NoError(t, store.Create(record))

	require.NoError(t, store.VerifyAccess(record.ID, "alice"))

	err := store.VerifyAccess(record.ID, "bob")
	require.Error(t, err)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 403, apiErr.Code)

	err = store.VerifyAccess("missing", "alice")
	require.Error(t, err)
}
