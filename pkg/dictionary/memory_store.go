package dictionary

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryDocumentStore is an in-process DocumentStore used when no document
// database is configured (local development) and by tests. Documents are
// deep-copied on the way in and out so callers never share state with the
// store.
type MemoryDocumentStore struct {
	mu   sync.RWMutex
	docs map[string]*Dictionary
}

// NewMemoryDocumentStore creates an empty in-memory store.
func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{docs: make(map[string]*Dictionary)}
}

func copyDocument(doc *Dictionary) *Dictionary {
	cp := *doc
	schemas, rels, erd := doc.CloneContent()
	cp.Schemas = schemas
	cp.Relationships = rels
	cp.ERD = erd
	cp.Metadata = cloneMetadata(doc.Metadata)
	return &cp
}

// Insert stores a copy of the document and returns a fresh reference.
func (s *MemoryDocumentStore) Insert(_ context.Context, doc *Dictionary) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	ref := doc.ID.Hex()
	s.docs[ref] = copyDocument(doc)
	return ref, nil
}

// Get returns a copy of the stored document, or nil, nil when absent.
func (s *MemoryDocumentStore) Get(_ context.Context, ref string) (*Dictionary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[ref]
	if !ok {
		return nil, nil
	}
	return copyDocument(doc), nil
}

// Update applies the non-nil patch fields to the stored document.
func (s *MemoryDocumentStore) Update(_ context.Context, ref string, patch DocumentPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[ref]
	if !ok {
		return nil
	}
	if patch.Name != nil {
		doc.Name = *patch.Name
	}
	if patch.Description != nil {
		doc.Description = *patch.Description
	}
	if patch.Schemas != nil {
		doc.Schemas = SchemaSet{
			Tables:        cloneTables(patch.Schemas.Tables),
			Relationships: cloneRelationships(patch.Schemas.Relationships),
		}
	}
	if patch.Relationships != nil {
		doc.Relationships = cloneRelationships(*patch.Relationships)
	}
	if patch.ERD != nil {
		doc.ERD = patch.ERD.Clone()
	}
	if patch.Metadata != nil {
		doc.Metadata = cloneMetadata(*patch.Metadata)
	}
	doc.UpdatedAt = time.Now().UTC()
	return nil
}

// Delete removes the stored document; deleting an absent ref is a no-op.
func (s *MemoryDocumentStore) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, ref)
	return nil
}

// DeleteMany removes a batch of documents.
func (s *MemoryDocumentStore) DeleteMany(_ context.Context, refs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ref := range refs {
		delete(s.docs, ref)
	}
	return nil
}

// Len reports the number of stored documents.
func (s *MemoryDocumentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
