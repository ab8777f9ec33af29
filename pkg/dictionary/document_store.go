package dictionary

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// DocumentPatch carries partial updates for a dictionary document. Nil fields
// are untouched; non-nil fields replace the stored value wholesale.
type DocumentPatch struct {
	Name          *string
	Description   *string
	Schemas       *SchemaSet
	Relationships *[]Relationship
	ERD           *ERDLayout
	Metadata      *map[string]any
}

// IsEmpty reports whether the patch touches no document field.
func (p DocumentPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.Schemas == nil &&
		p.Relationships == nil && p.ERD == nil && p.Metadata == nil
}

// DocumentStore holds one dictionary document per version, keyed by an opaque
// store-generated reference.
type DocumentStore interface {
	// Insert stores a new document and returns its reference.
	Insert(ctx context.Context, doc *Dictionary) (string, error)
	// Get retrieves a document by reference. Returns nil, nil when absent.
	Get(ctx context.Context, ref string) (*Dictionary, error)
	// Update applies a partial patch to a document and bumps updated_at.
	Update(ctx context.Context, ref string, patch DocumentPatch) error
	// Delete removes a document. Deleting an absent document is not an error.
	Delete(ctx context.Context, ref string) error
	// DeleteMany removes a batch of documents, skipping invalid refs.
	DeleteMany(ctx context.Context, refs []string) error
}

// DictionaryCollection is the logical collection holding all dictionary
// documents.
const DictionaryCollection = "dictionaries"

// MongoDocumentStore implements DocumentStore on a MongoDB collection.
type MongoDocumentStore struct {
	collection *mongo.Collection
}

// NewMongoDocumentStore creates a DocumentStore over the dictionaries
// collection of the given database.
func NewMongoDocumentStore(client *mongo.Client, database string) *MongoDocumentStore {
	return &MongoDocumentStore{
		collection: client.Database(database).Collection(DictionaryCollection),
	}
}

// Insert stores the document and returns its ObjectID hex as the reference.
func (s *MongoDocumentStore) Insert(ctx context.Context, doc *Dictionary) (string, error) {
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("insert dictionary document: %w", err)
	}
	return doc.ID.Hex(), nil
}

// Get retrieves a document by its reference. An unparseable or unknown
// reference returns nil, nil; the caller decides whether that is a
// consistency error.
func (s *MongoDocumentStore) Get(ctx context.Context, ref string) (*Dictionary, error) {
	oid, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return nil, nil
	}
	var doc Dictionary
	err = s.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("get dictionary document: %w", err)
	}
	return &doc, nil
}

// Update applies the non-nil patch fields with a single $set.
func (s *MongoDocumentStore) Update(ctx context.Context, ref string, patch DocumentPatch) error {
	oid, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return fmt.Errorf("invalid document ref %q", ref)
	}
	set := bson.M{"updated_at": time.Now().UTC()}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Schemas != nil {
		set["schemas"] = *patch.Schemas
	}
	if patch.Relationships != nil {
		set["relationships"] = *patch.Relationships
	}
	if patch.ERD != nil {
		set["erd"] = *patch.ERD
	}
	if patch.Metadata != nil {
		set["metadata"] = *patch.Metadata
	}
	if _, err := s.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set}); err != nil {
		return fmt.Errorf("update dictionary document: %w", err)
	}
	return nil
}

// Delete removes one document by reference.
func (s *MongoDocumentStore) Delete(ctx context.Context, ref string) error {
	oid, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return nil
	}
	if _, err := s.collection.DeleteOne(ctx, bson.M{"_id": oid}); err != nil {
		return fmt.Errorf("delete dictionary document: %w", err)
	}
	return nil
}

// DeleteMany removes a batch of documents in one call.
func (s *MongoDocumentStore) DeleteMany(ctx context.Context, refs []string) error {
	oids := make([]primitive.ObjectID, 0, len(refs))
	for _, ref := range refs {
		if oid, err := primitive.ObjectIDFromHex(ref); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return nil
	}
	if _, err := s.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": oids}}); err != nil {
		return fmt.Errorf("delete dictionary documents: %w", err)
	}
	return nil
}
