// Package dictionary implements the versioned data-dictionary document model
// and the cross-store protocol that keeps the relational version index and the
// document store consistent.
package dictionary

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TableType classifies a table's role in the modeled database.
type TableType string

const (
	TableFact      TableType = "fact"
	TableDimension TableType = "dimension"
	TableLookup    TableType = "lookup"
	TableStaging   TableType = "staging"
	TableAggregate TableType = "aggregate"
	TableView      TableType = "view"
)

// ColumnKey marks the key role of a column. The empty value means no key.
type ColumnKey string

const (
	KeyPrimary ColumnKey = "PK"
	KeyForeign ColumnKey = "FK"
	KeyUnique  ColumnKey = "UK"
	KeyIndex   ColumnKey = "IX"
	KeyNone    ColumnKey = ""
)

// RelationshipType is the cardinality of a relationship edge.
type RelationshipType string

const (
	OneToOne   RelationshipType = "1:1"
	OneToMany  RelationshipType = "1:N"
	ManyToMany RelationshipType = "N:N"
)

// Column describes a single column of a table.
type Column struct {
	Name             string    `json:"name" bson:"name"`
	DataType         string    `json:"data_type" bson:"data_type"`
	Key              ColumnKey `json:"key,omitempty" bson:"key,omitempty"`
	Nullable         bool      `json:"nullable" bson:"nullable"`
	DefaultValue     string    `json:"default_value,omitempty" bson:"default_value,omitempty"`
	Description      string    `json:"description,omitempty" bson:"description,omitempty"`
	Length           int       `json:"length,omitempty" bson:"length,omitempty"`
	Precision        int       `json:"precision,omitempty" bson:"precision,omitempty"`
	Scale            int       `json:"scale,omitempty" bson:"scale,omitempty"`
	IsUnique         bool      `json:"is_unique,omitempty" bson:"is_unique,omitempty"`
	IsIndexed        bool      `json:"is_indexed,omitempty" bson:"is_indexed,omitempty"`
	ForeignKeyTable  string    `json:"foreign_key_table,omitempty" bson:"foreign_key_table,omitempty"`
	ForeignKeyColumn string    `json:"foreign_key_column,omitempty" bson:"foreign_key_column,omitempty"`
	UIOrder          int       `json:"ui_order,omitempty" bson:"ui_order,omitempty"`
	UIHidden         bool      `json:"ui_hidden,omitempty" bson:"ui_hidden,omitempty"`
}

// IsPK reports whether the column is a primary key. Derived from Key, never
// stored independently.
func (c Column) IsPK() bool { return c.Key == KeyPrimary }

// IsFK reports whether the column is a foreign key.
func (c Column) IsFK() bool { return c.Key == KeyForeign }

// Table describes a table and its columns. SchemaName defaults to "public".
type Table struct {
	Name        string           `json:"name" bson:"name"`
	SchemaName  string           `json:"schema_name" bson:"schema_name"`
	TableType   TableType        `json:"table_type,omitempty" bson:"table_type,omitempty"`
	Description string           `json:"description,omitempty" bson:"description,omitempty"`
	Columns     []Column         `json:"columns" bson:"columns"`
	Indexes     []map[string]any `json:"indexes,omitempty" bson:"indexes,omitempty"`
	Constraints []map[string]any `json:"constraints,omitempty" bson:"constraints,omitempty"`
	UIColor     string           `json:"ui_color,omitempty" bson:"ui_color,omitempty"`
	UIIcon      string           `json:"ui_icon,omitempty" bson:"ui_icon,omitempty"`
	UIOrder     int              `json:"ui_order,omitempty" bson:"ui_order,omitempty"`
}

// Relationship is an informational edge between two columns. It is never
// validated against table or column existence; deletes prune edges that
// reference the removed table or column.
type Relationship struct {
	ID               string           `json:"id" bson:"id"`
	Name             string           `json:"name,omitempty" bson:"name,omitempty"`
	SourceTable      string           `json:"source_table" bson:"source_table"`
	SourceColumn     string           `json:"source_column" bson:"source_column"`
	TargetTable      string           `json:"target_table" bson:"target_table"`
	TargetColumn     string           `json:"target_column" bson:"target_column"`
	RelationshipType RelationshipType `json:"relationship_type" bson:"relationship_type"`
	OnDelete         string           `json:"on_delete,omitempty" bson:"on_delete,omitempty"`
	OnUpdate         string           `json:"on_update,omitempty" bson:"on_update,omitempty"`
	Description      string           `json:"description,omitempty" bson:"description,omitempty"`
}

// referentialActions are the accepted on_delete/on_update values.
var referentialActions = map[string]bool{
	"":          true,
	"CASCADE":   true,
	"SET NULL":  true,
	"RESTRICT":  true,
	"NO ACTION": true,
}

// Validate checks the relationship's enumerated fields. Table and column
// references are deliberately not checked; relationships are informational.
func (r Relationship) Validate() error {
	switch r.RelationshipType {
	case OneToOne, OneToMany, ManyToMany:
	default:
		return fmt.Errorf("invalid relationship type %q", r.RelationshipType)
	}
	if !referentialActions[r.OnDelete] {
		return fmt.Errorf("invalid on_delete action %q", r.OnDelete)
	}
	if !referentialActions[r.OnUpdate] {
		return fmt.Errorf("invalid on_update action %q", r.OnUpdate)
	}
	return nil
}

// ERDNode is a table's position on the diagram. ID is the table name; stale
// entries referring to removed tables are tolerated.
type ERDNode struct {
	ID     string  `json:"id" bson:"id"`
	X      float64 `json:"x" bson:"x"`
	Y      float64 `json:"y" bson:"y"`
	Width  float64 `json:"width,omitempty" bson:"width,omitempty"`
	Height float64 `json:"height,omitempty" bson:"height,omitempty"`
	Icon   string  `json:"icon,omitempty" bson:"icon,omitempty"`
}

// ERDEdge is a relationship's rendering on the diagram. ID is the
// relationship id.
type ERDEdge struct {
	ID           string `json:"id" bson:"id"`
	Source       string `json:"source" bson:"source"`
	Target       string `json:"target" bson:"target"`
	EdgeType     string `json:"type,omitempty" bson:"type,omitempty"`
	SourceHandle string `json:"source_handle,omitempty" bson:"source_handle,omitempty"`
	TargetHandle string `json:"target_handle,omitempty" bson:"target_handle,omitempty"`
	Animated     bool   `json:"animated,omitempty" bson:"animated,omitempty"`
	Label        string `json:"label,omitempty" bson:"label,omitempty"`
}

// ERDLayout is purely presentational state.
type ERDLayout struct {
	Nodes []ERDNode `json:"nodes" bson:"nodes"`
	Edges []ERDEdge `json:"edges" bson:"edges"`
	Zoom  float64   `json:"zoom,omitempty" bson:"zoom,omitempty"`
	PanX  float64   `json:"pan_x,omitempty" bson:"pan_x,omitempty"`
	PanY  float64   `json:"pan_y,omitempty" bson:"pan_y,omitempty"`
}

// SchemaSet is the canonical stored form of a dictionary's schema tree: a
// flat table list where every table carries its own schema name. The grouped
// per-schema request shape is converted at the API boundary and never stored.
type SchemaSet struct {
	Tables        []Table        `json:"tables" bson:"tables"`
	Relationships []Relationship `json:"relationships" bson:"relationships"`
}

// Schema is the grouped request-side shape: a named schema holding tables.
type Schema struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Tables      []Table `json:"tables"`
}

// Dictionary is the full document for one version of a project's dictionary.
type Dictionary struct {
	ID            primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	ProjectID     string             `json:"project_id" bson:"project_id"`
	Version       int                `json:"version" bson:"version"`
	Name          string             `json:"name" bson:"name"`
	Description   string             `json:"description,omitempty" bson:"description,omitempty"`
	Schemas       SchemaSet          `json:"schemas" bson:"schemas"`
	Relationships []Relationship     `json:"relationships" bson:"relationships"`
	ERD           ERDLayout          `json:"erd" bson:"erd"`
	Metadata      map[string]any     `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedBy     string             `json:"created_by,omitempty" bson:"created_by,omitempty"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at" bson:"updated_at"`
}

// FindTable returns a pointer into the dictionary's table list for the table
// with the given name and schema, or nil.
func (d *Dictionary) FindTable(name, schemaName string) *Table {
	if schemaName == "" {
		schemaName = DefaultSchemaName
	}
	for i := range d.Schemas.Tables {
		t := &d.Schemas.Tables[i]
		if t.Name == name && t.SchemaName == schemaName {
			return t
		}
	}
	return nil
}

// TablesInSchema returns the tables belonging to one schema. An empty
// schemaName returns every table.
func (d *Dictionary) TablesInSchema(schemaName string) []Table {
	if schemaName == "" {
		return d.Schemas.Tables
	}
	var tables []Table
	for _, t := range d.Schemas.Tables {
		if t.SchemaName == schemaName {
			tables = append(tables, t)
		}
	}
	return tables
}

// TableRelationships returns the relationships touching the given table as
// source or target.
func (d *Dictionary) TableRelationships(tableName string) []Relationship {
	var rels []Relationship
	for _, r := range d.Relationships {
		if r.SourceTable == tableName || r.TargetTable == tableName {
			rels = append(rels, r)
		}
	}
	return rels
}

// CloneContent deep-copies the schema tree, relationships, and ERD layout so
// a forked version is fully independent of its base.
func (d *Dictionary) CloneContent() (SchemaSet, []Relationship, ERDLayout) {
	schemas := SchemaSet{
		Tables:        cloneTables(d.Schemas.Tables),
		Relationships: cloneRelationships(d.Schemas.Relationships),
	}
	rels := cloneRelationships(d.Relationships)
	erd := d.ERD.Clone()
	if rels == nil {
		rels = []Relationship{}
	}
	if erd.Nodes == nil {
		erd.Nodes = []ERDNode{}
	}
	if erd.Edges == nil {
		erd.Edges = []ERDEdge{}
	}
	return schemas, rels, erd
}

// Clone copies the layout with fresh node and edge slices.
func (l ERDLayout) Clone() ERDLayout {
	l.Nodes = append([]ERDNode(nil), l.Nodes...)
	l.Edges = append([]ERDEdge(nil), l.Edges...)
	return l
}

func cloneMetadata(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneTables(tables []Table) []Table {
	cloned := make([]Table, len(tables))
	for i, t := range tables {
		t.Columns = append([]Column(nil), t.Columns...)
		t.Indexes = cloneMapSlice(t.Indexes)
		t.Constraints = cloneMapSlice(t.Constraints)
		cloned[i] = t
	}
	return cloned
}

func cloneRelationships(rels []Relationship) []Relationship {
	if rels == nil {
		return nil
	}
	return append([]Relationship(nil), rels...)
}

func cloneMapSlice(in []map[string]any) []map[string]any {
	if in == nil {
		return nil
	}
	out := make([]map[string]any, len(in))
	for i, m := range in {
		cp := make(map[string]any, len(m))
		for k, v := range m {
			cp[k] = v
		}
		out[i] = cp
	}
	return out
}

// FlattenSchemas converts the grouped request shape into the canonical flat
// table list, stamping each table with its schema's name when the table does
// not carry one.
func FlattenSchemas(schemas []Schema) []Table {
	var tables []Table
	for _, s := range schemas {
		for _, t := range s.Tables {
			if t.SchemaName == "" {
				t.SchemaName = s.Name
			}
			if t.SchemaName == "" {
				t.SchemaName = DefaultSchemaName
			}
			tables = append(tables, t)
		}
	}
	if tables == nil {
		tables = []Table{}
	}
	return tables
}
