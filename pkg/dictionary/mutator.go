package dictionary

import (
	"github.com/datadict/datadict/pkg/api"
)

// Sub-document mutations: in-place edits to one version's document without
// creating a new version. All methods operate on the in-memory document; the
// Manager persists the result.

// CreateTable adds a table to the dictionary. Duplicate (name, schema_name)
// pairs are rejected. A table created without columns gets a default PK
// column so it never starts empty.
func (d *Dictionary) CreateTable(table Table) (*Table, error) {
	if table.Name == "" {
		return nil, api.Validation("table name is required")
	}
	if table.SchemaName == "" {
		table.SchemaName = DefaultSchemaName
	}
	if table.TableType == "" {
		table.TableType = TableDimension
	}
	if d.FindTable(table.Name, table.SchemaName) != nil {
		return nil, api.Conflict("table %q already exists in schema %q", table.Name, table.SchemaName)
	}
	if len(table.Columns) == 0 {
		table.Columns = []Column{defaultPKColumn()}
	}
	d.Schemas.Tables = append(d.Schemas.Tables, table)
	return &d.Schemas.Tables[len(d.Schemas.Tables)-1], nil
}

// UpdateTable replaces a table's definition. An empty column list in the
// patch preserves the existing columns; an update never silently wipes them.
// Renaming onto another existing table in the same schema is rejected.
func (d *Dictionary) UpdateTable(tableName, schemaName string, patch Table) (*Table, error) {
	if schemaName == "" {
		schemaName = DefaultSchemaName
	}
	existing := d.FindTable(tableName, schemaName)
	if existing == nil {
		return nil, api.NotFound("table %q not found in schema %q", tableName, schemaName)
	}
	if patch.Name == "" {
		patch.Name = tableName
	}
	if patch.SchemaName == "" {
		patch.SchemaName = schemaName
	}
	if patch.TableType == "" {
		patch.TableType = existing.TableType
	}
	if len(patch.Columns) == 0 {
		patch.Columns = existing.Columns
	}
	if patch.Name != tableName {
		if d.FindTable(patch.Name, patch.SchemaName) != nil {
			return nil, api.Conflict("table %q already exists in schema %q", patch.Name, patch.SchemaName)
		}
	}
	*existing = patch
	return existing, nil
}

// DeleteTable removes a table and prunes every relationship that references
// it as source or target. Returns the number of relationships removed.
func (d *Dictionary) DeleteTable(tableName, schemaName string) (int, error) {
	if schemaName == "" {
		schemaName = DefaultSchemaName
	}
	idx := -1
	for i, t := range d.Schemas.Tables {
		if t.Name == tableName && t.SchemaName == schemaName {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, api.NotFound("table %q not found in schema %q", tableName, schemaName)
	}
	d.Schemas.Tables = append(d.Schemas.Tables[:idx], d.Schemas.Tables[idx+1:]...)
	removed := d.pruneRelationships(func(r Relationship) bool {
		return r.SourceTable == tableName || r.TargetTable == tableName
	})
	return removed, nil
}

// AddColumn appends a column to a table. Duplicate column names within the
// table are rejected.
func (d *Dictionary) AddColumn(tableName, schemaName string, column Column) (*Column, error) {
	table := d.FindTable(tableName, schemaName)
	if table == nil {
		return nil, api.NotFound("table %q not found in schema %q", tableName, schemaName)
	}
	if column.Name == "" {
		return nil, api.Validation("column name is required")
	}
	for _, c := range table.Columns {
		if c.Name == column.Name {
			return nil, api.Conflict("column %q already exists in table %q", column.Name, tableName)
		}
	}
	table.Columns = append(table.Columns, column)
	return &table.Columns[len(table.Columns)-1], nil
}

// UpdateColumn replaces a column's definition. Renaming onto another existing
// column is rejected.
func (d *Dictionary) UpdateColumn(tableName, schemaName, columnName string, patch Column) (*Column, error) {
	table := d.FindTable(tableName, schemaName)
	if table == nil {
		return nil, api.NotFound("table %q not found in schema %q", tableName, schemaName)
	}
	idx := -1
	for i, c := range table.Columns {
		if c.Name == columnName {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, api.NotFound("column %q not found in table %q", columnName, tableName)
	}
	if patch.Name == "" {
		patch.Name = columnName
	}
	if patch.Name != columnName {
		for _, c := range table.Columns {
			if c.Name == patch.Name {
				return nil, api.Conflict("column %q already exists in table %q", patch.Name, tableName)
			}
		}
	}
	table.Columns[idx] = patch
	return &table.Columns[idx], nil
}

// DeleteColumn removes a column from a table. It rejects removing the table's
// last column and removing its only primary-key column, then prunes every
// relationship that references the exact (table, column) pair on either side.
// Returns the number of relationships removed.
func (d *Dictionary) DeleteColumn(tableName, schemaName, columnName string) (int, error) {
	table := d.FindTable(tableName, schemaName)
	if table == nil {
		return 0, api.NotFound("table %q not found in schema %q", tableName, schemaName)
	}
	idx := -1
	for i, c := range table.Columns {
		if c.Name == columnName {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, api.NotFound("column %q not found in table %q", columnName, tableName)
	}
	if len(table.Columns) == 1 {
		return 0, api.Validation("cannot delete the last column in a table")
	}
	if table.Columns[idx].IsPK() {
		pkCount := 0
		for _, c := range table.Columns {
			if c.IsPK() {
				pkCount++
			}
		}
		if pkCount == 1 {
			return 0, api.Validation("cannot delete the only primary key column")
		}
	}
	table.Columns = append(table.Columns[:idx], table.Columns[idx+1:]...)
	removed := d.pruneRelationships(func(r Relationship) bool {
		return (r.SourceTable == tableName && r.SourceColumn == columnName) ||
			(r.TargetTable == tableName && r.TargetColumn == columnName)
	})
	return removed, nil
}

// SetERD replaces the ERD layout. Missing node/edge lists are defaulted to
// empty rather than treated as invalid.
func (d *Dictionary) SetERD(erd ERDLayout) {
	if erd.Nodes == nil {
		erd.Nodes = []ERDNode{}
	}
	if erd.Edges == nil {
		erd.Edges = []ERDEdge{}
	}
	d.ERD = erd
}

// pruneRelationships removes every relationship matching the predicate and
// returns how many were removed. Pruning is silent: relationships are
// informational edges, never integrity-checked.
func (d *Dictionary) pruneRelationships(match func(Relationship) bool) int {
	kept := d.Relationships[:0]
	removed := 0
	for _, r := range d.Relationships {
		if match(r) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	d.Relationships = kept
	return removed
}
