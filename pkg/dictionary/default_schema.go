package dictionary

// DefaultSchemaName is the schema a table belongs to when none is given.
const DefaultSchemaName = "public"

// DefaultTables returns the starter content for a brand-new dictionary: one
// sample table in the public schema that users can modify or delete.
func DefaultTables() []Table {
	return []Table{
		{
			Name:        "sample_table",
			SchemaName:  DefaultSchemaName,
			TableType:   TableDimension,
			Description: "Sample table - you can modify or delete this",
			Columns: []Column{
				{
					Name:        "id",
					DataType:    "bigint",
					Key:         KeyPrimary,
					Nullable:    false,
					Description: "Primary key",
				},
				{
					Name:        "name",
					DataType:    "varchar",
					Length:      255,
					Nullable:    true,
					Description: "Name field",
				},
				{
					Name:         "created_at",
					DataType:     "timestamp",
					Nullable:     false,
					DefaultValue: "CURRENT_TIMESTAMP",
					Description:  "Record creation timestamp",
				},
			},
		},
	}
}

// defaultPKColumn is synthesized when a table is created without columns.
func defaultPKColumn() Column {
	return Column{
		Name:        "id",
		DataType:    "bigint",
		Key:         KeyPrimary,
		Nullable:    false,
		Description: "Primary key",
		IsUnique:    true,
		IsIndexed:   true,
	}
}
