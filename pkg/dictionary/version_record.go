package dictionary

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONAny is a custom GORM type for map[string]any stored as JSON text.
type JSONAny map[string]any

// Scan implements the sql.Scanner interface for JSONAny.
func (m *JSONAny) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case string:
		bytes = []byte(v)
	case []byte:
		bytes = v
	default:
		return fmt.Errorf("unsupported type for JSONAny: %T", value)
	}
	return json.Unmarshal(bytes, m)
}

// Value implements the driver.Valuer interface for JSONAny.
func (m JSONAny) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// VersionRecord is one row of the relational version index. It is the source
// of truth for which versions exist for a project and which one is latest.
// DocumentRef points at the document-store record and never changes after
// creation.
type VersionRecord struct {
	ID          string    `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	ProjectID   string    `gorm:"column:project_id;uniqueIndex:idx_versions_project_version,priority:1;not null" json:"project_id"`
	Version     int       `gorm:"column:version;uniqueIndex:idx_versions_project_version,priority:2;not null" json:"version"`
	DocumentRef string    `gorm:"column:document_ref;not null" json:"document_ref"`
	Name        string    `gorm:"column:name;not null" json:"name"`
	Description string    `gorm:"column:description" json:"description,omitempty"`
	IsLatest    bool      `gorm:"column:is_latest;not null" json:"is_latest"`
	Metadata    JSONAny   `gorm:"column:metadata;type:text" json:"metadata,omitempty"`
	CreatedBy   string    `gorm:"column:created_by" json:"created_by,omitempty"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName returns the GORM table name.
func (VersionRecord) TableName() string { return "dictionary_versions" }
