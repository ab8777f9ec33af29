package dictionary

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// VersionStore provides CRUD operations for the relational version index.
// The is_latest flag only transitions inside CreateAsLatest and
// DeleteAndPromote; no other path may set it.
type VersionStore struct {
	db *gorm.DB
}

// NewVersionStore creates a new VersionStore.
func NewVersionStore(db *gorm.DB) *VersionStore {
	return &VersionStore{db: db}
}

// AutoMigrate creates or updates the dictionary_versions table.
func (s *VersionStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&VersionRecord{}); err != nil {
		return fmt.Errorf("auto-migrate dictionary_versions: %w", err)
	}
	return nil
}

// ListByProject returns all version records for a project, newest version
// number first.
func (s *VersionStore) ListByProject(projectID string) ([]VersionRecord, error) {
	var records []VersionRecord
	err := s.db.Where("project_id = ?", projectID).Order("version DESC").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return records, nil
}

// Get retrieves a version record by project and version number.
// Returns nil, nil if no record exists.
func (s *VersionStore) Get(projectID string, version int) (*VersionRecord, error) {
	var record VersionRecord
	err := s.db.Where("project_id = ? AND version = ?", projectID, version).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get version: %w", err)
	}
	return &record, nil
}

// GetLatest retrieves the record flagged is_latest for a project.
// Returns nil, nil when the project has no versions.
func (s *VersionStore) GetLatest(projectID string) (*VersionRecord, error) {
	var record VersionRecord
	err := s.db.Where("project_id = ? AND is_latest = ?", projectID, true).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest version: %w", err)
	}
	return &record, nil
}

// MaxVersion returns the highest version number assigned for a project, or 0
// when none exist.
func (s *VersionStore) MaxVersion(projectID string) (int, error) {
	var max *int
	err := s.db.Model(&VersionRecord{}).
		Where("project_id = ?", projectID).
		Select("MAX(version)").
		Scan(&max).Error
	if err != nil {
		return 0, fmt.Errorf("max version: %w", err)
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

// CreateAsLatest inserts a new version record as the project's latest,
// flipping is_latest off on every existing record in the same transaction.
// A concurrent insert of the same version number surfaces as
// gorm.ErrDuplicatedKey via the unique index on (project_id, version).
func (s *VersionStore) CreateAsLatest(record *VersionRecord) error {
	record.IsLatest = true
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&VersionRecord{}).
			Where("project_id = ? AND is_latest = ?", record.ProjectID, true).
			Update("is_latest", false).Error; err != nil {
			return fmt.Errorf("clear latest flag: %w", err)
		}
		if err := tx.Create(record).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return err
			}
			return fmt.Errorf("create version: %w", err)
		}
		return nil
	})
}

// UpdateMetadata applies relational-only field changes (name, description) to
// one version record. Fields absent from updates are untouched.
func (s *VersionStore) UpdateMetadata(id string, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	if err := s.db.Model(&VersionRecord{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("update version metadata: %w", err)
	}
	return nil
}

// DeleteAndPromote removes a version record and, when it held the latest
// flag, promotes the remaining record with the highest version number in the
// same transaction. Returns the promoted version number, or 0 when no
// promotion happened.
func (s *VersionStore) DeleteAndPromote(projectID string, version int, wasLatest bool) (int, error) {
	promoted := 0
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ? AND version = ?", projectID, version).
			Delete(&VersionRecord{}).Error; err != nil {
			return fmt.Errorf("delete version: %w", err)
		}
		if !wasLatest {
			return nil
		}
		var next VersionRecord
		err := tx.Where("project_id = ?", projectID).Order("version DESC").First(&next).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return fmt.Errorf("find promotion candidate: %w", err)
		}
		if err := tx.Model(&VersionRecord{}).Where("id = ?", next.ID).
			Update("is_latest", true).Error; err != nil {
			return fmt.Errorf("promote version: %w", err)
		}
		promoted = next.Version
		return nil
	})
	if err != nil {
		return 0, err
	}
	return promoted, nil
}

// DeleteByProject removes every version record for a project and returns the
// document refs the removed records pointed at.
func (s *VersionStore) DeleteByProject(projectID string) ([]string, error) {
	var refs []string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var records []VersionRecord
		if err := tx.Where("project_id = ?", projectID).Find(&records).Error; err != nil {
			return fmt.Errorf("list versions: %w", err)
		}
		for _, rec := range records {
			refs = append(refs, rec.DocumentRef)
		}
		if err := tx.Where("project_id = ?", projectID).Delete(&VersionRecord{}).Error; err != nil {
			return fmt.Errorf("delete versions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}
