package project

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/datadict/datadict/pkg/api"
)

// Record is a project owned by a single user. Every version row references a
// project by id; ownership checks always scope queries by OwnerID so one
// user can never read another user's projects.
type Record struct {
	ID          string    `gorm:"column:id;primaryKey;type:varchar(36)" json:"id"`
	OwnerID     string    `gorm:"column:owner_id;index;not null" json:"owner_id"`
	Name        string    `gorm:"column:name;not null" json:"name"`
	Description string    `gorm:"column:description" json:"description,omitempty"`
	DBType      string    `gorm:"column:db_type" json:"db_type,omitempty"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Record) TableName() string { return "projects" }

// Store provides project persistence on the relational database.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&Record{})
}

// ListByOwner returns the owner's projects, newest first. limit <= 0 means
// no limit.
func (s *Store) ListByOwner(ownerID string, limit, offset int) ([]Record, error) {
	var records []Record
	query := s.db.Where("owner_id = ?", ownerID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Get returns the project if it exists and belongs to ownerID, or nil when
// absent.
func (s *Store) Get(id, ownerID string) (*Record, error) {
	var record Record
	err := s.db.Where("id = ? AND owner_id = ?", id, ownerID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Create inserts the project, assigning an id when the caller left it empty.
func (s *Store) Create(record *Record) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	return s.db.Create(record).Error
}

// Update applies the given column updates to the owner's project.
func (s *Store) Update(id, ownerID string, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	result := s.db.Model(&Record{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return api.NotFound("project %s not found", id)
	}
	return nil
}

// Delete removes the owner's project row.
func (s *Store) Delete(id, ownerID string) error {
	result := s.db.Where("id = ? AND owner_id = ?", id, ownerID).Delete(&Record{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return api.NotFound("project %s not found", id)
	}
	return nil
}

// VerifyAccess reports whether the user owns the project. Implements the
// ownership gate used by the dictionary handlers.
func (s *Store) VerifyAccess(projectID, userID string) error {
	record, err := s.Get(projectID, userID)
	if err != nil {
		return api.Database("failed to verify project access", err)
	}
	if record == nil {
		return api.Forbidden("you do not have access to this project")
	}
	return nil
}
