package repository

import (
	"time"

	"barcodescanner/internal/dto"
	"barcodescanner/internal/model"
)

// SessionRepository defines the interface for scanning session records.
type SessionRepository interface {
	// Create operations
	Insert(s *model.Session) error

	// Update operations
	End(id string, at time.Time) error

	// Read operations
	GetByID(id string) (*model.Session, error)
	GetAll() ([]model.Session, error)
}

// ScanRepository defines the interface for scan history operations.
type ScanRepository interface {
	// Create operations
	Insert(scan *model.Scan) (int64, error)
	InsertBatch(scans []model.Scan) error

	// Read operations
	GetAll(filter *dto.ScanFilters) ([]model.Scan, error)
	GetTotalCount(filter *dto.ScanFilters) (int, error)
	GetFormats() ([]string, error)

	// Delete operations
	DeleteBySession(sessionID string) error
	DeleteAll() error
}
