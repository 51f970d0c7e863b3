package sqlite

import (
	"fmt"

	"barcodescanner/internal/dto"
	"barcodescanner/internal/model"
)

// ScanRepository implements repository.ScanRepository for SQLite.
type ScanRepository struct {
	db *DB
}

// NewScanRepository creates a new SQLite scan repository.
func NewScanRepository(db *DB) *ScanRepository {
	return &ScanRepository{db: db}
}

// Insert adds a scan record to the database.
func (r *ScanRepository) Insert(scan *model.Scan) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO scans (session_id, value, format, detected_at, detection_count, snapshot)
		VALUES (?, ?, ?, ?, ?, ?)
	`, scan.SessionID, scan.Value, scan.Format, scan.DetectedAt, scan.DetectionCount, scan.Snapshot)
	if err != nil {
		return 0, fmt.Errorf("failed to insert scan: %w", err)
	}

	return result.LastInsertId()
}

// InsertBatch adds multiple scans in a single transaction.
func (r *ScanRepository) InsertBatch(scans []model.Scan) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO scans (session_id, value, format, detected_at, detection_count, snapshot)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, s := range scans {
		if _, err := stmt.Exec(s.SessionID, s.Value, s.Format, s.DetectedAt, s.DetectionCount, s.Snapshot); err != nil {
			return fmt.Errorf("failed to insert scan: %w", err)
		}
	}

	return tx.Commit()
}

func whereClause(filter *dto.ScanFilters) (string, []interface{}) {
	query := " WHERE 1=1"
	args := []interface{}{}
	if filter == nil {
		return query, args
	}

	if filter.SessionID != "" {
		query += " AND session_id = ?"
		args = append(args, filter.SessionID)
	}
	if filter.Format != "" {
		query += " AND format = ?"
		args = append(args, filter.Format)
	}
	if filter.Value != "" {
		query += " AND value LIKE ?"
		args = append(args, "%"+filter.Value+"%")
	}
	if !filter.After.IsZero() {
		query += " AND detected_at >= ?"
		args = append(args, filter.After)
	}
	if !filter.Before.IsZero() {
		query += " AND detected_at <= ?"
		args = append(args, filter.Before)
	}
	return query, args
}

// GetAll retrieves scans based on filter criteria, newest first.
func (r *ScanRepository) GetAll(filter *dto.ScanFilters) ([]model.Scan, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)
	query := `
		SELECT id, session_id, value, format, detected_at, detection_count, snapshot
		FROM scans` + where + " ORDER BY detected_at DESC, id DESC"

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer rows.Close()

	var scans []model.Scan
	for rows.Next() {
		var s model.Scan
		if err := rows.Scan(&s.ID, &s.SessionID, &s.Value, &s.Format, &s.DetectedAt, &s.DetectionCount, &s.Snapshot); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		scans = append(scans, s)
	}

	return scans, rows.Err()
}

// GetTotalCount returns the number of scans matching the filter.
func (r *ScanRepository) GetTotalCount(filter *dto.ScanFilters) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)
	var count int
	if err := r.db.Conn().QueryRow("SELECT COUNT(*) FROM scans"+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count scans: %w", err)
	}
	return count, nil
}

// GetFormats lists the distinct barcode formats seen so far.
func (r *ScanRepository) GetFormats() ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT DISTINCT format FROM scans ORDER BY format`)
	if err != nil {
		return nil, fmt.Errorf("failed to query formats: %w", err)
	}
	defer rows.Close()

	formats := []string{}
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, fmt.Errorf("failed to scan format: %w", err)
		}
		formats = append(formats, f)
	}
	return formats, rows.Err()
}

// DeleteBySession removes the scans of one session.
func (r *ScanRepository) DeleteBySession(sessionID string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM scans WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete scans: %w", err)
	}
	return nil
}

// DeleteAll removes every scan.
func (r *ScanRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM scans`); err != nil {
		return fmt.Errorf("failed to delete scans: %w", err)
	}
	return nil
}
