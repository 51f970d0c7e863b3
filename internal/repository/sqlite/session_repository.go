package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"barcodescanner/internal/model"
)

// SessionRepository implements repository.SessionRepository for SQLite.
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new SQLite session repository.
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Insert adds a session record.
func (r *SessionRepository) Insert(s *model.Session) error {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().Exec(`
		INSERT INTO sessions (id, mode, camera, started_at)
		VALUES (?, ?, ?, ?)
	`, s.ID, s.Mode, s.Camera, s.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// End stamps the session's end time.
func (r *SessionRepository) End(id string, at time.Time) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`UPDATE sessions SET ended_at = ? WHERE id = ?`, at, id); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

// GetByID returns the session or nil when it does not exist.
func (r *SessionRepository) GetByID(id string) (*model.Session, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var s model.Session
	var ended sql.NullTime
	err := r.db.Conn().QueryRow(`
		SELECT id, mode, camera, started_at, ended_at FROM sessions WHERE id = ?
	`, id).Scan(&s.ID, &s.Mode, &s.Camera, &s.StartedAt, &ended)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if ended.Valid {
		s.EndedAt = &ended.Time
	}
	return &s, nil
}

// GetAll returns every session, newest first.
func (r *SessionRepository) GetAll() ([]model.Session, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, mode, camera, started_at, ended_at FROM sessions ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		var s model.Session
		var ended sql.NullTime
		if err := rows.Scan(&s.ID, &s.Mode, &s.Camera, &s.StartedAt, &ended); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		if ended.Valid {
			t := ended.Time
			s.EndedAt = &t
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
