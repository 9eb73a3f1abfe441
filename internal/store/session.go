package store

import (
	"database/sql"
	"errors"
	"time"
)

// Session is one tracked subject driving a rig.
type Session struct {
	ID         string    `json:"id"`
	RigID      string    `json:"rig_id"`
	Flip       bool      `json:"flip"`
	RootMotion bool      `json:"root_motion"`
	CreatedAt  time.Time `json:"created_at"`
}

// SessionRepository provides CRUD operations for sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

func scanSession(row scanner) (*Session, error) {
	s := &Session{}
	var flip, rootMotion int
	if err := row.Scan(&s.ID, &s.RigID, &flip, &rootMotion, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.Flip = flip != 0
	s.RootMotion = rootMotion != 0
	return s, nil
}

// Create inserts a new session.
func (r *SessionRepository) Create(s *Session) error {
	s.CreatedAt = time.Now()
	_, err := r.db.Exec(
		`INSERT INTO sessions (id, rig_id, flip, root_motion, created_at) VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.RigID, s.Flip, s.RootMotion, s.CreatedAt,
	)
	return err
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	s, err := scanSession(r.db.QueryRow(
		`SELECT id, rig_id, flip, root_motion, created_at FROM sessions WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// List retrieves all sessions, newest first.
func (r *SessionRepository) List() ([]*Session, error) {
	rows, err := r.db.Query(
		`SELECT id, rig_id, flip, root_motion, created_at FROM sessions ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// Update stores the session's runtime toggles.
func (r *SessionRepository) Update(s *Session) error {
	result, err := r.db.Exec(
		`UPDATE sessions SET flip = ?, root_motion = ? WHERE id = ?`,
		s.Flip, s.RootMotion, s.ID,
	)
	if err != nil {
		return err
	}
	return affected(result)
}

// Delete removes a session and its frames.
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(result)
}
