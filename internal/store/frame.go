package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/retarget/internal/geom"
	"github.com/ayusman/retarget/internal/retarget"
)

// Frame is one solved tick of a session.
type Frame struct {
	ID        int64                    `json:"id"`
	SessionID string                   `json:"session_id"`
	Sequence  int64                    `json:"sequence"`
	Rotations retarget.BoneRotationSet `json:"rotations"`
	Joints    map[string]geom.Vec3     `json:"joints,omitempty"`
	Root      geom.Vec3                `json:"root"`
	CreatedAt time.Time                `json:"created_at"`
}

// FrameRepository stores solved frames.
type FrameRepository struct {
	db *sql.DB
}

// Frames returns the frame repository for this store.
func (s *Store) Frames() *FrameRepository {
	return &FrameRepository{db: s.db}
}

const frameColumns = `id, session_id, sequence, rotations, joints, root_x, root_y, root_z, created_at`

func scanFrame(row scanner) (*Frame, error) {
	f := &Frame{}
	var rotations, joints string
	err := row.Scan(&f.ID, &f.SessionID, &f.Sequence, &rotations, &joints,
		&f.Root.X, &f.Root.Y, &f.Root.Z, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(rotations), &f.Rotations); err != nil {
		return nil, fmt.Errorf("decode rotations of frame %d: %w", f.ID, err)
	}
	if err := json.Unmarshal([]byte(joints), &f.Joints); err != nil {
		return nil, fmt.Errorf("decode joints of frame %d: %w", f.ID, err)
	}
	return f, nil
}

// Create inserts a solved frame.
func (r *FrameRepository) Create(f *Frame) error {
	rotations, err := json.Marshal(f.Rotations)
	if err != nil {
		return fmt.Errorf("encode rotations: %w", err)
	}
	joints := f.Joints
	if joints == nil {
		joints = map[string]geom.Vec3{}
	}
	jointData, err := json.Marshal(joints)
	if err != nil {
		return fmt.Errorf("encode joints: %w", err)
	}

	f.CreatedAt = time.Now()
	result, err := r.db.Exec(
		`INSERT INTO frames (session_id, sequence, rotations, joints, root_x, root_y, root_z, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.SessionID, f.Sequence, string(rotations), string(jointData),
		f.Root.X, f.Root.Y, f.Root.Z, f.CreatedAt,
	)
	if err != nil {
		return err
	}
	f.ID, err = result.LastInsertId()
	return err
}

// ListBySession returns the frames of a session in sequence order.
// A positive limit keeps only the most recent frames.
func (r *FrameRepository) ListBySession(sessionID string, limit int) ([]*Frame, error) {
	query := `SELECT ` + frameColumns + ` FROM (
		SELECT * FROM frames WHERE session_id = ? ORDER BY sequence DESC LIMIT ?
	) ORDER BY sequence ASC`
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(query, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []*Frame
	for rows.Next() {
		f, err := scanFrame(rows)
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return frames, nil
}

// Latest returns the highest-sequence frame of a session.
func (r *FrameRepository) Latest(sessionID string) (*Frame, error) {
	f, err := scanFrame(r.db.QueryRow(
		`SELECT `+frameColumns+` FROM frames WHERE session_id = ? ORDER BY sequence DESC LIMIT 1`,
		sessionID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// Count returns the number of frames stored for a session.
func (r *FrameRepository) Count(sessionID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM frames WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}

// DeleteBySession removes every frame of a session.
func (r *FrameRepository) DeleteBySession(sessionID string) error {
	_, err := r.db.Exec(`DELETE FROM frames WHERE session_id = ?`, sessionID)
	return err
}
