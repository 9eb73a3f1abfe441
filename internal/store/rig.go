package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Rig layouts known to the service.
const (
	LayoutDefault  = "default"
	LayoutArmsDown = "arms-down"
)

// Rig is a stored rig profile.
type Rig struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Layout string `json:"layout"`
	// BoneMap maps rig bone names to canonical bone names.
	BoneMap map[string]string `json:"bone_map,omitempty"`
	// Config holds solver options as JSON, applied over the defaults.
	Config    json.RawMessage `json:"config,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// RigRepository provides CRUD operations for rig profiles.
type RigRepository struct {
	db *sql.DB
}

// Rigs returns the rig repository for this store.
func (s *Store) Rigs() *RigRepository {
	return &RigRepository{db: s.db}
}

const rigColumns = `id, name, layout, bone_map, config, created_at, updated_at`

func encodeRig(r *Rig) (boneMap, config string, err error) {
	if r.Layout == "" {
		r.Layout = LayoutDefault
	}
	m := r.BoneMap
	if m == nil {
		m = map[string]string{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", "", fmt.Errorf("encode bone map: %w", err)
	}
	c := r.Config
	if len(c) == 0 {
		c = json.RawMessage("{}")
	}
	return string(b), string(c), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRig(row scanner) (*Rig, error) {
	r := &Rig{}
	var boneMap, config string
	if err := row.Scan(&r.ID, &r.Name, &r.Layout, &boneMap, &config, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(boneMap), &r.BoneMap); err != nil {
		return nil, fmt.Errorf("decode bone map of rig %s: %w", r.ID, err)
	}
	r.Config = json.RawMessage(config)
	return r, nil
}

// Create inserts a new rig profile.
func (r *RigRepository) Create(rig *Rig) error {
	boneMap, config, err := encodeRig(rig)
	if err != nil {
		return err
	}

	now := time.Now()
	rig.CreatedAt = now
	rig.UpdatedAt = now

	_, err = r.db.Exec(
		`INSERT INTO rigs (`+rigColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rig.ID, rig.Name, rig.Layout, boneMap, config, rig.CreatedAt, rig.UpdatedAt,
	)
	return err
}

// GetByID retrieves a rig profile by its ID.
func (r *RigRepository) GetByID(id string) (*Rig, error) {
	rig, err := scanRig(r.db.QueryRow(`SELECT `+rigColumns+` FROM rigs WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rig, nil
}

// GetByName retrieves a rig profile by its name.
func (r *RigRepository) GetByName(name string) (*Rig, error) {
	rig, err := scanRig(r.db.QueryRow(`SELECT `+rigColumns+` FROM rigs WHERE name = ?`, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rig, nil
}

// List retrieves all rig profiles, newest first.
func (r *RigRepository) List() ([]*Rig, error) {
	rows, err := r.db.Query(`SELECT ` + rigColumns + ` FROM rigs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rigs []*Rig
	for rows.Next() {
		rig, err := scanRig(rows)
		if err != nil {
			return nil, err
		}
		rigs = append(rigs, rig)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rigs, nil
}

// Update updates an existing rig profile.
func (r *RigRepository) Update(rig *Rig) error {
	boneMap, config, err := encodeRig(rig)
	if err != nil {
		return err
	}
	rig.UpdatedAt = time.Now()

	result, err := r.db.Exec(
		`UPDATE rigs SET name = ?, layout = ?, bone_map = ?, config = ?, updated_at = ?
		 WHERE id = ?`,
		rig.Name, rig.Layout, boneMap, config, rig.UpdatedAt, rig.ID,
	)
	if err != nil {
		return err
	}
	return affected(result)
}

// Delete removes a rig profile and, through the cascade, its sessions.
func (r *RigRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM rigs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(result)
}
