package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Rig profiles: a skeleton layout, its bone-name map and solver options
		`CREATE TABLE IF NOT EXISTS rigs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			layout TEXT NOT NULL DEFAULT 'default' CHECK(layout IN ('default', 'arms-down')),
			bone_map TEXT NOT NULL DEFAULT '{}',
			config TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Sessions: one tracked subject driving one rig
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			rig_id TEXT NOT NULL REFERENCES rigs(id) ON DELETE CASCADE,
			flip INTEGER NOT NULL DEFAULT 0,
			root_motion INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Frames: solved bone rotations per tick
		`CREATE TABLE IF NOT EXISTS frames (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			sequence INTEGER NOT NULL,
			rotations TEXT NOT NULL,
			joints TEXT NOT NULL DEFAULT '{}',
			root_x REAL NOT NULL DEFAULT 0,
			root_y REAL NOT NULL DEFAULT 0,
			root_z REAL NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_sessions_rig_id ON sessions(rig_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_frames_session_sequence ON frames(session_id, sequence)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
