package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Photos table - the gallery hung on the tree
		`CREATE TABLE IF NOT EXISTS photos (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			path TEXT NOT NULL UNIQUE,
			width INTEGER NOT NULL DEFAULT 0,
			height INTEGER NOT NULL DEFAULT 0,
			position INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Photo tags - free-form labels shown with a focused photo
		`CREATE TABLE IF NOT EXISTS photo_tags (
			photo_id TEXT NOT NULL REFERENCES photos(id) ON DELETE CASCADE,
			tag TEXT NOT NULL,
			PRIMARY KEY (photo_id, tag)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_photos_position ON photos(position)`,
		`CREATE INDEX IF NOT EXISTS idx_photo_tags_tag ON photo_tags(tag)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
