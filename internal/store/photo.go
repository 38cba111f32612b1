package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Photo is one gallery image.
type Photo struct {
	ID     string
	Title  string
	Path   string
	Width  int
	Height int
	// Position orders photos along the tree spiral, lowest first.
	Position  int
	Tags      []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PhotoRepository provides CRUD operations for photos.
type PhotoRepository struct {
	db *sql.DB
}

// Photos returns the photo repository for this store.
func (s *Store) Photos() *PhotoRepository {
	return &PhotoRepository{db: s.db}
}

const photoColumns = `id, title, path, width, height, position, created_at, updated_at`

func scanPhoto(row interface{ Scan(...any) error }) (*Photo, error) {
	p := &Photo{}
	err := row.Scan(&p.ID, &p.Title, &p.Path, &p.Width, &p.Height, &p.Position, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create inserts a photo. An empty ID is assigned a new UUID, and a zero
// Position appends the photo after the last one.
func (r *PhotoRepository) Create(p *Photo) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Position == 0 {
		var max sql.NullInt64
		if err := r.db.QueryRow(`SELECT MAX(position) FROM photos`).Scan(&max); err != nil {
			return err
		}
		p.Position = int(max.Int64) + 1
	}

	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO photos (`+photoColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.Path, p.Width, p.Height, p.Position, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if err := writeTags(tx, p.ID, p.Tags); err != nil {
		return err
	}

	return tx.Commit()
}

// GetByID retrieves a photo by its ID.
func (r *PhotoRepository) GetByID(id string) (*Photo, error) {
	p, err := scanPhoto(r.db.QueryRow(`SELECT `+photoColumns+` FROM photos WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	tags, err := r.tags()
	if err != nil {
		return nil, err
	}
	p.Tags = tags[p.ID]
	return p, nil
}

// GetByPath retrieves a photo by its file path.
func (r *PhotoRepository) GetByPath(path string) (*Photo, error) {
	var id string
	err := r.db.QueryRow(`SELECT id FROM photos WHERE path = ?`, path).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r.GetByID(id)
}

// List retrieves all photos in tree order.
func (r *PhotoRepository) List() ([]*Photo, error) {
	rows, err := r.db.Query(`SELECT ` + photoColumns + ` FROM photos ORDER BY position, created_at`)
	if err != nil {
		return nil, err
	}

	var photos []*Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		photos = append(photos, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	tags, err := r.tags()
	if err != nil {
		return nil, err
	}
	for _, p := range photos {
		p.Tags = tags[p.ID]
	}

	return photos, nil
}

// Count returns the number of photos.
func (r *PhotoRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM photos`).Scan(&n)
	return n, err
}

// Update saves a photo's title, position and tags.
func (r *PhotoRepository) Update(p *Photo) error {
	p.UpdatedAt = time.Now()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE photos SET title = ?, position = ?, updated_at = ? WHERE id = ?`,
		p.Title, p.Position, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(`DELETE FROM photo_tags WHERE photo_id = ?`, p.ID); err != nil {
		return err
	}
	if err := writeTags(tx, p.ID, p.Tags); err != nil {
		return err
	}

	return tx.Commit()
}

// Reorder assigns positions 1..n following ids. Photos not named keep their
// relative order after the named ones.
func (r *PhotoRepository) Reorder(ids []string) error {
	photos, err := r.List()
	if err != nil {
		return err
	}

	rank := make(map[string]int, len(ids))
	for i, id := range ids {
		if _, ok := rank[id]; !ok {
			rank[id] = i
		}
	}
	for _, id := range ids {
		found := false
		for _, p := range photos {
			if p.ID == id {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("photo %s: %w", id, ErrNotFound)
		}
	}

	sort.SliceStable(photos, func(i, j int) bool {
		ri, iok := rank[photos[i].ID]
		rj, jok := rank[photos[j].ID]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return false
		}
	})

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i, p := range photos {
		if _, err := tx.Exec(`UPDATE photos SET position = ? WHERE id = ?`, i+1, p.ID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Delete removes a photo by its ID.
func (r *PhotoRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM photos WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *PhotoRepository) tags() (map[string][]string, error) {
	rows, err := r.db.Query(`SELECT photo_id, tag FROM photo_tags ORDER BY photo_id, tag`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var id, tag string
		if err := rows.Scan(&id, &tag); err != nil {
			return nil, err
		}
		out[id] = append(out[id], tag)
	}
	return out, rows.Err()
}

func writeTags(tx *sql.Tx, photoID string, tags []string) error {
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, err := tx.Exec(`INSERT OR IGNORE INTO photo_tags (photo_id, tag) VALUES (?, ?)`, photoID, tag); err != nil {
			return err
		}
	}
	return nil
}
