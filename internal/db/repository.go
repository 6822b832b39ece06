// Package db provides CRUD repository operations for PhotoSync data models.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kimhsiao/photosync/internal/apperr"
	"github.com/kimhsiao/photosync/internal/models"
)

// Repository provides CRUD operations for all models.
// Frequently used queries go through a prepared statement cache.
type Repository struct {
	db *sql.DB

	// Statements are prepared on first use and cached for reuse.
	stmtCache sync.Map // map[string]*sql.Stmt
}

// NewRepository creates a new Repository instance.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// PrepareStmt gets or creates a prepared statement from the cache.
func (r *Repository) PrepareStmt(query string) (*sql.Stmt, error) {
	if stmt, ok := r.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	actual, loaded := r.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		// Another goroutine already prepared this, close our duplicate
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}
	return stmt, nil
}

// Close closes all cached prepared statements.
func (r *Repository) Close() error {
	var firstErr error
	r.stmtCache.Range(func(key, value interface{}) bool {
		stmt := value.(*sql.Stmt)
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

// =====================================================
// Album Operations
// =====================================================

// UpsertAlbum creates or refreshes an album record from remote metadata.
func (r *Repository) UpsertAlbum(album *models.Album) error {
	album.LastSynced = time.Now().Unix()
	query := `
	INSERT INTO albums (id, name, asset_count, last_synced)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		asset_count = excluded.asset_count,
		last_synced = excluded.last_synced
	`
	_, err := r.db.Exec(query, album.ID, album.Name, album.AssetCount, album.LastSynced)
	return apperr.Persistence(err)
}

// GetAlbum retrieves an album by id.
func (r *Repository) GetAlbum(id string) (*models.Album, error) {
	stmt, err := r.PrepareStmt(
		"SELECT id, name, asset_count, last_synced FROM albums WHERE id = ?")
	if err != nil {
		return nil, err
	}

	var album models.Album
	err = stmt.QueryRow(id).Scan(&album.ID, &album.Name, &album.AssetCount, &album.LastSynced)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Wrap(apperr.ErrNotFound, "album %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &album, nil
}

// ListAlbums returns all tracked albums ordered by name.
func (r *Repository) ListAlbums() ([]*models.Album, error) {
	rows, err := r.db.Query(
		"SELECT id, name, asset_count, last_synced FROM albums ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var albums []*models.Album
	for rows.Next() {
		var album models.Album
		if err := rows.Scan(&album.ID, &album.Name, &album.AssetCount, &album.LastSynced); err != nil {
			return nil, err
		}
		albums = append(albums, &album)
	}
	return albums, rows.Err()
}

// =====================================================
// Image / Association Operations
// =====================================================

// EnsureImage creates an image record for the asset if one does not exist.
func (r *Repository) EnsureImage(assetID string) error {
	query := `
	INSERT INTO images (asset_id, created_at) VALUES (?, ?)
	ON CONFLICT(asset_id) DO NOTHING
	`
	_, err := r.db.Exec(query, assetID, time.Now().Unix())
	return apperr.Persistence(err)
}

// MarkImageDownloaded records that the asset's original is on local disk.
func (r *Repository) MarkImageDownloaded(assetID, fileName string) error {
	_, err := r.db.Exec(
		"UPDATE images SET is_downloaded = 1, file_name = ? WHERE asset_id = ?",
		fileName, assetID)
	return apperr.Persistence(err)
}

// ActivateAssociation creates or reactivates the (album, asset) association.
func (r *Repository) ActivateAssociation(albumID, assetID string) error {
	now := time.Now().Unix()
	query := `
	INSERT INTO album_images (album_id, asset_id, is_active, created_at, updated_at)
	VALUES (?, ?, 1, ?, ?)
	ON CONFLICT(album_id, asset_id) DO UPDATE SET
		is_active = 1,
		updated_at = excluded.updated_at
	`
	_, err := r.db.Exec(query, albumID, assetID, now, now)
	return apperr.Persistence(err)
}

// DeactivateAssociation soft-removes the (album, asset) association. The row
// stays so completed resize runs keep their history.
func (r *Repository) DeactivateAssociation(albumID, assetID string) error {
	_, err := r.db.Exec(
		"UPDATE album_images SET is_active = 0, updated_at = ? WHERE album_id = ? AND asset_id = ?",
		time.Now().Unix(), albumID, assetID)
	return apperr.Persistence(err)
}

// GetAssociation retrieves one album/asset association.
func (r *Repository) GetAssociation(albumID, assetID string) (*models.AlbumImage, error) {
	stmt, err := r.PrepareStmt(`
	SELECT album_id, asset_id, is_active, created_at, updated_at
	FROM album_images WHERE album_id = ? AND asset_id = ?`)
	if err != nil {
		return nil, err
	}

	var assoc models.AlbumImage
	err = stmt.QueryRow(albumID, assetID).Scan(
		&assoc.AlbumID, &assoc.AssetID, &assoc.IsActive, &assoc.CreatedAt, &assoc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Wrap(apperr.ErrNotFound, "association %s/%s", albumID, assetID)
	}
	if err != nil {
		return nil, err
	}
	return &assoc, nil
}

// ActiveAssetIDs returns the set of asset ids actively associated with the
// album, as a map for O(1) membership checks during reconciliation.
func (r *Repository) ActiveAssetIDs(albumID string) (map[string]struct{}, error) {
	stmt, err := r.PrepareStmt(
		"SELECT asset_id FROM album_images WHERE album_id = ? AND is_active = 1")
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query(albumID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// ListActiveImages returns the images actively associated with the album.
func (r *Repository) ListActiveImages(albumID string) ([]*models.Image, error) {
	rows, err := r.db.Query(`
	SELECT i.asset_id, i.file_name, i.is_downloaded, i.created_at
	FROM images i
	JOIN album_images ai ON ai.asset_id = i.asset_id
	WHERE ai.album_id = ? AND ai.is_active = 1
	ORDER BY i.asset_id`, albumID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []*models.Image
	for rows.Next() {
		var img models.Image
		if err := rows.Scan(&img.AssetID, &img.FileName, &img.IsDownloaded, &img.CreatedAt); err != nil {
			return nil, err
		}
		images = append(images, &img)
	}
	return images, rows.Err()
}

// =====================================================
// ResizeProfile Operations
// =====================================================

// CreateResizeProfile creates a new resize profile.
func (r *Repository) CreateResizeProfile(p *models.ResizeProfile) error {
	p.CreatedAt = time.Now().Unix()
	res, err := r.db.Exec(`
	INSERT INTO resize_profiles (name, width, height, include_horizontal, include_vertical, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`,
		p.Name, p.Width, p.Height, p.IncludeHorizontal, p.IncludeVertical, p.CreatedAt)
	if err != nil {
		return apperr.Persistence(err)
	}
	p.ID, err = res.LastInsertId()
	return err
}

// GetResizeProfile retrieves a profile by id.
func (r *Repository) GetResizeProfile(id int64) (*models.ResizeProfile, error) {
	stmt, err := r.PrepareStmt(`
	SELECT id, name, width, height, include_horizontal, include_vertical, created_at
	FROM resize_profiles WHERE id = ?`)
	if err != nil {
		return nil, err
	}

	var p models.ResizeProfile
	err = stmt.QueryRow(id).Scan(
		&p.ID, &p.Name, &p.Width, &p.Height, &p.IncludeHorizontal, &p.IncludeVertical, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Wrap(apperr.ErrNotFound, "resize profile %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetResizeProfileByName retrieves a profile by its unique name.
func (r *Repository) GetResizeProfileByName(name string) (*models.ResizeProfile, error) {
	var p models.ResizeProfile
	err := r.db.QueryRow(`
	SELECT id, name, width, height, include_horizontal, include_vertical, created_at
	FROM resize_profiles WHERE name = ?`, name).Scan(
		&p.ID, &p.Name, &p.Width, &p.Height, &p.IncludeHorizontal, &p.IncludeVertical, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Wrap(apperr.ErrNotFound, "resize profile %q", name)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListResizeProfiles returns all profiles, newest first.
func (r *Repository) ListResizeProfiles() ([]*models.ResizeProfile, error) {
	rows, err := r.db.Query(`
	SELECT id, name, width, height, include_horizontal, include_vertical, created_at
	FROM resize_profiles ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*models.ResizeProfile
	for rows.Next() {
		var p models.ResizeProfile
		if err := rows.Scan(&p.ID, &p.Name, &p.Width, &p.Height,
			&p.IncludeHorizontal, &p.IncludeVertical, &p.CreatedAt); err != nil {
			return nil, err
		}
		profiles = append(profiles, &p)
	}
	return profiles, rows.Err()
}

// UpdateResizeProfile updates an existing profile.
func (r *Repository) UpdateResizeProfile(p *models.ResizeProfile) error {
	res, err := r.db.Exec(`
	UPDATE resize_profiles
	SET name = ?, width = ?, height = ?, include_horizontal = ?, include_vertical = ?
	WHERE id = ?`,
		p.Name, p.Width, p.Height, p.IncludeHorizontal, p.IncludeVertical, p.ID)
	if err != nil {
		return apperr.Persistence(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.Wrap(apperr.ErrNotFound, "resize profile %d", p.ID)
	}
	return nil
}

// DeleteResizeProfile deletes a profile by id.
func (r *Repository) DeleteResizeProfile(id int64) error {
	res, err := r.db.Exec("DELETE FROM resize_profiles WHERE id = ?", id)
	if err != nil {
		return apperr.Persistence(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.Wrap(apperr.ErrNotFound, "resize profile %d", id)
	}
	return nil
}

// =====================================================
// User Operations
// =====================================================

// CreateUser creates a new user account.
func (r *Repository) CreateUser(u *models.User) error {
	u.CreatedAt = time.Now().Unix()
	res, err := r.db.Exec(
		"INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)",
		u.Username, u.PasswordHash, u.CreatedAt)
	if err != nil {
		return apperr.Persistence(err)
	}
	u.ID, err = res.LastInsertId()
	return err
}

// GetUserByUsername retrieves a user by username.
func (r *Repository) GetUserByUsername(username string) (*models.User, error) {
	var u models.User
	err := r.db.QueryRow(
		"SELECT id, username, password_hash, created_at FROM users WHERE username = ?",
		username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Wrap(apperr.ErrNotFound, "user %q", username)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CountUsers returns the number of registered users, used for the first-run
// setup check.
func (r *Repository) CountUsers() (int, error) {
	var n int
	err := r.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}
