// Package models provides data model definitions for PhotoSync.
package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// UUID is a wrapper around string for UUID type safety in task ids.
type UUID string

// Value implements driver.Valuer for UUID.
func (u UUID) Value() (driver.Value, error) {
	return string(u), nil
}

// Scan implements sql.Scanner for UUID.
func (u *UUID) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*u = ""
	case string:
		*u = UUID(v)
	case []byte:
		*u = UUID(v)
	default:
		return fmt.Errorf("cannot scan %T into UUID", value)
	}
	return nil
}

// String returns the string representation of the UUID.
func (u UUID) String() string {
	return string(u)
}

// Album represents a remote album tracked locally.
type Album struct {
	ID         string `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	AssetCount int    `db:"asset_count" json:"asset_count"`
	LastSynced int64  `db:"last_synced" json:"last_synced"`
}

// TableName returns the table name for Album.
func (Album) TableName() string {
	return "albums"
}

// Image represents one remote asset mirrored (or pending mirror) locally.
// The remote asset id is the primary key; album membership lives in the
// AlbumImage join entity.
type Image struct {
	AssetID      string `db:"asset_id" json:"asset_id"`
	FileName     string `db:"file_name" json:"file_name,omitempty"`
	IsDownloaded bool   `db:"is_downloaded" json:"is_downloaded"`
	CreatedAt    int64  `db:"created_at" json:"created_at"`
}

// TableName returns the table name for Image.
func (Image) TableName() string {
	return "images"
}

// AlbumImage is the join entity between albums and images. Removal from the
// remote album flips IsActive to false instead of deleting the row, so
// completed resize runs keep their references.
type AlbumImage struct {
	AlbumID   string `db:"album_id" json:"album_id"`
	AssetID   string `db:"asset_id" json:"asset_id"`
	IsActive  bool   `db:"is_active" json:"is_active"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
	UpdatedAt int64  `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for AlbumImage.
func (AlbumImage) TableName() string {
	return "album_images"
}

// ResizeProfile describes one output size with orientation filters.
type ResizeProfile struct {
	ID                int64  `db:"id" json:"id"`
	Name              string `db:"name" json:"name"`
	Width             int    `db:"width" json:"width"`
	Height            int    `db:"height" json:"height"`
	IncludeHorizontal bool   `db:"include_horizontal" json:"include_horizontal"`
	IncludeVertical   bool   `db:"include_vertical" json:"include_vertical"`
	CreatedAt         int64  `db:"created_at" json:"created_at"`
}

// TableName returns the table name for ResizeProfile.
func (ResizeProfile) TableName() string {
	return "resize_profiles"
}

// User represents a registered user account.
type User struct {
	ID           int64  `db:"id" json:"id"`
	Username     string `db:"username" json:"username"`
	PasswordHash string `db:"password_hash" json:"-"`
	CreatedAt    int64  `db:"created_at" json:"created_at"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return "users"
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (u *User) CreatedAtTime() time.Time {
	return time.Unix(u.CreatedAt, 0)
}
