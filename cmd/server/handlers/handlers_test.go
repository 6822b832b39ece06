// Package handlers tests for the REST API endpoints.
// These tests verify HTTP request handling, status codes, and responses.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/kimhsiao/photosync/internal/db"
	"github.com/kimhsiao/photosync/internal/immich"
	"github.com/kimhsiao/photosync/internal/models"
	"github.com/kimhsiao/photosync/internal/resize"
)

// setupTestRepo creates a migrated in-memory database for testing.
func setupTestRepo(t *testing.T) *db.Repository {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.NewMigrator(database.DB).Up(); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db.NewRepository(database.DB)
}

// jsonBody marshals v into a request body reader.
func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return bytes.NewReader(raw)
}

// stubRemote implements the remote interfaces with canned responses.
type stubRemote struct {
	albums []immich.Album
	assets map[string][]immich.Asset
	err    error
}

func (s *stubRemote) ListAlbums(ctx context.Context) ([]immich.Album, error) {
	return s.albums, s.err
}

func (s *stubRemote) ListAlbumAssets(ctx context.Context, albumID string) ([]immich.Asset, error) {
	return s.assets[albumID], s.err
}

func (s *stubRemote) FetchAsset(ctx context.Context, assetID string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte{0xFF, 0xD8, 0xFF}, nil
}

func (s *stubRemote) ValidateConnection(ctx context.Context) (bool, string) {
	if s.err != nil {
		return false, s.err.Error()
	}
	return true, "connected"
}

// stubResizer reports every file as resized.
type stubResizer struct{}

func (stubResizer) ResizeFile(srcPath, dstDir string, profile models.ResizeProfile) (resize.Outcome, error) {
	return resize.OutcomeResized, nil
}
