package main

import (
	"testing"

	"github.com/kimhsiao/photosync/internal/config"
	"github.com/kimhsiao/photosync/internal/db"
)

func TestSeedProfiles(t *testing.T) {
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer database.Close()
	if err := db.NewMigrator(database.DB).Up(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	repo := db.NewRepository(database.DB)

	specs := []config.ProfileSpec{
		{Name: "frame", Width: 800, Height: 480, IncludeHorizontal: true},
		{Name: "portrait", Width: 480, Height: 800, IncludeVertical: true},
	}
	if err := seedProfiles(repo, specs); err != nil {
		t.Fatalf("seed: %v", err)
	}

	profiles, err := repo.ListResizeProfiles()
	if err != nil {
		t.Fatal(err)
	}
	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}

	// Seeding again must not duplicate or overwrite.
	existing, _ := repo.GetResizeProfileByName("frame")
	existing.Width = 1024
	if err := repo.UpdateResizeProfile(existing); err != nil {
		t.Fatal(err)
	}
	if err := seedProfiles(repo, specs); err != nil {
		t.Fatalf("re-seed: %v", err)
	}
	profiles, _ = repo.ListResizeProfiles()
	if len(profiles) != 2 {
		t.Fatalf("re-seed duplicated profiles: %d", len(profiles))
	}
	edited, _ := repo.GetResizeProfileByName("frame")
	if edited.Width != 1024 {
		t.Fatal("re-seed must not overwrite API edits")
	}
}
