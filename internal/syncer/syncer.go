// Package syncer reconciles the local album mirror against the remote
// photo server.
package syncer

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/kimhsiao/photosync/internal/apperr"
	"github.com/kimhsiao/photosync/internal/db"
	"github.com/kimhsiao/photosync/internal/immich"
	"github.com/kimhsiao/photosync/internal/logging"
	"github.com/kimhsiao/photosync/internal/models"
)

// maxConcurrentAlbums bounds parallel reconciliation in a batch sync.
const maxConcurrentAlbums = 4

// Remote is the slice of the photo server API the reconciler needs.
type Remote interface {
	ListAlbums(ctx context.Context) ([]immich.Album, error)
	ListAlbumAssets(ctx context.Context, albumID string) ([]immich.Asset, error)
}

// SyncResult reports the outcome of reconciling one album.
type SyncResult struct {
	AlbumID   string        `json:"album_id"`
	AlbumName string        `json:"album_name"`
	New       int           `json:"new"`
	Existing  int           `json:"existing"`
	Removed   int           `json:"removed"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Reconciler diffs remote album membership against the local association
// table. Assets that left an album are soft-removed: the association row
// survives with is_active off, so nothing ever forgets what was downloaded.
type Reconciler struct {
	repo   *db.Repository
	remote Remote
	now    func() time.Time
	log    *logrus.Entry
}

func NewReconciler(repo *db.Repository, remote Remote) *Reconciler {
	return &Reconciler{
		repo:   repo,
		remote: remote,
		now:    time.Now,
		log:    logging.WithComponent("syncer"),
	}
}

// ReconcileAlbum brings one album's local state in line with the remote. A
// remote failure leaves local state untouched. The operation is idempotent:
// a second run against an unchanged remote counts every asset as existing
// and changes nothing.
func (r *Reconciler) ReconcileAlbum(ctx context.Context, album immich.Album) SyncResult {
	start := r.now()
	result := SyncResult{AlbumID: album.ID, AlbumName: album.AlbumName}

	assets, err := r.remote.ListAlbumAssets(ctx, album.ID)
	if err != nil {
		result.Error = err.Error()
		result.Duration = r.now().Sub(start)
		r.log.WithError(err).WithField("album", album.ID).Error("asset listing failed")
		return result
	}

	if err := r.apply(album, assets, &result); err != nil {
		result.Error = err.Error()
		result.Duration = r.now().Sub(start)
		return result
	}

	result.Success = true
	result.Duration = r.now().Sub(start)
	r.log.WithFields(logrus.Fields{
		"album":    album.ID,
		"new":      result.New,
		"existing": result.Existing,
		"removed":  result.Removed,
	}).Info("album reconciled")
	return result
}

// apply performs the three-way diff and writes it to storage.
func (r *Reconciler) apply(album immich.Album, assets []immich.Asset, result *SyncResult) error {
	active, err := r.repo.ActiveAssetIDs(album.ID)
	if err != nil {
		return err
	}

	record := &models.Album{
		ID:         album.ID,
		Name:       album.AlbumName,
		AssetCount: len(assets),
		LastSynced: r.now().Unix(),
	}
	if err := r.repo.UpsertAlbum(record); err != nil {
		return err
	}

	remote := make(map[string]struct{}, len(assets))
	for _, asset := range assets {
		remote[asset.ID] = struct{}{}
		if _, ok := active[asset.ID]; ok {
			result.Existing++
			continue
		}
		if err := r.repo.EnsureImage(asset.ID); err != nil {
			return err
		}
		if err := r.repo.ActivateAssociation(album.ID, asset.ID); err != nil {
			return err
		}
		result.New++
	}

	for assetID := range active {
		if _, ok := remote[assetID]; ok {
			continue
		}
		if err := r.repo.DeactivateAssociation(album.ID, assetID); err != nil {
			return err
		}
		result.Removed++
	}
	return nil
}

// SyncAll reconciles every remote album. Albums run concurrently with a
// small bound; one album's failure shows up in its result and never stops
// the others. The returned error covers only the initial album listing.
func (r *Reconciler) SyncAll(ctx context.Context) ([]SyncResult, error) {
	albums, err := r.remote.ListAlbums(ctx)
	if err != nil {
		return nil, apperr.Wrap(err, "list albums")
	}

	results := make([]SyncResult, len(albums))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentAlbums)

	for i, album := range albums {
		i, album := i, album
		g.Go(func() error {
			results[i] = r.ReconcileAlbum(gctx, album)
			return nil
		})
	}
	g.Wait()
	return results, nil
}
