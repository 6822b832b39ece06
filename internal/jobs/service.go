package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"

	"github.com/kimhsiao/photosync/internal/apperr"
	"github.com/kimhsiao/photosync/internal/db"
	"github.com/kimhsiao/photosync/internal/immich"
	"github.com/kimhsiao/photosync/internal/logging"
	"github.com/kimhsiao/photosync/internal/models"
	"github.com/kimhsiao/photosync/internal/resize"
)

// Remote is the slice of the photo server API the jobs need.
type Remote interface {
	ListAlbumAssets(ctx context.Context, albumID string) ([]immich.Asset, error)
	FetchAsset(ctx context.Context, assetID string) ([]byte, error)
}

// Resizer produces resized copies of downloaded originals.
type Resizer interface {
	ResizeFile(srcPath, dstDir string, profile models.ResizeProfile) (resize.Outcome, error)
}

// Service creates tasks and enqueues their work. Producers run in request
// handlers; the bodies run later on the worker pool.
type Service struct {
	repo     *db.Repository
	queue    *Queue
	remote   Remote
	resizer  Resizer
	notifier Notifier
	dataDir  string
	log      *logrus.Entry
}

// NewService wires the task producers.
func NewService(repo *db.Repository, queue *Queue, remote Remote, resizer Resizer, notifier Notifier, dataDir string) *Service {
	return &Service{
		repo:     repo,
		queue:    queue,
		remote:   remote,
		resizer:  resizer,
		notifier: notifier,
		dataDir:  dataDir,
		log:      logging.WithComponent("jobs"),
	}
}

// OriginalsDir returns the download destination for an album.
func (s *Service) OriginalsDir(albumID string) string {
	return filepath.Join(s.dataDir, "originals", albumID)
}

// ResizedDir returns the output directory for one album resized against one
// profile. Keying by both keeps albums from sharing outputs: camera filenames
// repeat across albums, and a shared directory would make the exists-check
// skip a distinct image.
func (s *Service) ResizedDir(albumName, profileName string) string {
	return filepath.Join(s.dataDir, "resized", albumName+"_"+profileName)
}

// StartDownload creates and enqueues a download task for the album. If a
// completed download for the same album already exists, the existing task is
// returned and created is false.
func (s *Service) StartDownload(ctx context.Context, albumID, albumName string) (*models.Task, bool, error) {
	if albumID == "" {
		return nil, false, apperr.Invalid("album id is required")
	}

	existing, err := s.repo.FindCompletedTask(models.TaskKindDownload, albumID, 0)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	task := &models.Task{
		Kind:      models.TaskKindDownload,
		AlbumID:   albumID,
		AlbumName: albumName,
	}
	if err := s.repo.CreateTask(task); err != nil {
		return nil, false, err
	}

	taskID := task.ID.String()
	item := WorkItem{
		TaskID: taskID,
		Run: func(ctx context.Context) error {
			return s.runDownload(ctx, taskID, albumID)
		},
	}
	if err := s.enqueue(ctx, task, item); err != nil {
		return nil, false, err
	}
	return task, true, nil
}

// StartResize creates and enqueues a resize task for the album against one
// profile. Duplicate protection works per (album, profile) pair.
func (s *Service) StartResize(ctx context.Context, albumID string, profileID int64) (*models.Task, bool, error) {
	if albumID == "" {
		return nil, false, apperr.Invalid("album id is required")
	}
	profile, err := s.repo.GetResizeProfile(profileID)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.repo.FindCompletedTask(models.TaskKindResize, albumID, profileID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	album, err := s.repo.GetAlbum(albumID)
	if err != nil {
		return nil, false, err
	}

	task := &models.Task{
		Kind:      models.TaskKindResize,
		AlbumID:   albumID,
		AlbumName: album.Name,
		ProfileID: profileID,
	}
	if err := s.repo.CreateTask(task); err != nil {
		return nil, false, err
	}

	taskID := task.ID.String()
	prof := *profile
	item := WorkItem{
		TaskID: taskID,
		Run: func(ctx context.Context) error {
			return s.runResize(ctx, taskID, albumID, prof)
		},
	}
	if err := s.enqueue(ctx, task, item); err != nil {
		return nil, false, err
	}
	return task, true, nil
}

// enqueue hands the item to the queue. A cancelled enqueue leaves the task
// marked as error so it never lingers as pending forever.
func (s *Service) enqueue(ctx context.Context, task *models.Task, item WorkItem) error {
	if err := s.queue.Enqueue(ctx, item); err != nil {
		if _, failErr := s.repo.FailTask(task.ID.String(), "enqueue cancelled"); failErr != nil {
			s.log.WithError(failErr).Warn("failed to mark cancelled task")
		}
		return err
	}
	return nil
}

// runDownload fetches every image asset of the album to local storage.
// Per-asset failures are counted and do not abort the run; the task still
// completes. Only a whole-run error (asset listing, cancellation) is
// returned, which the worker turns into a task error.
func (s *Service) runDownload(ctx context.Context, taskID, albumID string) error {
	task, err := s.repo.ClaimTask(taskID)
	if err != nil {
		return err
	}
	s.notifier.NotifyTask(task, "starting download")

	assets, err := s.remote.ListAlbumAssets(ctx, albumID)
	if err != nil {
		return err
	}
	images := make([]immich.Asset, 0, len(assets))
	for _, a := range assets {
		if strings.EqualFold(a.Type, "IMAGE") {
			images = append(images, a)
		}
	}

	task, err = s.repo.SetTaskTotal(taskID, len(images))
	if err != nil {
		return err
	}
	s.notifier.NotifyTask(task, fmt.Sprintf("downloading %d assets", len(images)))

	dir := s.OriginalsDir(albumID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperr.Wrap(err, "create download directory")
	}

	for _, asset := range images {
		select {
		case <-ctx.Done():
			return apperr.Wrap(ctx.Err(), "download interrupted")
		default:
		}

		name := asset.OriginalFileName
		if name != "" {
			if _, statErr := os.Stat(filepath.Join(dir, name)); statErr == nil {
				task = s.advance(taskID, 0, 0, 1)
				s.notify(task, "")
				continue
			}
		}

		data, err := s.remote.FetchAsset(ctx, asset.ID)
		if err != nil {
			s.log.WithError(err).WithField("asset", asset.ID).Warn("asset fetch failed")
			task = s.advance(taskID, 0, 1, 0)
			s.notify(task, "")
			continue
		}
		if name == "" {
			name = asset.ID + mimetype.Detect(data).Extension()
		}

		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			s.log.WithError(err).WithField("asset", asset.ID).Warn("asset write failed")
			task = s.advance(taskID, 0, 1, 0)
			s.notify(task, "")
			continue
		}

		if err := s.repo.EnsureImage(asset.ID); err != nil {
			s.log.WithError(err).WithField("asset", asset.ID).Warn("image record failed")
		} else if err := s.repo.MarkImageDownloaded(asset.ID, name); err != nil {
			s.log.WithError(err).WithField("asset", asset.ID).Warn("downloaded flag failed")
		}

		task = s.advance(taskID, 1, 0, 0)
		s.notify(task, "")
	}

	task, err = s.repo.CompleteTask(taskID)
	if err != nil {
		return err
	}
	s.notifier.NotifyTask(task, "download complete")
	return nil
}

// runResize letterboxes every downloaded image of the album into the
// profile's output directory. Orientation mismatches and already-resized
// outputs count as skipped.
func (s *Service) runResize(ctx context.Context, taskID, albumID string, profile models.ResizeProfile) error {
	task, err := s.repo.ClaimTask(taskID)
	if err != nil {
		return err
	}
	s.notifier.NotifyTask(task, "starting resize")

	images, err := s.repo.ListActiveImages(albumID)
	if err != nil {
		return err
	}

	task, err = s.repo.SetTaskTotal(taskID, len(images))
	if err != nil {
		return err
	}
	s.notifier.NotifyTask(task, fmt.Sprintf("resizing %d images", len(images)))

	albumName := task.AlbumName
	if albumName == "" {
		albumName = albumID
	}
	srcDir := s.OriginalsDir(albumID)
	dstDir := s.ResizedDir(albumName, profile.Name)
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return apperr.Wrap(err, "create resize directory")
	}

	for _, img := range images {
		select {
		case <-ctx.Done():
			return apperr.Wrap(ctx.Err(), "resize interrupted")
		default:
		}

		if !img.IsDownloaded || img.FileName == "" {
			task = s.advance(taskID, 0, 0, 1)
			continue
		}

		outcome, err := s.resizer.ResizeFile(filepath.Join(srcDir, img.FileName), dstDir, profile)
		switch {
		case err != nil:
			s.log.WithError(err).WithField("file", img.FileName).Warn("resize failed")
			task = s.advance(taskID, 0, 1, 0)
		case outcome == resize.OutcomeResized:
			task = s.advance(taskID, 1, 0, 0)
		default:
			task = s.advance(taskID, 0, 0, 1)
		}
		s.notify(task, "")
	}

	task, err = s.repo.CompleteTask(taskID)
	if err != nil {
		return err
	}
	s.notifier.NotifyTask(task, "resize complete")
	return nil
}

// notify forwards a progress update, tolerating a nil task from a failed
// counter write.
func (s *Service) notify(task *models.Task, message string) {
	if task != nil {
		s.notifier.NotifyTask(task, message)
	}
}

// advance updates counters and swallows persistence errors so one bad write
// does not abort an otherwise healthy run.
func (s *Service) advance(taskID string, processed, failed, skipped int) *models.Task {
	task, err := s.repo.AdvanceTask(taskID, processed, failed, skipped)
	if err != nil {
		s.log.WithError(err).WithField("task", taskID).Warn("progress update failed")
		return nil
	}
	return task
}
