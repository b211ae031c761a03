package gallery

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/galeri/service/internal/storage"
)

// maxTitleLength bounds stored titles. Truncation is a byte prefix, applied
// identically on upload and rename.
const maxTitleLength = 64

// ErrNoFiles is returned for an upload batch containing no files.
var ErrNoFiles = errors.New("no files uploaded")

// UploadFile describes one file in an upload batch. Open is called inside the
// batch fan-out, so each file gets its own reader in its own goroutine.
type UploadFile struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// OrderUpdate assigns a new display order to one image.
type OrderUpdate struct {
	ID    string `json:"id"`
	Order int    `json:"order"`
}

// Service orchestrates gallery operations across the record repository and
// the object store, keeping the two consistent: a record never references an
// object that was not stored, and delete failures leave at worst an orphaned
// object, never a dangling record.
type Service struct {
	repo  Repository
	store storage.Storage
	log   zerolog.Logger

	// uploadLocks serializes upload batches per user so concurrent batches
	// from one user get disjoint order ranges. Entries are tiny and per
	// active user, so they are never evicted.
	uploadLocks sync.Map // userID -> *sync.Mutex
}

// NewService creates a new gallery Service.
func NewService(repo Repository, store storage.Storage, log zerolog.Logger) *Service {
	return &Service{repo: repo, store: store, log: log}
}

// UploadBatch stores every file and inserts a record per file. The batch gets
// one contiguous order range from a single NextOrder snapshot taken before
// fan-out; file i receives base+i regardless of completion order.
//
// The batch is all-or-nothing: any failure cancels the remaining files and
// already-completed siblings are compensated (record removed, object removed)
// before the error is returned.
func (s *Service) UploadBatch(ctx context.Context, userID string, files []UploadFile, titles []string) ([]*Image, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	unlock := s.lockUser(userID)
	defer unlock()

	base, err := s.repo.NextOrder(ctx, userID)
	if err != nil {
		return nil, err
	}

	images := make([]*Image, len(files))
	stored := make([]*storage.StoredObject, len(files))

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			title := ""
			if i < len(titles) {
				title = titles[i]
			}
			if title == "" {
				title = filepath.Base(f.Name)
			}

			reader, err := f.Open()
			if err != nil {
				return err
			}
			defer reader.Close()

			obj, err := s.store.Store(gctx, reader, f.Size, f.ContentType, f.Name)
			if err != nil {
				return err
			}
			stored[i] = obj

			img, err := s.repo.Insert(gctx, &Image{
				UserID:   userID,
				ImageURL: obj.URL,
				ImageKey: obj.Key,
				Title:    truncateTitle(title),
				Order:    base + i,
			})
			if err != nil {
				return err
			}
			images[i] = img
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.compensate(context.WithoutCancel(ctx), userID, images, stored)
		return nil, err
	}
	return images, nil
}

// compensate undoes the completed parts of a failed batch: sibling records
// are deleted first, then their objects. Failures here leave orphaned
// objects, which are logged for out-of-band cleanup and invisible to users.
func (s *Service) compensate(ctx context.Context, userID string, images []*Image, stored []*storage.StoredObject) {
	for i, obj := range stored {
		if obj == nil {
			continue
		}
		if img := images[i]; img != nil {
			if _, err := s.repo.Delete(ctx, img.ID, userID); err != nil && !errors.Is(err, ErrNotFound) {
				s.log.Error().Err(err).
					Str("image_id", img.ID).
					Str("image_key", obj.Key).
					Msg("upload rollback: record removal failed")
				continue
			}
		}
		if err := s.store.Remove(ctx, obj.Key); err != nil {
			s.log.Error().Err(err).
				Str("image_key", obj.Key).
				Msg("upload rollback: orphaned object left in storage")
		}
	}
}

// List returns the user's images in display order.
func (s *Service) List(ctx context.Context, userID string) ([]*Image, error) {
	return s.repo.FindByOwner(ctx, userID)
}

// Rename updates an image's title, truncated to the same bound as upload.
// Returns ErrNotFound when the id does not exist for this owner.
func (s *Service) Rename(ctx context.Context, id, userID, title string) (*Image, error) {
	return s.repo.UpdateTitle(ctx, id, userID, truncateTitle(title))
}

// Delete removes the record first and the stored object second, so a partial
// failure orphans an unreferenced object instead of leaving a record that
// points at nothing. A failed object removal is therefore still reported as
// success; the orphaned key is logged for later cleanup.
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	img, err := s.repo.Delete(ctx, id, userID)
	if err != nil {
		return err
	}

	if err := s.store.Remove(ctx, img.ImageKey); err != nil {
		s.log.Error().Err(err).
			Str("image_id", img.ID).
			Str("image_key", img.ImageKey).
			Msg("delete: orphaned object left in storage")
	}
	return nil
}

// Reorder applies the submitted order values concurrently, one update per
// entry. Entries whose id is missing or owned by someone else are skipped;
// display order is advisory, so no permutation check is performed.
func (s *Service) Reorder(ctx context.Context, userID string, updates []OrderUpdate) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, u := range updates {
		g.Go(func() error {
			err := s.repo.UpdateOrder(gctx, u.ID, userID, u.Order)
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

func (s *Service) lockUser(userID string) func() {
	v, _ := s.uploadLocks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func truncateTitle(title string) string {
	if len(title) > maxTitleLength {
		return title[:maxTitleLength]
	}
	return title
}
