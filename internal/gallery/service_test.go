package gallery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/galeri/service/internal/storage"
)

// --- fakes ---

// memRepo is an in-memory Repository. All methods hold one mutex, so every
// mutation is atomic at single-record granularity, like the SQL it stands for.
type memRepo struct {
	mu     sync.Mutex
	seq    int
	order  map[string]int // id -> insertion sequence, creation-order tie-break
	images map[string]*Image
}

func newMemRepo() *memRepo {
	return &memRepo{order: map[string]int{}, images: map[string]*Image{}}
}

func (r *memRepo) NextOrder(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := 0
	for _, img := range r.images {
		if img.UserID == userID && img.Order >= next {
			next = img.Order + 1
		}
	}
	return next, nil
}

func (r *memRepo) Insert(_ context.Context, img *Image) (*Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	stored := *img
	stored.ID = fmt.Sprintf("img-%03d", r.seq)
	stored.CreatedAt = time.Now()
	r.images[stored.ID] = &stored
	r.order[stored.ID] = r.seq
	return &stored, nil
}

func (r *memRepo) FindByOwner(_ context.Context, userID string) ([]*Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*Image{}
	for _, img := range r.images {
		if img.UserID == userID {
			copied := *img
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return r.order[out[i].ID] < r.order[out[j].ID]
	})
	return out, nil
}

func (r *memRepo) FindOne(_ context.Context, id, userID string) (*Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	img, ok := r.images[id]
	if !ok || img.UserID != userID {
		return nil, ErrNotFound
	}
	copied := *img
	return &copied, nil
}

func (r *memRepo) UpdateTitle(_ context.Context, id, userID, title string) (*Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	img, ok := r.images[id]
	if !ok || img.UserID != userID {
		return nil, ErrNotFound
	}
	img.Title = title
	copied := *img
	return &copied, nil
}

func (r *memRepo) UpdateOrder(_ context.Context, id, userID string, order int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	img, ok := r.images[id]
	if !ok || img.UserID != userID {
		return ErrNotFound
	}
	img.Order = order
	return nil
}

func (r *memRepo) Delete(_ context.Context, id, userID string) (*Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	img, ok := r.images[id]
	if !ok || img.UserID != userID {
		return nil, ErrNotFound
	}
	delete(r.images, id)
	copied := *img
	return &copied, nil
}

// memStore is an in-memory storage.Storage recording live objects.
type memStore struct {
	mu        sync.Mutex
	seq       int
	live      map[string]bool
	failNames map[string]bool // Store fails for these suggested names
	removeErr error
}

func newMemStore() *memStore {
	return &memStore{live: map[string]bool{}, failNames: map[string]bool{}}
}

func (s *memStore) Store(_ context.Context, reader io.Reader, _ int64, _, suggestedName string) (*storage.StoredObject, error) {
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNames[suggestedName] {
		return nil, errors.New("store failed")
	}
	s.seq++
	key := fmt.Sprintf("obj-%03d%s", s.seq, strings.ToLower(filepath.Ext(suggestedName)))
	s.live[key] = true
	return &storage.StoredObject{Key: key, URL: "http://cdn.test/" + key}, nil
}

func (s *memStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeErr != nil {
		return s.removeErr
	}
	delete(s.live, key) // removing a missing key is success
	return nil
}

func (s *memStore) liveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

func newTestService(repo Repository, store storage.Storage) *Service {
	return NewService(repo, store, zerolog.Nop())
}

func mkFile(name, content string) UploadFile {
	return UploadFile{
		Name:        name,
		ContentType: "image/jpeg",
		Size:        int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

// --- upload ---

func TestUploadBatch_Empty(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMemRepo(), newMemStore())
	_, err := svc.UploadBatch(context.Background(), "u1", nil, nil)
	require.ErrorIs(t, err, ErrNoFiles)
}

func TestUploadBatch_AssignsContiguousOrders(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	svc := newTestService(repo, newMemStore())

	files := []UploadFile{mkFile("a.jpg", "aaa"), mkFile("b.jpg", "bbb"), mkFile("c.jpg", "ccc")}
	images, err := svc.UploadBatch(context.Background(), "u1", files, []string{"one", "two", "three"})
	require.NoError(t, err)
	require.Len(t, images, 3)

	for i, img := range images {
		require.Equal(t, i, img.Order, "file %d gets order base+index", i)
		require.Equal(t, "u1", img.UserID)
		require.NotEmpty(t, img.ImageURL)
	}
	require.Equal(t, "one", images[0].Title)
	require.Equal(t, "three", images[2].Title)
}

func TestUploadBatch_SecondBatchContinuesRange(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	svc := newTestService(repo, newMemStore())
	ctx := context.Background()

	_, err := svc.UploadBatch(ctx, "u1", []UploadFile{mkFile("a.jpg", "a"), mkFile("b.jpg", "b")}, nil)
	require.NoError(t, err)

	images, err := svc.UploadBatch(ctx, "u1",
		[]UploadFile{mkFile("c.jpg", "c"), mkFile("d.jpg", "d"), mkFile("e.jpg", "e")}, nil)
	require.NoError(t, err)

	got := []int{images[0].Order, images[1].Order, images[2].Order}
	require.Equal(t, []int{2, 3, 4}, got)
}

func TestUploadBatch_DefaultTitleFromFilename(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMemRepo(), newMemStore())

	images, err := svc.UploadBatch(context.Background(), "u1",
		[]UploadFile{mkFile("holiday.jpg", "x"), mkFile("beach.png", "y")},
		[]string{"named"})
	require.NoError(t, err)
	require.Equal(t, "named", images[0].Title)
	require.Equal(t, "beach.png", images[1].Title)
}

func TestUploadBatch_TruncatesTitleToBytePrefix(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMemRepo(), newMemStore())

	long := strings.Repeat("t", maxTitleLength+10)
	images, err := svc.UploadBatch(context.Background(), "u1",
		[]UploadFile{mkFile("a.jpg", "x")}, []string{long})
	require.NoError(t, err)
	require.Len(t, images[0].Title, maxTitleLength)
	require.Equal(t, long[:maxTitleLength], images[0].Title)
}

func TestUploadBatch_AllOrNothing(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	store := newMemStore()
	store.failNames["bad.jpg"] = true
	svc := newTestService(repo, store)

	_, err := svc.UploadBatch(context.Background(), "u1",
		[]UploadFile{mkFile("a.jpg", "a"), mkFile("bad.jpg", "b"), mkFile("c.jpg", "c")}, nil)
	require.Error(t, err)

	// Sibling successes are rolled back: no records, no live objects.
	images, err := repo.FindByOwner(context.Background(), "u1")
	require.NoError(t, err)
	require.Empty(t, images)
	require.Zero(t, store.liveCount())
}

func TestUploadBatch_ConcurrentSameUserGetsDisjointRanges(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	svc := newTestService(repo, newMemStore())
	ctx := context.Background()

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			files := []UploadFile{mkFile("a.jpg", "a"), mkFile("b.jpg", "b"), mkFile("c.jpg", "c")}
			_, err := svc.UploadBatch(ctx, "u1", files, nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	images, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, images, 6)

	seen := map[int]bool{}
	for _, img := range images {
		require.False(t, seen[img.Order], "order %d assigned twice", img.Order)
		seen[img.Order] = true
	}
	for i := 0; i < 6; i++ {
		require.True(t, seen[i], "order %d missing", i)
	}
}

// --- list / ownership ---

func TestList_DoesNotLeakOtherUsers(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMemRepo(), newMemStore())
	ctx := context.Background()

	_, err := svc.UploadBatch(ctx, "u1", []UploadFile{mkFile("a.jpg", "a")}, nil)
	require.NoError(t, err)
	_, err = svc.UploadBatch(ctx, "u2", []UploadFile{mkFile("b.jpg", "b")}, nil)
	require.NoError(t, err)

	images, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, images, 1)
	require.Equal(t, "u1", images[0].UserID)
}

// --- rename ---

func TestRename_UpdatesAndTruncates(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMemRepo(), newMemStore())
	ctx := context.Background()

	images, err := svc.UploadBatch(ctx, "u1", []UploadFile{mkFile("a.jpg", "a")}, nil)
	require.NoError(t, err)

	long := strings.Repeat("r", maxTitleLength*2)
	renamed, err := svc.Rename(ctx, images[0].ID, "u1", long)
	require.NoError(t, err)
	require.Equal(t, long[:maxTitleLength], renamed.Title)
}

func TestRename_ForeignOwnerLooksMissing(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMemRepo(), newMemStore())
	ctx := context.Background()

	images, err := svc.UploadBatch(ctx, "u1", []UploadFile{mkFile("a.jpg", "a")}, nil)
	require.NoError(t, err)

	_, err = svc.Rename(ctx, images[0].ID, "u2", "stolen")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Rename(ctx, "does-not-exist", "u2", "nothing")
	require.ErrorIs(t, err, ErrNotFound)
}

// --- delete ---

func TestDelete_RemovesRecordAndObject(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	store := newMemStore()
	svc := newTestService(repo, store)
	ctx := context.Background()

	images, err := svc.UploadBatch(ctx, "u1", []UploadFile{mkFile("a.jpg", "a")}, nil)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, images[0].ID, "u1"))
	require.Zero(t, store.liveCount())

	listed, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, listed)

	// Idempotent end state: a second delete reports not-found.
	require.ErrorIs(t, svc.Delete(ctx, images[0].ID, "u1"), ErrNotFound)
}

func TestDelete_ForeignOwnerLooksMissing(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMemRepo(), newMemStore())
	ctx := context.Background()

	images, err := svc.UploadBatch(ctx, "u1", []UploadFile{mkFile("a.jpg", "a")}, nil)
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(ctx, images[0].ID, "u2"), ErrNotFound)

	// The record and its object are untouched.
	listed, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
}

func TestDelete_StorageFailureStillSucceeds(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	store := newMemStore()
	svc := newTestService(repo, store)
	ctx := context.Background()

	images, err := svc.UploadBatch(ctx, "u1", []UploadFile{mkFile("a.jpg", "a")}, nil)
	require.NoError(t, err)

	store.removeErr = errors.New("storage down")

	// Record removal wins over storage hygiene: the caller sees success and
	// the record is gone, leaving only an orphaned object.
	require.NoError(t, svc.Delete(ctx, images[0].ID, "u1"))

	listed, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, listed)
	require.Equal(t, 1, store.liveCount())
}

func TestDelete_ConcurrentExactlyOneWins(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMemRepo(), newMemStore())
	ctx := context.Background()

	images, err := svc.UploadBatch(ctx, "u1", []UploadFile{mkFile("a.jpg", "a")}, nil)
	require.NoError(t, err)

	const callers = 20
	results := make(chan error, callers)
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- svc.Delete(ctx, images[0].ID, "u1")
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
		} else {
			require.ErrorIs(t, err, ErrNotFound)
		}
	}
	require.Equal(t, 1, wins)
}

// --- reorder ---

func TestReorder_ChangesListingOrder(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMemRepo(), newMemStore())
	ctx := context.Background()

	images, err := svc.UploadBatch(ctx, "u1",
		[]UploadFile{mkFile("a.jpg", "a"), mkFile("b.jpg", "b")}, []string{"a", "b"})
	require.NoError(t, err)
	a, b := images[0], images[1]

	err = svc.Reorder(ctx, "u1", []OrderUpdate{{ID: a.ID, Order: 5}, {ID: b.ID, Order: 2}})
	require.NoError(t, err)

	listed, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, b.ID, listed[0].ID)
	require.Equal(t, a.ID, listed[1].ID)
}

func TestReorder_SkipsForeignAndUnknownIDs(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMemRepo(), newMemStore())
	ctx := context.Background()

	mine, err := svc.UploadBatch(ctx, "u1", []UploadFile{mkFile("a.jpg", "a")}, nil)
	require.NoError(t, err)
	theirs, err := svc.UploadBatch(ctx, "u2", []UploadFile{mkFile("b.jpg", "b")}, nil)
	require.NoError(t, err)

	err = svc.Reorder(ctx, "u1", []OrderUpdate{
		{ID: mine[0].ID, Order: 7},
		{ID: theirs[0].ID, Order: 9},
		{ID: "ghost", Order: 1},
	})
	require.NoError(t, err)

	listed, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 7, listed[0].Order)

	// The other user's ordering is untouched.
	other, err := svc.List(ctx, "u2")
	require.NoError(t, err)
	require.Equal(t, 0, other[0].Order)
}
