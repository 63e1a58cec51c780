package services

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"os"
	"path/filepath"
	"testing"
	"time"

	"clubmedia/internal/domain/models"
	"clubmedia/internal/lib/logger/handlers/slogdiscard"
	"clubmedia/internal/services/catalog"
	"clubmedia/internal/services/ingestion"
	"clubmedia/internal/storage"
	filestorage "clubmedia/internal/storage/filestorage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUser = models.UserRef{ID: uuid.MustParse("3f1e0c2a-9b8d-4e7f-a6b5-000000000042"), Name: "Lucía"}

type fixture struct {
	svc     *UploadService
	files   *filestorage.LocalFileStorage
	catalog *catalog.Store
	dir     string
}

func newFixture(t *testing.T, perms ingestion.PermissionSource, transferer ingestion.Transferer, maxAssets int) *fixture {
	t.Helper()

	dir := t.TempDir()
	files, err := filestorage.NewLocalFileStorage(dir, "/uploads", 1<<20)
	require.NoError(t, err)

	log := slogdiscard.NewDiscardLogger()
	store := catalog.New(log, "es")

	if transferer == nil {
		sim := ingestion.NewSimulatedTransfer(4, 0)
		sim.ResolveURI = files.URL
		transferer = sim
	}

	svc, err := NewUploadService(log, Config{
		Pipeline:   ingestion.Config{MaxAssets: maxAssets, AllowMultiple: true},
		SessionTTL: time.Hour,
	}, files, perms, transferer, store)
	require.NoError(t, err)

	return &fixture{svc: svc, files: files, catalog: store, dir: dir}
}

func allowAll() ingestion.PermissionSource {
	return ingestion.PolicyPermissions{Library: true, Camera: true}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 200, A: 255})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// fileHeaders собирает multipart-форму и возвращает заголовки файлов поля files
func fileHeaders(t *testing.T, contents map[string][]byte) []*multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, data := range contents {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	form, err := multipart.NewReader(&body, mw.Boundary()).ReadForm(10 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })

	return form.File["files"]
}

func stagedFiles(t *testing.T, f *fixture) []string {
	t.Helper()

	matches, err := filepath.Glob(filepath.Join(f.dir, "staging", testUser.ID.String(), "*", "*"))
	require.NoError(t, err)
	return matches
}

func TestStage_AcceptsImages(t *testing.T) {
	f := newFixture(t, allowAll(), nil, 5)

	pending, err := f.svc.Stage(context.Background(), testUser, models.SourceLibrary,
		fileHeaders(t, map[string][]byte{"cancha.png": pngBytes(t, 64, 48)}))
	require.NoError(t, err)
	require.Len(t, pending, 1)

	assert.Equal(t, 64, pending[0].Width)
	assert.Equal(t, 48, pending[0].Height)
	require.NotNil(t, pending[0].SizeBytes)
	assert.Positive(t, *pending[0].SizeBytes)
	assert.Equal(t, "cancha.png", filepath.Base(pending[0].SourceURI))

	assert.Len(t, stagedFiles(t, f), 1)
}

func TestStage_RejectsNonImages(t *testing.T) {
	f := newFixture(t, allowAll(), nil, 5)

	_, err := f.svc.Stage(context.Background(), testUser, models.SourceLibrary,
		fileHeaders(t, map[string][]byte{"notas.txt": []byte("no es una imagen")}))
	require.ErrorIs(t, err, storage.ErrInvalidFileType)

	pending, err := f.svc.Pending(testUser)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Empty(t, stagedFiles(t, f))
}

func TestStage_NoFiles(t *testing.T) {
	f := newFixture(t, allowAll(), nil, 5)

	_, err := f.svc.Stage(context.Background(), testUser, models.SourceLibrary, nil)
	assert.ErrorIs(t, err, ErrNoFiles)
}

func TestStage_UnknownSource(t *testing.T) {
	f := newFixture(t, allowAll(), nil, 5)

	_, err := f.svc.Stage(context.Background(), testUser, models.SourceKind("drone"),
		fileHeaders(t, map[string][]byte{"a.png": pngBytes(t, 2, 2)}))
	assert.ErrorIs(t, err, ingestion.ErrUnknownSource)
}

func TestStage_PermissionDeniedRemovesFiles(t *testing.T) {
	f := newFixture(t, ingestion.PolicyPermissions{Library: true}, nil, 5)

	_, err := f.svc.Stage(context.Background(), testUser, models.SourceCamera,
		fileHeaders(t, map[string][]byte{"foto.png": pngBytes(t, 8, 8)}))
	require.ErrorIs(t, err, ingestion.ErrPermissionDenied)

	assert.Empty(t, stagedFiles(t, f))

	// отклоненные файлы не должны всплыть при следующем разрешенном запросе
	pending, err := f.svc.Stage(context.Background(), testUser, models.SourceLibrary,
		fileHeaders(t, map[string][]byte{"ok.png": pngBytes(t, 8, 8)}))
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestStage_QuotaExceededKeepsPending(t *testing.T) {
	f := newFixture(t, allowAll(), nil, 2)

	_, err := f.svc.Stage(context.Background(), testUser, models.SourceLibrary,
		fileHeaders(t, map[string][]byte{"a.png": pngBytes(t, 4, 4)}))
	require.NoError(t, err)

	_, err = f.svc.Stage(context.Background(), testUser, models.SourceLibrary,
		fileHeaders(t, map[string][]byte{
			"b.png": pngBytes(t, 4, 4),
			"c.png": pngBytes(t, 4, 4),
		}))
	require.ErrorIs(t, err, ingestion.ErrQuotaExceeded)

	pending, err := f.svc.Pending(testUser)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Len(t, stagedFiles(t, f), 1)
}

func TestRemoveAndClear_DeleteStagedFiles(t *testing.T) {
	f := newFixture(t, allowAll(), nil, 5)

	pending, err := f.svc.Stage(context.Background(), testUser, models.SourceLibrary,
		fileHeaders(t, map[string][]byte{
			"a.png": pngBytes(t, 4, 4),
			"b.png": pngBytes(t, 4, 4),
		}))
	require.NoError(t, err)
	require.Len(t, pending, 2)

	require.NoError(t, f.svc.Remove(testUser, pending[0].LocalID))
	assert.Len(t, stagedFiles(t, f), 1)

	require.NoError(t, f.svc.Clear(testUser))
	assert.Empty(t, stagedFiles(t, f))

	left, err := f.svc.Pending(testUser)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestCommit_MergesIntoCatalog(t *testing.T) {
	f := newFixture(t, allowAll(), nil, 5)
	team := models.TeamRef{ID: uuid.New(), Name: "Rugby"}

	pending, err := f.svc.Stage(context.Background(), testUser, models.SourceLibrary,
		fileHeaders(t, map[string][]byte{"scrum.png": pngBytes(t, 4, 4)}))
	require.NoError(t, err)

	photos, err := f.svc.Commit(context.Background(), testUser, ingestion.CommitInput{
		Team:     team,
		Category: models.CategoryMatch,
		Tags:     []string{"rugby"},
	})
	require.NoError(t, err)
	require.Len(t, photos, 1)

	assert.Equal(t, f.files.URL(pending[0].SourceURI), photos[0].URI)
	assert.Equal(t, "scrum", photos[0].Title)
	assert.Equal(t, testUser, photos[0].Uploader)
	assert.Equal(t, team, photos[0].Team)
	assert.Equal(t, 1, f.catalog.Len())

	st, err := f.svc.Status(testUser)
	require.NoError(t, err)
	assert.Equal(t, ingestion.StateIdle, st.State)
	assert.Equal(t, 100, st.Progress)
	assert.Equal(t, 0, st.Pending)
	assert.Equal(t, 1, st.Committed)
	assert.Empty(t, st.LastError)
}

func TestCommit_EmptyPending(t *testing.T) {
	f := newFixture(t, allowAll(), nil, 5)

	_, err := f.svc.Commit(context.Background(), testUser, ingestion.CommitInput{})
	assert.ErrorIs(t, err, ingestion.ErrEmptyPending)

	err = f.svc.StartCommit(testUser, ingestion.CommitInput{})
	assert.ErrorIs(t, err, ingestion.ErrEmptyPending)
	assert.Equal(t, 0, f.catalog.Len())
}

func TestStartCommit_RunsInBackground(t *testing.T) {
	f := newFixture(t, allowAll(), nil, 5)

	_, err := f.svc.Stage(context.Background(), testUser, models.SourceLibrary,
		fileHeaders(t, map[string][]byte{
			"a.png": pngBytes(t, 4, 4),
			"b.png": pngBytes(t, 4, 4),
		}))
	require.NoError(t, err)

	require.NoError(t, f.svc.StartCommit(testUser, ingestion.CommitInput{Team: models.TeamRef{ID: uuid.New(), Name: "Atletismo"}}))
	f.svc.Wait()

	st, err := f.svc.Status(testUser)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Committed)
	assert.Equal(t, 0, st.Pending)
	assert.Equal(t, 2, f.catalog.Len())
}

func TestCommit_FailureKeepsPending(t *testing.T) {
	sim := ingestion.NewSimulatedTransfer(4, 0)
	sim.FailAtStep = 2
	f := newFixture(t, allowAll(), sim, 5)

	_, err := f.svc.Stage(context.Background(), testUser, models.SourceLibrary,
		fileHeaders(t, map[string][]byte{"a.png": pngBytes(t, 4, 4)}))
	require.NoError(t, err)

	require.NoError(t, f.svc.StartCommit(testUser, ingestion.CommitInput{}))
	f.svc.Wait()

	st, err := f.svc.Status(testUser)
	require.NoError(t, err)
	assert.Equal(t, ingestion.StateIdle, st.State)
	assert.Equal(t, 0, st.Progress)
	assert.Equal(t, 1, st.Pending)
	assert.NotEmpty(t, st.LastError)
	assert.Equal(t, 0, f.catalog.Len())
	assert.Len(t, stagedFiles(t, f), 1)
}

func TestCommit_StorageTransferMovesFiles(t *testing.T) {
	dir := t.TempDir()
	files, err := filestorage.NewLocalFileStorage(dir, "/uploads", 1<<20)
	require.NoError(t, err)

	log := slogdiscard.NewDiscardLogger()
	store := catalog.New(log, "es")
	svc, err := NewUploadService(log, Config{
		Pipeline:   ingestion.Config{MaxAssets: 5, AllowMultiple: true},
		SessionTTL: time.Hour,
	}, files, allowAll(), ingestion.NewStorageTransfer(log, files, "photos"), store)
	require.NoError(t, err)

	_, err = svc.Stage(context.Background(), testUser, models.SourceLibrary,
		fileHeaders(t, map[string][]byte{"a.png": pngBytes(t, 4, 4)}))
	require.NoError(t, err)

	photos, err := svc.Commit(context.Background(), testUser, ingestion.CommitInput{})
	require.NoError(t, err)
	require.Len(t, photos, 1)

	moved, err := filepath.Glob(filepath.Join(dir, "photos", "*.png"))
	require.NoError(t, err)
	assert.Len(t, moved, 1)

	_, err = os.Stat(filepath.Join(dir, "staging"))
	assert.True(t, os.IsNotExist(err))

	_, err = os.Stat(moved[0])
	assert.NoError(t, err)
}

// gatedTransfer останавливает перенос до закрытия release
type gatedTransfer struct {
	next    ingestion.Transferer
	started chan struct{}
	release chan struct{}
}

func newGatedTransfer(next ingestion.Transferer) *gatedTransfer {
	return &gatedTransfer{next: next, started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedTransfer) Transfer(ctx context.Context, assets []models.PendingAsset, onProgress ingestion.ProgressFunc) ([]ingestion.TransferResult, error) {
	close(g.started)
	<-g.release
	return g.next.Transfer(ctx, assets, onProgress)
}

func TestStartCommit_RemoveDuringStorageTransfer(t *testing.T) {
	dir := t.TempDir()
	files, err := filestorage.NewLocalFileStorage(dir, "/uploads", 1<<20)
	require.NoError(t, err)

	log := slogdiscard.NewDiscardLogger()
	store := catalog.New(log, "es")
	gate := newGatedTransfer(ingestion.NewStorageTransfer(log, files, "photos"))

	svc, err := NewUploadService(log, Config{
		Pipeline:   ingestion.Config{MaxAssets: 5, AllowMultiple: true},
		SessionTTL: time.Hour,
	}, files, allowAll(), gate, store)
	require.NoError(t, err)

	f := &fixture{svc: svc, files: files, catalog: store, dir: dir}

	pending, err := svc.Stage(context.Background(), testUser, models.SourceLibrary,
		fileHeaders(t, map[string][]byte{
			"a.png": pngBytes(t, 4, 4),
			"b.png": pngBytes(t, 4, 4),
		}))
	require.NoError(t, err)
	require.Len(t, pending, 2)

	require.NoError(t, svc.StartCommit(testUser, ingestion.CommitInput{}))
	<-gate.started

	require.NoError(t, svc.Remove(testUser, pending[1].LocalID))
	assert.Len(t, stagedFiles(t, f), 2)

	close(gate.release)
	svc.Wait()

	st, err := svc.Status(testUser)
	require.NoError(t, err)
	assert.Empty(t, st.LastError)
	assert.Equal(t, 2, st.Committed)
	assert.Equal(t, 0, st.Pending)
	assert.Equal(t, 2, f.catalog.Len())
	assert.Empty(t, stagedFiles(t, f))

	stored, err := filepath.Glob(filepath.Join(dir, "photos", "*.png"))
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestSessions_ExpiredSessionReleasesStagedFiles(t *testing.T) {
	dir := t.TempDir()
	files, err := filestorage.NewLocalFileStorage(dir, "/uploads", 1<<20)
	require.NoError(t, err)

	log := slogdiscard.NewDiscardLogger()
	sim := ingestion.NewSimulatedTransfer(4, 0)
	sim.ResolveURI = files.URL

	const ttl = 100 * time.Millisecond
	svc, err := NewUploadService(log, Config{
		Pipeline:   ingestion.Config{MaxAssets: 5, AllowMultiple: true},
		SessionTTL: ttl,
	}, files, allowAll(), sim, catalog.New(log, "es"))
	require.NoError(t, err)

	f := &fixture{svc: svc, files: files, dir: dir}

	_, err = svc.Stage(context.Background(), testUser, models.SourceLibrary,
		fileHeaders(t, map[string][]byte{"a.png": pngBytes(t, 4, 4)}))
	require.NoError(t, err)
	require.Len(t, stagedFiles(t, f), 1)

	time.Sleep(3 * ttl)

	pending, err := svc.Pending(testUser)
	require.NoError(t, err)
	assert.Empty(t, pending)

	pattern := filepath.Join(dir, "staging", testUser.ID.String(), "*", "*")
	assert.Eventually(t, func() bool {
		matches, err := filepath.Glob(pattern)
		return err == nil && len(matches) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestSessions_AreIsolatedPerUser(t *testing.T) {
	f := newFixture(t, allowAll(), nil, 5)
	other := models.UserRef{ID: uuid.New(), Name: "Mateo"}

	_, err := f.svc.Stage(context.Background(), testUser, models.SourceLibrary,
		fileHeaders(t, map[string][]byte{"a.png": pngBytes(t, 4, 4)}))
	require.NoError(t, err)

	pending, err := f.svc.Pending(other)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = f.svc.Commit(context.Background(), other, ingestion.CommitInput{})
	assert.ErrorIs(t, err, ingestion.ErrEmptyPending)
}

func TestNewUploadService_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	files, err := filestorage.NewLocalFileStorage(dir, "/uploads", 0)
	require.NoError(t, err)

	log := slogdiscard.NewDiscardLogger()
	_, err = NewUploadService(log, Config{Pipeline: ingestion.Config{MaxAssets: 0}}, files,
		allowAll(), ingestion.NewSimulatedTransfer(1, 0), catalog.New(log, "es"))
	assert.ErrorIs(t, err, ingestion.ErrInvalidConfig)
}

func TestStagedName(t *testing.T) {
	tests := []struct {
		original string
		ext      string
		want     string
	}{
		{original: "cancha.JPG", ext: ".jpg", want: "cancha.jpg"},
		{original: "../../etc/gol.png", ext: ".png", want: "gol.png"},
		{original: "sin extension", ext: ".webp", want: "sin extension.webp"},
		{original: "", ext: ".png", want: "image.png"},
		{original: ".png", ext: ".png", want: "image.png"},
	}

	for _, tt := range tests {
		t.Run(tt.original, func(t *testing.T) {
			assert.Equal(t, tt.want, stagedName(tt.original, tt.ext))
		})
	}
}
