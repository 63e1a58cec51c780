package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"clubmedia/internal/domain/models"
	"clubmedia/internal/lib/logger/sl"
	"clubmedia/internal/services/ingestion"
	"clubmedia/internal/storage"
	filestorage "clubmedia/internal/storage/filestorage"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	_ "golang.org/x/image/webp"
)

var ErrNoFiles = errors.New("no files to upload")

// sniffLen столько байт читается для определения типа файла
const sniffLen = 3072

// Catalog принимает готовые фотографии
type Catalog interface {
	Merge(photos []models.Photo) error
}

type Config struct {
	Pipeline      ingestion.Config
	SessionTTL    time.Duration
	StagingDir    string
	CommitTimeout time.Duration
}

// Status состояние сессии загрузки пользователя
type Status struct {
	State     ingestion.State `json:"state"`
	Progress  int             `json:"progress"`
	Pending   int             `json:"pending"`
	Committed int             `json:"committed"`
	LastError string          `json:"last_error,omitempty"`
}

type session struct {
	pipeline *ingestion.Pipeline
	library  *ingestion.InboxSource
	camera   *ingestion.InboxSource

	// stageMu упорядочивает загрузку файлов, mu защищает состояние коммита
	stageMu    sync.Mutex
	mu         sync.Mutex
	committing bool
	committed  int
	lastErr    error
}

func (s *session) inbox(kind models.SourceKind) *ingestion.InboxSource {
	switch kind {
	case models.SourceLibrary:
		return s.library
	case models.SourceCamera:
		return s.camera
	}
	return nil
}

// UploadService связывает HTTP-загрузки с конвейером приема: у каждого пользователя своя сессия
// (конвейер и подготовленные файлы), сессии без активности удаляются через SessionTTL.
type UploadService struct {
	log        *slog.Logger
	cfg        Config
	files      filestorage.FileStorage
	perms      ingestion.PermissionSource
	transferer ingestion.Transferer
	catalog    Catalog

	mu       sync.Mutex
	sessions *cache.Cache
	wg       sync.WaitGroup
}

func NewUploadService(
	log *slog.Logger,
	cfg Config,
	files filestorage.FileStorage,
	perms ingestion.PermissionSource,
	transferer ingestion.Transferer,
	catalog Catalog,
) (*UploadService, error) {
	const op = "upload_service.New"

	if cfg.StagingDir == "" {
		cfg.StagingDir = "staging"
	}
	if cfg.CommitTimeout <= 0 {
		cfg.CommitTimeout = 5 * time.Minute
	}

	// проверяем конфигурацию конвейера сразу, а не при первом запросе
	if _, err := ingestion.New(log, cfg.Pipeline, perms, ingestion.Sources{}, transferer); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s := &UploadService{
		log:        log,
		cfg:        cfg,
		files:      files,
		perms:      perms,
		transferer: transferer,
		catalog:    catalog,
		sessions:   cache.New(cfg.SessionTTL, cfg.SessionTTL),
	}

	// файлы из снимка идущего переноса конвейер освободит сам, когда перенос завершится
	s.sessions.OnEvicted(func(userID string, v interface{}) {
		v.(*session).pipeline.Clear()
		s.log.Debug("upload session evicted", slog.String("user_id", userID))
	})

	return s, nil
}

// Stage сохраняет файлы во временный каталог, запрашивает источник и добавляет изображения в очередь.
// Файлы, не попавшие в очередь, удаляются.
func (s *UploadService) Stage(
	ctx context.Context,
	user models.UserRef,
	kind models.SourceKind,
	files []*multipart.FileHeader,
) ([]models.PendingAsset, error) {
	const op = "upload_service.Stage"

	log := s.log.With(
		slog.String("op", op),
		slog.String("user_id", user.ID.String()),
		slog.String("source", string(kind)),
	)

	if len(files) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNoFiles)
	}

	sess, err := s.session(user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	inbox := sess.inbox(kind)
	if inbox == nil {
		return nil, fmt.Errorf("%s: %w: %q", op, ingestion.ErrUnknownSource, kind)
	}

	sess.stageMu.Lock()
	defer sess.stageMu.Unlock()

	staged := make([]string, 0, len(files))
	raws := make([]models.RawAsset, 0, len(files))
	for _, fh := range files {
		raw, err := s.stageFile(ctx, user, fh)
		if err != nil {
			log.Warn("failed to stage file", slog.String("filename", fh.Filename), sl.Err(err))
			s.deleteStaged(staged)
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		staged = append(staged, raw.URI)
		raws = append(raws, raw)
	}

	inbox.Stage(raws...)

	picked, err := sess.pipeline.RequestSource(ctx, kind)
	if err != nil {
		_, _ = inbox.Pick(context.Background(), true)
		s.deleteStaged(staged)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	added, err := sess.pipeline.AddAssets(picked)
	if err != nil {
		s.deleteStaged(staged)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	accepted := make(map[string]struct{}, len(added))
	for _, a := range added {
		accepted[a.SourceURI] = struct{}{}
	}
	var dropped []string
	for _, p := range staged {
		if _, ok := accepted[p]; !ok {
			dropped = append(dropped, p)
		}
	}
	s.deleteStaged(dropped)

	log.Info("files staged", slog.Int("accepted", len(added)), slog.Int("dropped", len(dropped)))

	return sess.pipeline.Pending(), nil
}

func (s *UploadService) Pending(user models.UserRef) ([]models.PendingAsset, error) {
	sess, err := s.session(user)
	if err != nil {
		return nil, err
	}
	return sess.pipeline.Pending(), nil
}

func (s *UploadService) Remove(user models.UserRef, localID int64) error {
	sess, err := s.session(user)
	if err != nil {
		return err
	}
	sess.pipeline.RemoveAsset(localID)
	return nil
}

func (s *UploadService) Clear(user models.UserRef) error {
	sess, err := s.session(user)
	if err != nil {
		return err
	}
	sess.pipeline.Clear()
	return nil
}

// Commit синхронно переносит очередь пользователя и добавляет фотографии в каталог
func (s *UploadService) Commit(ctx context.Context, user models.UserRef, in ingestion.CommitInput) ([]models.Photo, error) {
	const op = "upload_service.Commit"

	sess, err := s.session(user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.beginCommit(sess); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	photos, err := s.commit(ctx, sess, user, in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return photos, nil
}

// StartCommit запускает перенос в фоне; ход выполнения доступен через Status
func (s *UploadService) StartCommit(user models.UserRef, in ingestion.CommitInput) error {
	const op = "upload_service.StartCommit"

	sess, err := s.session(user)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.beginCommit(sess); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CommitTimeout)
		defer cancel()

		_, _ = s.commit(ctx, sess, user, in)
	}()

	return nil
}

func (s *UploadService) Status(user models.UserRef) (Status, error) {
	sess, err := s.session(user)
	if err != nil {
		return Status{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	st := Status{
		State:     sess.pipeline.State(),
		Progress:  sess.pipeline.Progress(),
		Pending:   len(sess.pipeline.Pending()),
		Committed: sess.committed,
	}
	if sess.committing {
		st.State = ingestion.StateTransferring
	}
	if sess.lastErr != nil {
		st.LastError = sess.lastErr.Error()
	}

	return st, nil
}

// Wait дожидается завершения всех фоновых переносов
func (s *UploadService) Wait() {
	s.wg.Wait()
}

func (s *UploadService) beginCommit(sess *session) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.committing || sess.pipeline.State() == ingestion.StateTransferring {
		return ingestion.ErrAlreadyInProgress
	}
	if len(sess.pipeline.Pending()) == 0 {
		return ingestion.ErrEmptyPending
	}

	sess.committing = true
	sess.lastErr = nil

	return nil
}

func (s *UploadService) commit(ctx context.Context, sess *session, user models.UserRef, in ingestion.CommitInput) ([]models.Photo, error) {
	const op = "upload_service.commit"

	log := s.log.With(
		slog.String("op", op),
		slog.String("user_id", user.ID.String()),
	)

	in.Uploader = user

	photos, err := sess.pipeline.Commit(ctx, in, nil)
	if err == nil {
		err = s.catalog.Merge(photos)
	}

	sess.mu.Lock()
	sess.committing = false
	sess.lastErr = err
	if err == nil {
		sess.committed += len(photos)
	}
	sess.mu.Unlock()

	if err != nil {
		log.Error("commit failed", sl.Err(err))
		return nil, err
	}

	log.Info("photos committed", slog.Int("photos", len(photos)))
	return photos, nil
}

func (s *UploadService) session(user models.UserRef) (*session, error) {
	key := user.ID.String()

	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.sessions.Get(key); ok {
		sess := v.(*session)
		s.sessions.SetDefault(key, sess)
		return sess, nil
	}

	// Get не видит истекшую сессию, которую еще не убрал janitor, а SetDefault не вызывает OnEvicted
	s.sessions.DeleteExpired()

	library := ingestion.NewInboxSource()
	camera := ingestion.NewInboxSource()

	cfg := s.cfg.Pipeline
	cfg.Discard = func(assets []models.PendingAsset) {
		paths := make([]string, 0, len(assets))
		for _, a := range assets {
			paths = append(paths, a.SourceURI)
		}
		s.deleteStaged(paths)
	}

	pipeline, err := ingestion.New(
		s.log.With(slog.String("user_id", key)),
		cfg,
		s.perms,
		ingestion.Sources{Library: library, Camera: camera},
		s.transferer,
	)
	if err != nil {
		return nil, err
	}

	sess := &session{pipeline: pipeline, library: library, camera: camera}
	s.sessions.SetDefault(key, sess)

	return sess, nil
}

func (s *UploadService) stageFile(ctx context.Context, user models.UserRef, fh *multipart.FileHeader) (models.RawAsset, error) {
	src, err := fh.Open()
	if err != nil {
		return models.RawAsset{}, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(src, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return models.RawAsset{}, fmt.Errorf("failed to read uploaded file: %w", err)
	}
	head = head[:n]

	mime := mimetype.Detect(head)
	if !strings.HasPrefix(mime.String(), "image/") {
		return models.RawAsset{}, fmt.Errorf("%w: %s", storage.ErrInvalidFileType, mime.String())
	}

	// отдельный каталог на каждый файл сохраняет исходное имя, из него строится название фотографии
	dir := filepath.Join(s.cfg.StagingDir, user.ID.String(), uuid.New().String())
	name := stagedName(fh.Filename, mime.Extension())

	path, size, err := s.files.SaveReader(ctx, io.MultiReader(bytes.NewReader(head), src), dir, name)
	if err != nil {
		return models.RawAsset{}, err
	}

	raw := models.RawAsset{URI: path, SizeBytes: &size}
	raw.Width, raw.Height = s.dimensions(path)

	return raw, nil
}

func stagedName(original, ext string) string {
	base := filepath.Base(filepath.Clean("/" + filepath.ToSlash(original)))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if strings.TrimSpace(base) == "" || base == "/" || base == "." {
		base = "image"
	}
	return base + ext
}

// dimensions читает размеры из заголовка изображения, для неизвестных форматов возвращает нули
func (s *UploadService) dimensions(path string) (int, int) {
	rc, _, err := s.files.Open(path)
	if err != nil {
		return 0, 0
	}
	defer rc.Close()

	cfg, _, err := image.DecodeConfig(rc)
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

func (s *UploadService) deleteStaged(paths []string) {
	for _, p := range paths {
		if err := s.files.Delete(context.Background(), p); err != nil {
			s.log.Warn("failed to delete staged file", slog.String("path", p), sl.Err(err))
		}
	}
}
