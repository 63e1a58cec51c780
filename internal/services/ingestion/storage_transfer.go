package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"clubmedia/internal/domain/models"
	"clubmedia/internal/lib/logger/sl"
	storage "clubmedia/internal/storage/filestorage"

	"github.com/google/uuid"
)

// StorageTransfer копирует подготовленные файлы в каталог фотографий файлового хранилища.
// SourceURI изображения трактуется как путь относительно хранилища.
// Прогресс считается по байтам, если размеры всех изображений известны, иначе по количеству файлов.
type StorageTransfer struct {
	log   *slog.Logger
	files storage.FileStorage
	dir   string
}

func NewStorageTransfer(log *slog.Logger, files storage.FileStorage, dir string) *StorageTransfer {
	return &StorageTransfer{
		log:   log,
		files: files,
		dir:   dir,
	}
}

func (t *StorageTransfer) Transfer(ctx context.Context, assets []models.PendingAsset, onProgress ProgressFunc) ([]TransferResult, error) {
	const op = "ingestion.StorageTransfer.Transfer"

	log := t.log.With(
		slog.String("op", op),
		slog.Int("assets", len(assets)),
	)

	if onProgress == nil {
		onProgress = func(int) {}
	}

	var totalBytes int64
	byBytes := true
	for _, a := range assets {
		if a.SizeBytes == nil || *a.SizeBytes <= 0 {
			byBytes = false
			break
		}
		totalBytes += *a.SizeBytes
	}

	var done int64
	stored := make([]string, 0, len(assets))
	results := make([]TransferResult, 0, len(assets))

	rollback := func() {
		for _, p := range stored {
			if err := t.files.Delete(context.Background(), p); err != nil {
				log.Warn("failed to roll back stored file", slog.String("path", p), sl.Err(err))
			}
		}
	}

	for i, a := range assets {
		src, _, err := t.files.Open(a.SourceURI)
		if err != nil {
			rollback()
			return nil, fmt.Errorf("%s: open %s: %w", op, a.SourceURI, err)
		}

		var reader io.Reader = src
		if byBytes {
			base := done
			reader = &countingReader{r: src, onRead: func(n int64) {
				onProgress(int((base + n) * 100 / totalBytes))
			}}
		}

		name := uuid.New().String() + strings.ToLower(filepath.Ext(a.SourceURI))
		path, size, err := t.files.SaveReader(ctx, reader, t.dir, name)
		src.Close()
		if err != nil {
			rollback()
			return nil, fmt.Errorf("%s: store %s: %w", op, a.SourceURI, err)
		}
		stored = append(stored, path)

		if byBytes {
			done += *a.SizeBytes
		} else {
			onProgress((i + 1) * 100 / len(assets))
		}

		results = append(results, TransferResult{
			LocalID:   a.LocalID,
			URI:       t.files.URL(path),
			SizeBytes: &size,
		})
	}

	// исходные файлы больше не нужны, ошибки удаления не влияют на результат
	for _, a := range assets {
		if err := t.files.Delete(ctx, a.SourceURI); err != nil {
			log.Warn("failed to remove staged file", slog.String("path", a.SourceURI), sl.Err(err))
		}
	}

	log.Info("assets stored", slog.Int("stored", len(stored)))
	return results, nil
}

type countingReader struct {
	r      io.Reader
	n      int64
	onRead func(total int64)
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.n += int64(n)
		c.onRead(c.n)
	}
	return n, err
}
