package storage

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"clubmedia/internal/storage"
)

// FileStorage интерфейс для работы с файловым хранилищем
type FileStorage interface {
	Save(ctx context.Context, file *multipart.FileHeader, subPath string) (filePath string, fileSize int64, err error)
	SaveReader(ctx context.Context, src io.Reader, subPath, filename string) (filePath string, fileSize int64, err error)
	Open(relativePath string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, filePath string) error
	GetFullPath(relativePath string) string
	URL(relativePath string) string
	BaseURL() string
	GetBaseDir() string
}

// LocalFileStorage реализация для локальной файловой системы
type LocalFileStorage struct {
	baseDir string // Базовый каталог для хранения (например: "./uploads")
	baseURL string // Базовый URL для доступа к файлам (например: "http://localhost:8080/uploads")
	maxSize int64  // Максимальный размер одного файла, 0 - без ограничения
}

func NewLocalFileStorage(baseDir, baseURL string, maxSize int64) (*LocalFileStorage, error) {
	// Создаем директорию, если она не существует
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}

	return &LocalFileStorage{
		baseDir: baseDir,
		baseURL: strings.TrimRight(baseURL, "/"),
		maxSize: maxSize,
	}, nil
}

// Save сохраняет загруженный через multipart файл
func (s *LocalFileStorage) Save(ctx context.Context, file *multipart.FileHeader, subPath string) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	if s.maxSize > 0 && file.Size > s.maxSize {
		return "", 0, storage.ErrFileTooLarge
	}

	src, err := file.Open()
	if err != nil {
		return "", 0, fmt.Errorf("failed to open source file: %w", err)
	}
	defer src.Close()

	return s.SaveReader(ctx, src, subPath, file.Filename)
}

// SaveReader копирует содержимое src в файл subPath/filename.
// Копирование прерывается при отмене контекста, частично записанный файл удаляется.
func (s *LocalFileStorage) SaveReader(ctx context.Context, src io.Reader, subPath, filename string) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	name := filepath.Base(filepath.Clean("/" + filename))
	if name == "/" || name == "." {
		return "", 0, fmt.Errorf("invalid file name %q", filename)
	}

	filePath := filepath.Join(s.baseDir, subPath, name)

	select {
	case <-ctx.Done():
		return "", 0, ctx.Err()
	default:
		if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
			return "", 0, fmt.Errorf("failed to create directories: %w", err)
		}
	}

	// Создаем целевой файл
	dst, err := os.Create(filePath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create destination file: %w", err)
	}
	defer dst.Close()

	reader := src
	if s.maxSize > 0 {
		reader = io.LimitReader(src, s.maxSize+1)
	}

	done := make(chan struct{})
	var size int64
	var copyErr error

	go func() {
		size, copyErr = io.Copy(dst, reader)
		close(done)
	}()

	select {
	case <-done:
		if copyErr != nil {
			_ = os.Remove(filePath)
			return "", 0, fmt.Errorf("failed to copy file: %w", copyErr)
		}
		if s.maxSize > 0 && size > s.maxSize {
			_ = os.Remove(filePath)
			return "", 0, storage.ErrFileTooLarge
		}
	case <-ctx.Done():
		_ = os.Remove(filePath)
		return "", 0, ctx.Err()
	}

	return filepath.Join(subPath, name), size, nil
}

// Open открывает сохраненный файл на чтение и возвращает его размер
func (s *LocalFileStorage) Open(relativePath string) (io.ReadCloser, int64, error) {
	f, err := os.Open(s.GetFullPath(relativePath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, storage.ErrFileNotFound
		}
		return nil, 0, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}

	return f, info.Size(), nil
}

// Delete удаляет файл из хранилища
// Delete удаляет файл и опустевшие после этого каталоги внутри baseDir
func (s *LocalFileStorage) Delete(ctx context.Context, filePath string) error {
	fullPath := filepath.Join(s.baseDir, filePath)
	if err := os.Remove(fullPath); err != nil {
		return err
	}

	base := filepath.Clean(s.baseDir)
	for dir := filepath.Dir(fullPath); dir != base && strings.HasPrefix(dir, base); dir = filepath.Dir(dir) {
		if os.Remove(dir) != nil {
			break
		}
	}

	return nil
}

// GetFullPath возвращает полный путь к файлу на диске
func (s *LocalFileStorage) GetFullPath(relativePath string) string {
	return filepath.Join(s.baseDir, relativePath)
}

// URL возвращает публичный адрес файла
func (s *LocalFileStorage) URL(relativePath string) string {
	segments := strings.Split(filepath.ToSlash(relativePath), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.baseURL + path.Clean("/"+strings.Join(segments, "/"))
}

// BaseURL возвращает базовый URL для доступа к файлам
func (s *LocalFileStorage) BaseURL() string {
	return s.baseURL
}

func (s *LocalFileStorage) GetBaseDir() string {
	return s.baseDir
}
