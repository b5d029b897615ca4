package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
)

// ErrNotImage файл не является поддерживаемым изображением.
var ErrNotImage = errors.New("storage: файл не является изображением jpeg, png, gif или webp")

// ErrTooLarge файл превышает лимит загрузки.
var ErrTooLarge = errors.New("storage: размер файла превышает лимит")

// ErrFileNotFound файла нет в каталоге владельца.
var ErrFileNotFound = errors.New("storage: файл не найден")

// sniffLen сколько байт нужно filetype для определения типа.
const sniffLen = 261

var allowedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// ImageStorage хранит изображения доказательств к запросам возврата на диске.
type ImageStorage struct {
	rootPath       string
	publicPrefix   string
	maxUploadBytes int64
}

// NewImageStorage создаёт хранилище в rootPath. publicPrefix добавляется к относительному пути в ответах.
func NewImageStorage(rootPath, publicPrefix string, maxUploadMB int64) (*ImageStorage, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог %s: %w", rootPath, err)
	}

	return &ImageStorage{
		rootPath:       rootPath,
		publicPrefix:   publicPrefix,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
	}, nil
}

// Root каталог, из которого раздаются сохранённые файлы.
func (s *ImageStorage) Root() string {
	return s.rootPath
}

// SaveImage проверяет сигнатуру файла и сохраняет его под случайным именем с расширением реального типа.
// Возвращает публичный путь.
func (s *ImageStorage) SaveImage(ctx context.Context, ownerID uuid.UUID, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("storage: чтение файла: %w", err)
	}
	head = head[:n]

	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown || !allowedMimeTypes[kind.MIME.Value] {
		return "", ErrNotImage
	}

	dir := filepath.Join(s.rootPath, ownerID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage: не удалось создать каталог пользователя: %w", err)
	}

	fileName := uuid.NewString() + "." + kind.Extension
	targetPath := filepath.Join(dir, fileName)
	tempPath := targetPath + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return "", fmt.Errorf("storage: не удалось создать файл: %w", err)
	}
	defer f.Close()

	limited := io.LimitedReader{R: io.MultiReader(bytes.NewReader(head), r), N: s.maxUploadBytes + 1}
	written, err := io.Copy(f, &limited)
	if err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("storage: ошибка записи файла: %w", err)
	}
	if written > s.maxUploadBytes {
		_ = os.Remove(tempPath)
		return "", ErrTooLarge
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("storage: ошибка закрытия файла: %w", err)
	}
	if err := os.Rename(tempPath, targetPath); err != nil {
		return "", fmt.Errorf("storage: не удалось переименовать файл: %w", err)
	}

	return path.Join(s.publicPrefix, ownerID.String(), fileName), nil
}

// Locate путь на диске к сохранённому файлу владельца. Каталоги, временные файлы
// и имена с переходом по пути не отдаются.
func (s *ImageStorage) Locate(ctx context.Context, ownerID uuid.UUID, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") {
		return "", ErrFileNotFound
	}

	full := filepath.Join(s.rootPath, ownerID.String(), name)
	info, err := os.Stat(full)
	if err != nil || !info.Mode().IsRegular() {
		return "", ErrFileNotFound
	}
	return full, nil
}

// Delete удаляет файл по публичному пути. Отсутствующий файл не ошибка.
func (s *ImageStorage) Delete(ctx context.Context, publicPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rel, err := filepath.Rel(s.publicPrefix, filepath.FromSlash(publicPath))
	if err != nil || filepath.IsAbs(rel) || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("storage: путь %q вне хранилища", publicPath)
	}

	if err := os.Remove(filepath.Join(s.rootPath, rel)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: не удалось удалить файл: %w", err)
	}
	return nil
}
