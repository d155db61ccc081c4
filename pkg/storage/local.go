package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const metaFile = ".meta.json"

// LocalArchive implements Archive using the local filesystem. Each batch
// gets its own directory holding the file and a metadata document.
type LocalArchive struct {
	basePath string
	now      func() time.Time
}

// NewLocalArchive creates the archive root if needed.
func NewLocalArchive(basePath string) (*LocalArchive, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalArchive{basePath: basePath, now: time.Now}, nil
}

// Put stores the file and returns its metadata. Archiving twice under the
// same batch id replaces the earlier file.
func (s *LocalArchive) Put(ctx context.Context, batchID uuid.UUID, filename, contentType string, r io.Reader) (*FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := filepath.Join(s.basePath, batchID.String())
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("failed to reset batch directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create batch directory: %w", err)
	}

	stored := sanitizeFilename(filename)
	if stored == "" {
		stored = "upload"
	}
	filePath := filepath.Join(dir, stored)

	f, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(filePath)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	info := &FileInfo{
		BatchID:     batchID,
		Name:        filename,
		Size:        size,
		ContentType: contentType,
		Path:        filepath.Join(batchID.String(), stored),
		CreatedAt:   s.now().UTC(),
	}

	if err := s.saveMetadata(dir, info); err != nil {
		os.Remove(filePath)
		return nil, err
	}
	return info, nil
}

// Open returns the archived file of batchID.
func (s *LocalArchive) Open(ctx context.Context, batchID uuid.UUID) (io.ReadCloser, *FileInfo, error) {
	info, err := s.Info(ctx, batchID)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(filepath.Join(s.basePath, info.Path))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, info, nil
}

// Info returns metadata for batchID.
func (s *LocalArchive) Info(_ context.Context, batchID uuid.UUID) (*FileInfo, error) {
	data, err := os.ReadFile(filepath.Join(s.basePath, batchID.String(), metaFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, batchID)
		}
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var info FileInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &info, nil
}

// List returns every archived file, newest first.
func (s *LocalArchive) List(ctx context.Context) ([]*FileInfo, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list archive: %w", err)
	}

	files := make([]*FileInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, err := uuid.Parse(entry.Name())
		if err != nil {
			continue
		}
		info, err := s.Info(ctx, id)
		if err != nil {
			continue
		}
		files = append(files, info)
	}

	sort.SliceStable(files, func(i, j int) bool { return files[i].CreatedAt.After(files[j].CreatedAt) })
	return files, nil
}

// Delete removes the batch directory.
func (s *LocalArchive) Delete(ctx context.Context, batchID uuid.UUID) error {
	if _, err := s.Info(ctx, batchID); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(s.basePath, batchID.String())); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (s *LocalArchive) saveMetadata(dir string, info *FileInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metaFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// sanitizeFilename removes unsafe characters from filenames
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	replacer := strings.NewReplacer(
		"..", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	name = replacer.Replace(name)
	if name == metaFile {
		name = "_" + name
	}
	return name
}
