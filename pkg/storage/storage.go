// Package storage archives uploaded price-list files under the id of the
// import batch they produced.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for an unknown batch id.
var ErrNotFound = errors.New("archived file not found")

// FileInfo contains metadata about an archived file
type FileInfo struct {
	BatchID     uuid.UUID `json:"batch_id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Path        string    `json:"path"` // relative to the archive root
	CreatedAt   time.Time `json:"created_at"`
}

// Archive stores one source file per import batch.
type Archive interface {
	// Put stores r as the source file of batchID.
	Put(ctx context.Context, batchID uuid.UUID, filename, contentType string, r io.Reader) (*FileInfo, error)

	// Open returns the archived file of batchID.
	Open(ctx context.Context, batchID uuid.UUID) (io.ReadCloser, *FileInfo, error)

	// Info returns metadata without opening the file.
	Info(ctx context.Context, batchID uuid.UUID) (*FileInfo, error)

	// List returns every archived file, newest first.
	List(ctx context.Context) ([]*FileInfo, error)

	// Delete removes the archived file of batchID.
	Delete(ctx context.Context, batchID uuid.UUID) error
}
