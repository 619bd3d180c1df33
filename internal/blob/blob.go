// Package blob stores the files uploaded with documents and returns the
// reference persisted on the document record.
package blob

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/nebari-dev/docshelf/internal/config"
)

// Store writes and removes uploaded files.
type Store interface {
	// Put stores body and returns a reference (a local path or an s3:// URL).
	Put(ctx context.Context, filename string, body io.Reader, contentType string) (string, error)
	// Delete removes the object behind ref. Deleting a missing object is not an error.
	Delete(ctx context.Context, ref string) error
}

// New creates the store selected by configuration.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "local", "":
		return NewLocalStore(cfg.UploadDir)
	case "s3":
		return NewS3Store(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s (supported: local, s3)", cfg.Backend)
	}
}

// objectKey derives a collision-free key that keeps the upload's extension.
func objectKey(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) > 16 || strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	return uuid.NewString() + ext
}
