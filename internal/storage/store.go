// Package storage reads input extracts and writes cleaned outputs.
package storage

import (
	"context"
	"errors"
	"io"

	"github.com/ThiagoRGoveia/epi-cleaning/internal/models"
)

var ErrNotFound = errors.New("object not found")

// ObjectStore is a flat key space of objects, a bucket or a local directory.
type ObjectStore interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	List(ctx context.Context, prefix string) ([]models.FileInfo, error)
}
