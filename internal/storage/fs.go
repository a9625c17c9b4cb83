package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ThiagoRGoveia/epi-cleaning/internal/models"
	"github.com/spf13/afero"
)

// FSStore keeps objects as files below the root of an afero filesystem.
type FSStore struct {
	fs afero.Fs
}

func NewFSStore(fs afero.Fs) *FSStore {
	return &FSStore{fs: fs}
}

// NewLocalStore serves objects from a directory on disk.
func NewLocalStore(root string) *FSStore {
	return NewFSStore(afero.NewBasePathFs(afero.NewOsFs(), root))
}

// objectPath maps a key to an absolute slash path inside the filesystem.
func objectPath(key string) string {
	return path.Clean("/" + key)
}

func (s *FSStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := s.fs.Open(objectPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to open %s: %w", key, err)
	}

	info, err := file.Stat()
	if err == nil && info.IsDir() {
		file.Close()
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, key)
	}

	return file, nil
}

func (s *FSStore) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := objectPath(key)
	if err := s.fs.MkdirAll(path.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", key, err)
	}

	if err := afero.WriteReader(s.fs, target, body); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	return nil
}

// List walks the directory holding prefix and returns every file whose key
// starts with prefix, in lexical order.
func (s *FSStore) List(ctx context.Context, prefix string) ([]models.FileInfo, error) {
	keyPrefix := strings.TrimPrefix(prefix, "/")
	root := objectPath(keyPrefix)
	if keyPrefix != "" && !strings.HasSuffix(keyPrefix, "/") {
		root = path.Dir(root)
	}

	var files []models.FileInfo
	err := afero.Walk(s.fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if info.IsDir() {
			return nil
		}

		key := strings.TrimPrefix(filepath.ToSlash(p), "/")
		if strings.HasPrefix(key, keyPrefix) {
			files = append(files, models.FileInfo{Key: key, Size: info.Size()})
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, prefix)
		}
		return nil, fmt.Errorf("error walking %s: %w", prefix, err)
	}

	return files, nil
}
