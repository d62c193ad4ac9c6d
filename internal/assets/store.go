package assets

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"

	"github.com/nfrund/profilecard/internal/domain"
	"github.com/nfrund/profilecard/internal/middleware"
)

// Store is a read-only view of the static asset tree.
type Store struct {
	fs afero.Fs
}

// NewStore wraps an afero filesystem rooted at the asset directory.
func NewStore(fsys afero.Fs) *Store {
	return &Store{fs: afero.NewReadOnlyFs(fsys)}
}

// NewEmbeddedStore serves the sub-tree dir of an embedded filesystem.
func NewEmbeddedStore(embedded fs.FS, dir string) (*Store, error) {
	sub, err := fs.Sub(embedded, dir)
	if err != nil {
		return nil, err
	}
	return NewStore(afero.FromIOFS{FS: sub}), nil
}

// NewDirStore serves files from a directory on disk.
func NewDirStore(dir string) *Store {
	return NewStore(afero.NewBasePathFs(afero.NewOsFs(), dir))
}

// Get opens the asset at name. Paths escaping the root and directories are
// reported as domain.ErrNotFound. A canceled ctx returns its error without
// touching the filesystem.
func (s *Store) Get(ctx context.Context, name string) (afero.File, os.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	logger := middleware.FromContext(ctx)

	clean := strings.TrimPrefix(path.Clean("/"+name), "/")
	if clean == "" {
		return nil, nil, domain.ErrNotFound
	}

	f, err := s.fs.OpenFile(clean, os.O_RDONLY, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("Asset not found", "asset", clean)
			return nil, nil, domain.ErrNotFound
		}
		return nil, nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, domain.ErrNotFound
	}
	return f, info, nil
}
