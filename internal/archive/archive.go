// Package archive keeps a copy of every raw upload next to its audit record.
package archive

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/spf13/afero"
)

// Archive stores raw uploads.
type Archive interface {
	// Put stores data under name and returns where it can be found.
	Put(ctx context.Context, name string, data []byte, metadata map[string]string) (string, error)
}

// Noop discards uploads.
type Noop struct{}

func (Noop) Put(ctx context.Context, name string, data []byte, metadata map[string]string) (string, error) {
	return "", nil
}

// FSArchive writes uploads under a directory of an afero filesystem.
type FSArchive struct {
	fs  afero.Fs
	dir string
}

// NewFSArchive creates an FSArchive rooted at dir.
func NewFSArchive(fs afero.Fs, dir string) *FSArchive {
	return &FSArchive{fs: fs, dir: dir}
}

func (a *FSArchive) Put(ctx context.Context, name string, data []byte, metadata map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	clean := path.Clean("/" + name)[1:]
	if clean == "" {
		return "", fmt.Errorf("invalid archive name %q", name)
	}

	target := filepath.Join(a.dir, filepath.FromSlash(clean))

	if err := a.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	if err := afero.WriteFile(a.fs, target, data, 0o644); err != nil {
		return "", fmt.Errorf("write archive file: %w", err)
	}

	return target, nil
}
