// Package storage provides read-only core.MediaStore implementations.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Skryldev/filter-engine/core"
	apperrors "github.com/Skryldev/filter-engine/errors"
	"github.com/Skryldev/filter-engine/utils"
)

var _ core.MediaStore = (*Local)(nil)

// Local serves media files from a directory on the local filesystem.
type Local struct {
	rootDir   string
	maxBytes  int64
	chunkSize int
}

// NewLocal creates a Local store rooted at dir.  maxBytes <= 0 disables the
// size limit.
func NewLocal(dir string, maxBytes int64, chunkSize int) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("local storage: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("local storage: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("local storage: %s is not a directory", abs)
	}
	return &Local{rootDir: abs, maxBytes: maxBytes, chunkSize: chunkSize}, nil
}

// absPath maps fileID below rootDir.  Ids that escape the root are rejected.
func (l *Local) absPath(fileID string) (string, error) {
	if fileID == "" {
		return "", fmt.Errorf("empty file id")
	}
	p := filepath.Join(l.rootDir, filepath.FromSlash(fileID))
	if p != l.rootDir && !strings.HasPrefix(p, l.rootDir+string(filepath.Separator)) {
		return "", fmt.Errorf("file id %q escapes the storage root", fileID)
	}
	return p, nil
}

// GetBytes reads the file named fileID.
func (l *Local) GetBytes(ctx context.Context, fileID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Storage("local.get", err)
	}
	path, err := l.absPath(fileID)
	if err != nil {
		return nil, apperrors.InvalidInput("local.get", err)
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.NotFound("local.get", fmt.Errorf("%w: %s", apperrors.ErrNotFound, fileID))
		}
		return nil, apperrors.Storage("local.get.open", err)
	}
	defer f.Close()

	data, err := utils.ReadAll(ctx, f, l.maxBytes, l.chunkSize)
	if errors.Is(err, utils.ErrTooLarge) {
		return nil, apperrors.InvalidInput("local.get", fmt.Errorf("%w: %s", apperrors.ErrInputTooLarge, fileID))
	}
	if err != nil {
		return nil, apperrors.Storage("local.get.read", err)
	}
	return data, nil
}
