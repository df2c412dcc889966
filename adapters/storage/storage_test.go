package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Skryldev/filter-engine/errors"
)

func TestLocal_GetBytes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "users", "u1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users", "u1", "a.png"), []byte("pixels"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "big.bin"), bytes.Repeat([]byte{1}, 64), 0o644))

	l, err := NewLocal(dir, 32, 8)
	require.NoError(t, err)
	ctx := context.Background()

	data, err := l.GetBytes(ctx, "users/u1/a.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("pixels"), data)

	_, err = l.GetBytes(ctx, "users/u1/missing.png")
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryNotFound))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = l.GetBytes(ctx, "../outside")
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryInput))

	_, err = l.GetBytes(ctx, "big.bin")
	assert.ErrorIs(t, err, apperrors.ErrInputTooLarge)
}

func TestNewLocal_RequiresDirectory(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(f, nil, 0o644))
	_, err := NewLocal(f, 0, 0)
	assert.Error(t, err)
	_, err = NewLocal(filepath.Join(f, "nope"), 0, 0)
	assert.Error(t, err)
}

type fakeS3 struct {
	objects map[string][]byte
	err     error
	gotKey  string
}

func (f *fakeS3) GetObject(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	f.gotKey = bucket + ":" + key
	if f.err != nil {
		return nil, f.err
	}
	b, ok := f.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func TestS3_GetBytes(t *testing.T) {
	client := &fakeS3{objects: map[string][]byte{"media/m1.jpg": []byte("jpeg")}}
	s, err := NewS3(client, "bucket", "media", 0, 0)
	require.NoError(t, err)
	ctx := context.Background()

	data, err := s.GetBytes(ctx, "m1.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), data)
	assert.Equal(t, "bucket:media/m1.jpg", client.gotKey)

	_, err = s.GetBytes(ctx, "m2.jpg")
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryNotFound))

	client.err = errors.New("connection reset")
	_, err = s.GetBytes(ctx, "m1.jpg")
	assert.True(t, apperrors.IsRetryable(err))

	_, err = NewS3(nil, "bucket", "", 0, 0)
	assert.Error(t, err)
	_, err = NewS3(client, "", "", 0, 0)
	assert.Error(t, err)
}
