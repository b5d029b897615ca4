package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func newTestStorage(t *testing.T, maxMB int64) (*ImageStorage, string) {
	t.Helper()
	root := t.TempDir()
	s, err := NewImageStorage(root, "/uploads/refunds", maxMB)
	require.NoError(t, err)
	return s, root
}

func TestImageStorage_SaveImage(t *testing.T) {
	s, root := newTestStorage(t, 1)
	owner := uuid.New()
	body := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{1}, 1000)...)

	public, err := s.SaveImage(context.Background(), owner, bytes.NewReader(body))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(public, "/uploads/refunds/"+owner.String()+"/"))
	assert.Equal(t, ".png", filepath.Ext(public))

	saved, err := os.ReadFile(filepath.Join(root, owner.String(), filepath.Base(public)))
	require.NoError(t, err)
	assert.Equal(t, body, saved)

	require.NoError(t, s.Delete(context.Background(), public))
	_, err = os.Stat(filepath.Join(root, owner.String(), filepath.Base(public)))
	assert.True(t, os.IsNotExist(err))
}

func TestImageStorage_RejectsNonImage(t *testing.T) {
	s, root := newTestStorage(t, 1)
	owner := uuid.New()

	_, err := s.SaveImage(context.Background(), owner, strings.NewReader("#!/bin/sh\nrm -rf /\n"))
	assert.ErrorIs(t, err, ErrNotImage)

	entries, _ := os.ReadDir(filepath.Join(root, owner.String()))
	assert.Empty(t, entries)
}

func TestImageStorage_RejectsOversized(t *testing.T) {
	s, root := newTestStorage(t, 1)
	owner := uuid.New()
	body := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{1}, 1024*1024)...)

	_, err := s.SaveImage(context.Background(), owner, bytes.NewReader(body))
	assert.ErrorIs(t, err, ErrTooLarge)

	entries, err := os.ReadDir(filepath.Join(root, owner.String()))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestImageStorage_DeleteOutsideRoot(t *testing.T) {
	s, _ := newTestStorage(t, 1)

	assert.Error(t, s.Delete(context.Background(), "/etc/passwd"))
	assert.NoError(t, s.Delete(context.Background(), "/uploads/refunds/missing.png"))
}

func TestImageStorage_Locate(t *testing.T) {
	s, root := newTestStorage(t, 1)
	owner := uuid.New()
	body := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{1}, 100)...)

	public, err := s.SaveImage(context.Background(), owner, bytes.NewReader(body))
	require.NoError(t, err)
	name := filepath.Base(public)

	path, err := s.Locate(context.Background(), owner, name)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, owner.String(), name), path)

	require.NoError(t, os.WriteFile(filepath.Join(root, owner.String(), "half.tmp"), body, 0o644))
	for _, bad := range []string{"", ".", "..", "../" + owner.String(), "half.tmp", "missing.png"} {
		_, err := s.Locate(context.Background(), owner, bad)
		assert.ErrorIs(t, err, ErrFileNotFound, bad)
	}

	_, err = s.Locate(context.Background(), uuid.New(), name)
	assert.ErrorIs(t, err, ErrFileNotFound)
}
