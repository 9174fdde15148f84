package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageService_LocalArchive(t *testing.T) {
	root := t.TempDir()
	svc := NewStorageServiceWithProvider(&LocalStorageProvider{Root: root})
	svc.now = func() time.Time { return time.Date(2024, 3, 31, 23, 30, 0, 0, time.FixedZone("UTC+8", 8*3600)) }
	ctx := context.Background()

	key, err := svc.ArchiveSource(ctx, "owner-1", "lecture notes")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "sources/owner-1/2024-03/"), key)
	assert.True(t, strings.HasSuffix(key, ".txt"))

	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(key)))
	require.NoError(t, err)

	text, err := svc.LoadSource(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "lecture notes", text)

	require.NoError(t, svc.DeleteSource(ctx, key))
	_, err = svc.LoadSource(ctx, key)
	assert.True(t, os.IsNotExist(err))
}
