package media

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storyweave/models"
)

func newSQLiteStore(t *testing.T) *LocalStore {
	t.Helper()
	s := NewLocalStore(OpenSQLite(filepath.Join(t.TempDir(), "media.db")), zap.NewNop())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}
	ref, err := s.Store(ctx, File{Name: "cat.png", Data: png}, models.PageImage)
	require.NoError(t, err)
	assert.Equal(t, models.MediaLocalBlob, ref.Kind)

	blob, err := s.Fetch(ctx, ref)
	require.NoError(t, err)
	require.NotNil(t, blob)
	assert.Equal(t, png, blob.Data)
	assert.Equal(t, "image/png", blob.Mime)
	assert.Equal(t, "cat.png", blob.FileName)

	rec, err := s.Record(ctx, ref.Value)
	require.NoError(t, err)
	assert.Equal(t, models.PageImage, rec.Type)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestLocalStoreDoesNotDeduplicate(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	f := File{Name: "a.mp4", Mime: "video/mp4", Data: []byte("same bytes")}

	a, err := s.Store(ctx, f, models.PageVideo)
	require.NoError(t, err)
	b, err := s.Store(ctx, f, models.PageVideo)
	require.NoError(t, err)
	assert.NotEqual(t, a.Value, b.Value)
}

func TestLocalStoreDeleteLeavesOrphan(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	ref, err := s.Store(ctx, File{Name: "a.png", Mime: "image/png", Data: []byte("x")}, models.PageImage)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, ref.Value))
	blob, err := s.Fetch(ctx, ref)
	assert.NoError(t, err)
	assert.Nil(t, blob)
}

func TestLocalStoreUnavailable(t *testing.T) {
	s := NewLocalStore(nil, zap.NewNop())
	_, err := s.Store(context.Background(), File{Name: "a.png", Data: []byte("x")}, models.PageImage)
	assert.ErrorIs(t, err, models.ErrStorageUnavailable)

	_, err = s.Fetch(context.Background(), models.LocalBlob("a"))
	assert.ErrorIs(t, err, models.ErrStorageUnavailable)
}

func TestLocalStoreRejectsTextPages(t *testing.T) {
	s := newSQLiteStore(t)
	_, err := s.Store(context.Background(), File{Name: "a.txt", Data: []byte("x")}, models.PageText)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestSQLiteReopenKeepsRecords(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "media.db")

	first := NewLocalStore(OpenSQLite(path), zap.NewNop())
	ref, err := first.Store(ctx, File{Name: "a.png", Mime: "image/png", Data: []byte("keep me")}, models.PageImage)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := NewLocalStore(OpenSQLite(path), zap.NewNop())
	defer second.Close()
	blob, err := second.Fetch(ctx, ref)
	require.NoError(t, err)
	require.NotNil(t, blob)
	assert.Equal(t, []byte("keep me"), blob.Data)
}
