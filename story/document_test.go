package story

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyweave/models"
)

func textDraft(text string) models.Draft {
	return models.Draft{Type: models.PageText, Text: text}
}

func newTestDocument(t *testing.T, texts ...string) *Document {
	t.Helper()
	d := NewDocument(nil)
	for _, text := range texts {
		_, err := d.AddPage(textDraft(text))
		require.NoError(t, err)
	}
	return d
}

func TestDocumentAddMovesCursor(t *testing.T) {
	d := newTestDocument(t, "a", "b")
	i, ok := d.CurrentIndex()
	require.True(t, ok)
	assert.Equal(t, 1, i)

	p, err := d.AddPage(models.Draft{Type: models.PageImage, Media: models.RemoteURL("https://x/y.png")})
	require.NoError(t, err)
	cur, _ := d.Current()
	assert.Equal(t, p, cur)
	assert.Equal(t, 3, d.Len())
}

func TestDocumentInvalidDraftLeavesDocumentUnchanged(t *testing.T) {
	d := newTestDocument(t, "a")
	before := d.Pages()

	_, err := d.AddPage(models.Draft{Type: models.PageImage})
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = d.ReplaceCurrent(textDraft("   "))
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = d.ReplaceCurrent(models.Draft{Type: models.PageText, Text: "x", DurationSec: models.Seconds(0)})
	assert.ErrorIs(t, err, models.ErrValidation)

	assert.Equal(t, before, d.Pages())
}

func TestDocumentReplaceKeepsID(t *testing.T) {
	d := newTestDocument(t, "a")
	old, _ := d.Current()

	p, err := d.ReplaceCurrent(models.Draft{Type: models.PageVideo, Media: models.ServerPath("materials/v.mp4"), Text: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, old.ID, p.ID)
	assert.Empty(t, p.Text)
	assert.Equal(t, models.ServerPath("materials/v.mp4"), p.Media)
}

func TestDocumentDeleteClampsCursor(t *testing.T) {
	d := newTestDocument(t, "a", "b", "c")

	_, err := d.DeleteCurrent()
	require.NoError(t, err)
	i, _ := d.CurrentIndex()
	assert.Equal(t, 1, i)

	require.NoError(t, d.SetCurrentIndex(0))
	_, err = d.DeleteCurrent()
	require.NoError(t, err)
	cur, _ := d.Current()
	assert.Equal(t, "b", cur.Text)

	_, err = d.DeleteCurrent()
	require.NoError(t, err)
	i, ok := d.CurrentIndex()
	assert.False(t, ok)
	assert.Equal(t, -1, i)
	assert.Zero(t, d.Len())

	_, err = d.DeleteCurrent()
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = d.ReplaceCurrent(textDraft("x"))
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestDocumentAdvanceWraps(t *testing.T) {
	d := newTestDocument(t, "a", "b", "c")
	require.NoError(t, d.SetCurrentIndex(0))

	tests := []struct {
		step int
		want string
	}{
		{-1, "c"},
		{1, "a"},
		{1, "b"},
		{1, "c"},
		{1, "a"},
		{-1, "c"},
		{-1, "b"},
	}
	for _, tt := range tests {
		require.True(t, d.Advance(tt.step))
		cur, _ := d.Current()
		assert.Equal(t, tt.want, cur.Text)
	}
}

func TestDocumentCircularity(t *testing.T) {
	d := newTestDocument(t, "a", "b", "c", "d")
	for start := 0; start < d.Len(); start++ {
		require.NoError(t, d.SetCurrentIndex(start))
		for i := 0; i < d.Len(); i++ {
			d.Advance(1)
		}
		i, _ := d.CurrentIndex()
		assert.Equal(t, start, i)
	}
}

func TestDocumentEmpty(t *testing.T) {
	d := NewDocument(nil)
	assert.False(t, d.Advance(1))
	_, ok := d.Current()
	assert.False(t, ok)
	_, ok = d.Next()
	assert.False(t, ok)
	assert.ErrorIs(t, d.SetCurrentIndex(0), models.ErrValidation)
}

func TestDocumentSetCurrentIndexRange(t *testing.T) {
	d := newTestDocument(t, "a", "b")
	assert.ErrorIs(t, d.SetCurrentIndex(-1), models.ErrValidation)
	assert.ErrorIs(t, d.SetCurrentIndex(2), models.ErrValidation)
	assert.NoError(t, d.SetCurrentIndex(1))
}

func TestDocumentNextAndReplaceAll(t *testing.T) {
	d := newTestDocument(t, "a", "b")
	next, ok := d.Next()
	require.True(t, ok)
	assert.Equal(t, "a", next.Text)

	d.ReplaceAll([]models.Page{{ID: "x", Type: models.PageText, Text: "x"}})
	i, _ := d.CurrentIndex()
	assert.Equal(t, 0, i)
	assert.Equal(t, 0, d.IndexOf("x"))
	assert.Equal(t, -1, d.IndexOf("missing"))
}
