package models

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePages() []Page {
	return []Page{
		{ID: "t", Type: PageText, Text: "Hello", DurationSec: Seconds(3)},
		{ID: "s", Type: PageImage, Media: ServerPath("/materials/cat_1_x.png")},
		{ID: "r", Type: PageVideo, Media: RemoteURL("https://example.com/v.mp4")},
		{ID: "b", Type: PageImage, Media: LocalBlob("blob1"), OriginURL: "https://example.com/o.png"},
		{ID: "n", Type: PageImage},
	}
}

func TestPagesToManifest(t *testing.T) {
	m := PagesToManifest(samplePages(), false)
	assert.Equal(t, ManifestVersion, m.Version)
	require.Len(t, m.Pages, 5)

	assert.Equal(t, ManifestPage{ID: "t", Type: PageText, Text: "Hello", DurationSec: Seconds(3)}, m.Pages[0])
	assert.Equal(t, "cat_1_x.png", m.Pages[1].FileName)
	assert.Empty(t, m.Pages[1].URL)
	assert.Equal(t, "https://example.com/v.mp4", m.Pages[2].URL)
	assert.Equal(t, "https://example.com/o.png", m.Pages[3].URL)
	assert.Empty(t, m.Pages[3].BlobID)
	assert.Equal(t, ManifestPage{ID: "n", Type: PageImage}, m.Pages[4])

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "blobId")
}

func TestManifestRoundTripKeepsBlobIDs(t *testing.T) {
	m := PagesToManifest(samplePages(), true)
	assert.Equal(t, "blob1", m.Pages[3].BlobID)

	pages := ManifestToPages(m, "materials")
	require.Len(t, pages, 5)
	assert.Equal(t, ServerPath("materials/cat_1_x.png"), pages[1].Media)
	assert.Equal(t, RemoteURL("https://example.com/v.mp4"), pages[2].Media)
	assert.Equal(t, LocalBlob("blob1"), pages[3].Media)
	assert.Equal(t, "https://example.com/o.png", pages[3].OriginURL)
	assert.True(t, pages[4].Media.IsZero())
	assert.Equal(t, 3.0, pages[0].Duration(5))
}

func TestManifestToPagesAssignsMissingIDs(t *testing.T) {
	pages := ManifestToPages(&Manifest{Pages: []ManifestPage{{Type: PageText, Text: "a"}, {Type: PageText, Text: "b"}}}, "materials")
	require.Len(t, pages, 2)
	assert.NotEmpty(t, pages[0].ID)
	assert.NotEqual(t, pages[0].ID, pages[1].ID)
}

func TestManifestValidate(t *testing.T) {
	tests := []struct {
		name string
		m    *Manifest
		ok   bool
	}{
		{"nil", nil, false},
		{"nil pages", &Manifest{}, false},
		{"empty pages", &Manifest{Pages: []ManifestPage{}}, true},
		{"valid", PagesToManifest(samplePages(), false), true},
		{"unknown type", &Manifest{Pages: []ManifestPage{{ID: "a", Type: "gif"}}}, false},
		{"zero duration", &Manifest{Pages: []ManifestPage{{ID: "a", Type: PageText, DurationSec: Seconds(0)}}}, false},
		{"nested file name", &Manifest{Pages: []ManifestPage{{ID: "a", Type: PageImage, FileName: "a/b.png"}}}, false},
		{"dot dot", &Manifest{Pages: []ManifestPage{{ID: "a", Type: PageImage, FileName: ".."}}}, false},
		{"traversing id", &Manifest{Pages: []ManifestPage{{ID: "../evil", Type: PageText, Text: "x"}}}, false},
		{"hidden id", &Manifest{Pages: []ManifestPage{{ID: ".profile", Type: PageText, Text: "x"}}}, false},
		{"backslash id", &Manifest{Pages: []ManifestPage{{ID: `a\b`, Type: PageText, Text: "x"}}}, false},
		{"missing id", &Manifest{Pages: []ManifestPage{{Type: PageText, Text: "x"}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.m.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrFormat)
			}
		})
	}
}

func TestManifestJSONShape(t *testing.T) {
	raw := `{"version":"1.0","updatedAt":"2024-05-01T12:00:00Z","pages":[{"id":"a","type":"image","durationSec":2.5,"fileName":"a.png"}]}`
	var m Manifest
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	require.NoError(t, m.Validate())
	assert.Equal(t, 2.5, *m.Pages[0].DurationSec)
	assert.Equal(t, 2024, m.UpdatedAt.Year())
}
