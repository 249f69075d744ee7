package media

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"storyweave/models"
)

func TestExtensionForMime(t *testing.T) {
	tests := []struct {
		mime string
		typ  models.PageType
		want string
	}{
		{"image/jpeg", models.PageImage, "jpg"},
		{"image/jpg", models.PageImage, "jpg"},
		{"image/webp", models.PageImage, "webp"},
		{"video/ogg", models.PageVideo, "ogv"},
		{"video/webm; codecs=vp9", models.PageVideo, "webm"},
		{"", models.PageImage, "png"},
		{"", models.PageVideo, "mp4"},
		{"application/x-unknown-thing", models.PageVideo, "mp4"},
		{"application/octet-stream", models.PageImage, "png"},
		{"application/octet-stream", models.PageVideo, "mp4"},
		{"text/plain", models.PageImage, "png"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtensionForMime(tt.mime, tt.typ), tt.mime)
	}
}

func TestSniffMime(t *testing.T) {
	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}
	assert.Equal(t, "image/png", SniffMime(png, "whatever.bin"))
	assert.Equal(t, "image/gif", SniffMime([]byte("not magic"), "x.gif"))
	assert.Equal(t, "application/octet-stream", SniffMime([]byte("not magic"), "noext"))
}

func TestMimeForExtension(t *testing.T) {
	assert.Equal(t, "video/mp4", MimeForExtension(".mp4"))
	assert.Equal(t, "video/webm", MimeForExtension("WEBM"))
	assert.Equal(t, "image/png", MimeForExtension(".png"))
	assert.Empty(t, MimeForExtension(""))
}

func TestTypeForMime(t *testing.T) {
	typ, ok := TypeForMime("video/mp4")
	assert.True(t, ok)
	assert.Equal(t, models.PageVideo, typ)

	_, ok = TypeForMime("text/plain")
	assert.False(t, ok)
}
