package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePageType(t *testing.T) {
	for in, want := range map[string]PageType{"text": PageText, " Image ": PageImage, "VIDEO": PageVideo} {
		got, err := ParsePageType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParsePageType("audio")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMediaRefConstructors(t *testing.T) {
	assert.True(t, RemoteURL("  ").IsZero())
	assert.Equal(t, MediaRef{}, LocalBlob(""))
	assert.Equal(t, "path:materials/a.png", ServerPath(" materials/a.png ").String())
	assert.Equal(t, "none", MediaRef{}.String())
	assert.True(t, MediaRef{Kind: MediaLocalBlob}.IsZero())
}

func TestDraftValidate(t *testing.T) {
	tests := []struct {
		name  string
		draft Draft
		ok    bool
	}{
		{"text", Draft{Type: PageText, Text: "Hello"}, true},
		{"blank text", Draft{Type: PageText, Text: " \n\t"}, false},
		{"image with url", Draft{Type: PageImage, Media: RemoteURL("https://x/a.png")}, true},
		{"image without media", Draft{Type: PageImage}, false},
		{"video with blob", Draft{Type: PageVideo, Media: LocalBlob("abc")}, true},
		{"zero duration", Draft{Type: PageText, Text: "x", DurationSec: Seconds(0)}, false},
		{"negative duration", Draft{Type: PageText, Text: "x", DurationSec: Seconds(-2)}, false},
		{"fractional duration", Draft{Type: PageText, Text: "x", DurationSec: Seconds(0.5)}, true},
		{"unknown type", Draft{Type: "audio", Media: RemoteURL("https://x/a.mp3")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.draft.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrValidation)
			}
		})
	}
}

func TestDraftPageClearsForeignFields(t *testing.T) {
	p := Draft{Type: PageText, Text: "  hi  ", Media: RemoteURL("https://x"), OriginURL: "https://o"}.Page("id1")
	assert.Equal(t, Page{ID: "id1", Type: PageText, Text: "hi"}, p)

	p = Draft{Type: PageImage, Text: "ignored", Media: RemoteURL("https://x"), OriginURL: "https://o"}.Page("id2")
	assert.Empty(t, p.Text)
	assert.Empty(t, p.OriginURL, "origin URLs only accompany local blobs")

	p = Draft{Type: PageImage, Media: LocalBlob("b"), OriginURL: "https://o"}.Page("id3")
	assert.Equal(t, "https://o", p.OriginURL)
}

func TestPageDuration(t *testing.T) {
	assert.Equal(t, 5.0, Page{}.Duration(5))
	assert.Equal(t, 3.0, Page{DurationSec: Seconds(3)}.Duration(5))
}

func TestSettingsNormalize(t *testing.T) {
	s := Settings{AutoPlay: true, AutoPlayIntervalSec: -1, TextSize: 0}.Normalize()
	assert.True(t, s.AutoPlay)
	assert.Equal(t, float64(DefaultIntervalSec), s.AutoPlayIntervalSec)
	assert.Equal(t, DefaultTextSize, s.TextSize)
	assert.Equal(t, 2500_000_000, int(Settings{AutoPlayIntervalSec: 2.5}.Interval()))
}
