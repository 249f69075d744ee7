package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"storyweave/media"
	"storyweave/models"
	"storyweave/story"
)

func TestDescribeCurrent(t *testing.T) {
	text := models.Page{ID: "a", Type: models.PageText, Text: "Hello"}
	img := models.Page{ID: "b", Type: models.PageImage, Media: models.LocalBlob("x")}

	tests := []struct {
		name string
		view story.View
		want string
	}{
		{"empty", story.View{Current: -1, Placeholder: story.EmptyPlaceholder}, story.EmptyPlaceholder},
		{"text", story.View{Current: 0, Dots: 2, Page: &text}, "[1/2] Text: Hello"},
		{"missing media", story.View{Current: 1, Dots: 2, Page: &img, Placeholder: story.MediaPlaceholder}, "[2/2] Image: " + story.MediaPlaceholder},
		{"blob", story.View{Current: 1, Dots: 2, Page: &img, Source: &media.Source{URL: "blob:x", Blob: &media.Blob{FileName: "cat.png", Mime: "image/png", Data: make([]byte, 2048)}}},
			"[2/2] Image: cat.png (image/png, 2.0 kB)"},
		{"url", story.View{Current: 1, Dots: 2, Page: &img, Source: &media.Source{URL: "http://localhost:3000/materials/a.png"}},
			"[2/2] Image: http://localhost:3000/materials/a.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, describeCurrent(tt.view))
		})
	}
}

func TestTerminalRendererSkipsRepeats(t *testing.T) {
	var out bytes.Buffer
	r := &terminalRenderer{out: &out}
	p := models.Page{ID: "a", Type: models.PageText, Text: "Hello"}
	v := story.View{Current: 0, Dots: 1, Page: &p}

	r.OnChange(v)
	r.OnChange(v)
	assert.Equal(t, "[1/1] Text: Hello\n", out.String())
}

func TestPrintPages(t *testing.T) {
	var out bytes.Buffer
	printPages(&out, story.View{Pages: []story.PageView{
		{Index: 0, Label: "Text", Summary: "Hello", DurationSec: 5, DurationIsDefault: true, Active: true},
		{Index: 1, Label: "Image", Summary: "https://x/y.png", DurationSec: 2.5},
	}})
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "*   0  Text   5s (default)"))
	assert.Contains(t, lines[1], "2.5s")
	assert.Contains(t, lines[1], "https://x/y.png")
}

func TestConfirmOnTerminal(t *testing.T) {
	for answer, want := range map[string]bool{"y\n": true, "YES\n": true, "n\n": false, "\n": false, "": false} {
		var out bytes.Buffer
		confirm := confirmOnTerminal(strings.NewReader(answer), &out)
		assert.Equal(t, want, confirm(3), answer)
		assert.Contains(t, out.String(), "3 page(s)")
	}
}
