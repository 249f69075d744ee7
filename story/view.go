package story

import (
	"fmt"
	"strings"

	"storyweave/media"
	"storyweave/models"
)

const (
	EmptyPlaceholder = "No pages yet. Add one in the editor."
	MediaPlaceholder = "Media unavailable"

	summaryLen = 40
)

// PageView is one row of the page list.
type PageView struct {
	Index             int
	ID                string
	Type              models.PageType
	Label             string
	Summary           string
	DurationSec       float64
	DurationIsDefault bool
	Active            bool
}

// View is a rendering snapshot of a session.
type View struct {
	Pages []PageView
	// Current is -1 for an empty story.
	Current int
	Dots    int
	// Page is the current page, nil when the story is empty.
	Page *models.Page
	// Source is the resolved media of a media page; nil means render
	// Placeholder instead.
	Source      *media.Source
	Placeholder string
	// Form mirrors the current page for the editor.
	Form     models.Draft
	Settings models.Settings
}

func buildView(doc *Document, settings models.Settings) View {
	settings = settings.Normalize()
	pages := doc.Pages()
	cur, _ := doc.CurrentIndex()
	v := View{
		Pages:    make([]PageView, len(pages)),
		Current:  cur,
		Dots:     len(pages),
		Settings: settings,
	}
	for i, p := range pages {
		v.Pages[i] = PageView{
			Index:             i,
			ID:                p.ID,
			Type:              p.Type,
			Label:             p.Type.Label(),
			Summary:           summarize(p),
			DurationSec:       p.Duration(settings.AutoPlayIntervalSec),
			DurationIsDefault: p.DurationSec == nil,
			Active:            i == cur,
		}
	}
	if p, ok := doc.Current(); ok {
		v.Page = &p
		v.Form = models.Draft{Type: p.Type, Text: p.Text, Media: p.Media, OriginURL: p.OriginURL, DurationSec: p.DurationSec}
	} else {
		v.Placeholder = EmptyPlaceholder
		v.Form = models.Draft{Type: models.PageText}
	}
	return v
}

func summarize(p models.Page) string {
	if p.Type == models.PageText {
		s := strings.Join(strings.Fields(p.Text), " ")
		if r := []rune(s); len(r) > summaryLen {
			return string(r[:summaryLen-1]) + "…"
		}
		return s
	}
	switch p.Media.Kind {
	case models.MediaLocalBlob:
		return fmt.Sprintf("local file %s", p.Media.Value)
	case models.MediaNone:
		return "no media"
	}
	return p.Media.Value
}
