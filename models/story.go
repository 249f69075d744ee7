package models

import (
	"fmt"
	"strings"
)

type PageType string

const (
	PageText  PageType = "text"
	PageImage PageType = "image"
	PageVideo PageType = "video"
)

// ParsePageType accepts only the three known page types.
func ParsePageType(s string) (PageType, error) {
	switch t := PageType(strings.ToLower(strings.TrimSpace(s))); t {
	case PageText, PageImage, PageVideo:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown page type %q", ErrValidation, s)
}

// IsMedia reports whether pages of this type carry a media reference.
func (t PageType) IsMedia() bool {
	return t == PageImage || t == PageVideo
}

// Label is the short name shown in page lists.
func (t PageType) Label() string {
	switch t {
	case PageText:
		return "Text"
	case PageImage:
		return "Image"
	case PageVideo:
		return "Video"
	}
	return string(t)
}

type MediaKind int

const (
	MediaNone MediaKind = iota
	MediaRemoteURL
	MediaServerPath
	MediaLocalBlob
)

func (k MediaKind) String() string {
	switch k {
	case MediaRemoteURL:
		return "url"
	case MediaServerPath:
		return "path"
	case MediaLocalBlob:
		return "blob"
	}
	return "none"
}

// MediaRef points at the binary media of a page. Only one variant is ever
// populated; the zero value means "no media".
type MediaRef struct {
	Kind  MediaKind
	Value string
}

func RemoteURL(u string) MediaRef { return newRef(MediaRemoteURL, u) }
func ServerPath(p string) MediaRef { return newRef(MediaServerPath, p) }
func LocalBlob(id string) MediaRef { return newRef(MediaLocalBlob, id) }

func newRef(k MediaKind, v string) MediaRef {
	v = strings.TrimSpace(v)
	if v == "" {
		return MediaRef{}
	}
	return MediaRef{Kind: k, Value: v}
}

func (r MediaRef) IsZero() bool { return r.Kind == MediaNone || r.Value == "" }

func (r MediaRef) String() string {
	if r.IsZero() {
		return "none"
	}
	return r.Kind.String() + ":" + r.Value
}

// Page is one slide of a story.
type Page struct {
	ID   string
	Type PageType
	Text string
	// Media is empty for text pages.
	Media MediaRef
	// OriginURL is an optional URL a local blob was imported from. Export uses
	// it when the blob itself is gone.
	OriginURL   string
	DurationSec *float64
}

// Duration returns the page override or def when the page has none.
func (p Page) Duration(def float64) float64 {
	if p.DurationSec != nil && *p.DurationSec > 0 {
		return *p.DurationSec
	}
	return def
}

// Draft is the editor input used to create or replace a page.
type Draft struct {
	Type        PageType
	Text        string
	Media       MediaRef
	OriginURL   string
	DurationSec *float64
}

// Validate checks the page invariants that must hold before a draft is committed.
func (d Draft) Validate() error {
	switch d.Type {
	case PageText:
		if strings.TrimSpace(d.Text) == "" {
			return fmt.Errorf("%w: text page needs some text", ErrValidation)
		}
	case PageImage, PageVideo:
		if d.Media.IsZero() {
			return fmt.Errorf("%w: %s page needs a URL or a file", ErrValidation, d.Type)
		}
	default:
		return fmt.Errorf("%w: unknown page type %q", ErrValidation, d.Type)
	}
	if d.DurationSec != nil && *d.DurationSec <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrValidation)
	}
	return nil
}

// Page builds the committed page for a validated draft. Fields that do not
// belong to the draft type are cleared.
func (d Draft) Page(id string) Page {
	p := Page{ID: id, Type: d.Type, DurationSec: d.DurationSec}
	if d.Type == PageText {
		p.Text = strings.TrimSpace(d.Text)
		return p
	}
	p.Media = d.Media
	if d.Media.Kind == MediaLocalBlob {
		p.OriginURL = d.OriginURL
	}
	return p
}

// Seconds is a helper for optional durations.
func Seconds(v float64) *float64 { return &v }
