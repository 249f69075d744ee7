package story

import (
	"fmt"

	"github.com/google/uuid"

	"storyweave/models"
)

// Document is an ordered list of pages with a playback cursor. The cursor is
// -1 exactly when the document is empty. Document is not safe for concurrent
// use; Session serializes access.
type Document struct {
	pages []models.Page
	cur   int
	newID func() string
}

func NewDocument(pages []models.Page) *Document {
	d := &Document{newID: uuid.NewString}
	d.ReplaceAll(pages)
	return d
}

// ReplaceAll swaps in a new page list and moves the cursor to the first page.
func (d *Document) ReplaceAll(pages []models.Page) {
	d.pages = append([]models.Page(nil), pages...)
	d.cur = -1
	if len(d.pages) > 0 {
		d.cur = 0
	}
}

func (d *Document) Len() int { return len(d.pages) }

// Pages returns a copy of the pages in playback order.
func (d *Document) Pages() []models.Page {
	return append([]models.Page(nil), d.pages...)
}

// CurrentIndex returns the cursor; ok is false for an empty document.
func (d *Document) CurrentIndex() (int, bool) {
	return d.cur, d.cur >= 0
}

func (d *Document) Current() (models.Page, bool) {
	if d.cur < 0 {
		return models.Page{}, false
	}
	return d.pages[d.cur], true
}

// Next returns the page that follows the current one in circular order.
func (d *Document) Next() (models.Page, bool) {
	if d.cur < 0 {
		return models.Page{}, false
	}
	return d.pages[(d.cur+1)%len(d.pages)], true
}

// AddPage appends a validated draft and makes it current.
func (d *Document) AddPage(draft models.Draft) (models.Page, error) {
	if err := draft.Validate(); err != nil {
		return models.Page{}, err
	}
	p := draft.Page(d.newID())
	d.pages = append(d.pages, p)
	d.cur = len(d.pages) - 1
	return p, nil
}

// ReplaceCurrent overwrites the current page with a validated draft, keeping
// its id.
func (d *Document) ReplaceCurrent(draft models.Draft) (models.Page, error) {
	if d.cur < 0 {
		return models.Page{}, fmt.Errorf("%w: there is no current page", models.ErrValidation)
	}
	if err := draft.Validate(); err != nil {
		return models.Page{}, err
	}
	p := draft.Page(d.pages[d.cur].ID)
	d.pages[d.cur] = p
	return p, nil
}

// DeleteCurrent removes the current page and clamps the cursor.
func (d *Document) DeleteCurrent() (models.Page, error) {
	if d.cur < 0 {
		return models.Page{}, fmt.Errorf("%w: there is no current page", models.ErrValidation)
	}
	removed := d.pages[d.cur]
	d.pages = append(d.pages[:d.cur], d.pages[d.cur+1:]...)
	d.cur = min(d.cur, len(d.pages)-1)
	return removed, nil
}

func (d *Document) SetCurrentIndex(i int) error {
	if i < 0 || i >= len(d.pages) {
		return fmt.Errorf("%w: page %d out of range [0, %d)", models.ErrValidation, i, len(d.pages))
	}
	d.cur = i
	return nil
}

// Advance moves the cursor by step with wrap-around in both directions. It
// is a no-op on an empty document.
func (d *Document) Advance(step int) bool {
	n := len(d.pages)
	if n == 0 {
		return false
	}
	d.cur = ((d.cur+step)%n + n) % n
	return true
}

// IndexOf returns the position of the page with id, or -1.
func (d *Document) IndexOf(id string) int {
	for i, p := range d.pages {
		if p.ID == id {
			return i
		}
	}
	return -1
}
