package models

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

const ManifestVersion = "1.0"

// Manifest is the persisted and exported form of a story.
type Manifest struct {
	Version   string         `json:"version" bson:"version"`
	UpdatedAt time.Time      `json:"updatedAt" bson:"updated_at"`
	Revision  uint64         `json:"revision,omitempty" bson:"revision"`
	Pages     []ManifestPage `json:"pages" bson:"pages"`
}

// ManifestPage describes one page. Media pages hold fileName (resolved
// against a media directory) or url. BlobID is only written by local
// persistence; exported and server manifests never carry it.
type ManifestPage struct {
	ID          string   `json:"id" bson:"id"`
	Type        PageType `json:"type" bson:"type"`
	DurationSec *float64 `json:"durationSec,omitempty" bson:"duration_sec,omitempty"`
	Text        string   `json:"text,omitempty" bson:"text,omitempty"`
	FileName    string   `json:"fileName,omitempty" bson:"file_name,omitempty"`
	URL         string   `json:"url,omitempty" bson:"url,omitempty"`
	BlobID      string   `json:"blobId,omitempty" bson:"-"`
}

// Validate checks the manifest shape. Missing page ids are tolerated because
// ManifestToPages assigns fresh ones.
func (m *Manifest) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: empty manifest", ErrFormat)
	}
	if m.Pages == nil {
		return fmt.Errorf("%w: pages must be an array", ErrFormat)
	}
	for i, p := range m.Pages {
		switch p.Type {
		case PageText, PageImage, PageVideo:
		default:
			return fmt.Errorf("%w: page %d has unknown type %q", ErrFormat, i+1, p.Type)
		}
		if p.DurationSec != nil && *p.DurationSec <= 0 {
			return fmt.Errorf("%w: page %d has non-positive duration", ErrFormat, i+1)
		}
		if p.ID != "" && !ValidPageID(p.ID) {
			return fmt.Errorf("%w: page %d id %q is not a plain name", ErrFormat, i+1, p.ID)
		}
		if p.FileName != "" && !plainName(p.FileName) {
			return fmt.Errorf("%w: page %d file name %q is not a plain name", ErrFormat, i+1, p.FileName)
		}
	}
	return nil
}

// ValidPageID reports whether id can be stored in a manifest. Page ids double
// as export file names.
func ValidPageID(id string) bool {
	return id != "" && plainName(id) && !strings.HasPrefix(id, ".")
}

// plainName reports whether s can be used as a file name inside a directory.
func plainName(s string) bool {
	return !strings.ContainsAny(s, `/\`+"\x00") && s != "." && s != ".."
}

// PagesToManifest converts pages into the manifest form. Server paths keep
// only their last segment. Local blob ids are written only when keepBlobIDs is
// set; otherwise the page falls back to its origin URL.
func PagesToManifest(pages []Page, keepBlobIDs bool) *Manifest {
	m := &Manifest{Version: ManifestVersion, UpdatedAt: time.Now().UTC(), Pages: make([]ManifestPage, 0, len(pages))}
	for _, p := range pages {
		mp := ManifestPage{ID: p.ID, Type: p.Type, DurationSec: p.DurationSec}
		if p.Type == PageText {
			mp.Text = p.Text
		} else {
			switch p.Media.Kind {
			case MediaServerPath:
				mp.FileName = path.Base(p.Media.Value)
			case MediaRemoteURL:
				mp.URL = p.Media.Value
			case MediaLocalBlob:
				mp.URL = p.OriginURL
				if keepBlobIDs {
					mp.BlobID = p.Media.Value
				}
			}
		}
		m.Pages = append(m.Pages, mp)
	}
	return m
}

// ManifestToPages rebuilds pages from a manifest. fileName entries become
// server paths under mediaDir.
func ManifestToPages(m *Manifest, mediaDir string) []Page {
	pages := make([]Page, 0, len(m.Pages))
	for _, mp := range m.Pages {
		p := Page{ID: mp.ID, Type: mp.Type, DurationSec: mp.DurationSec}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.Type == PageText {
			p.Text = mp.Text
		} else if mp.BlobID != "" {
			p.Media = LocalBlob(mp.BlobID)
			p.OriginURL = mp.URL
		} else if mp.FileName != "" {
			p.Media = ServerPath(path.Join(mediaDir, mp.FileName))
		} else {
			p.Media = RemoteURL(mp.URL)
		}
		pages = append(pages, p)
	}
	return pages
}
