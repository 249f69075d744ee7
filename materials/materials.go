package materials

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/rs/xid"
	"golang.org/x/text/unicode/norm"
)

// Object is an opened material ready to be served.
type Object struct {
	io.ReadSeekCloser
	Size        int64
	ModTime     time.Time
	ContentType string
}

// Materials stores uploaded media behind the /materials route.
type Materials interface {
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) error
	// Open returns models.ErrNotFound when name does not exist.
	Open(ctx context.Context, name string) (*Object, error)
}

// FileName derives a collision-resistant storage name from an uploaded file
// name: <name>_<unix millis>_<random><ext>.
func FileName(original string, now time.Time) string {
	original = norm.NFC.String(path.Base(strings.ReplaceAll(original, `\`, "/")))
	ext := strings.ToLower(path.Ext(original))
	base := slug.Make(strings.TrimSuffix(original, path.Ext(original)))
	if base == "" {
		base = "media"
	}
	if !validExt(ext) {
		ext = ""
	}
	return fmt.Sprintf("%s_%d_%s%s", base, now.UnixMilli(), xid.New().String(), ext)
}

func validExt(ext string) bool {
	if len(ext) < 2 || len(ext) > 8 {
		return false
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// ValidName reports whether name is a plain file name safe to look up.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.HasPrefix(name, ".")
}
