package transfer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storyweave/media"
	"storyweave/models"
)

const parallelism = 4

// Target is where an export goes. With Dir set the manifest and every media
// payload are written into it; otherwise only the manifest is written to
// Fallback.
type Target struct {
	Dir      Dir
	Fallback io.Writer
}

type ExportResult struct {
	Manifest *models.Manifest
	// Files is the number of media payloads written.
	Files int
	Bytes int64
	// Skipped counts payloads that were not written because the target has no
	// directory.
	Skipped int
	// Lossy counts media pages exported with neither a file nor a URL.
	Lossy   int
	Warning string
}

type payload struct {
	name string
	data []byte
}

// Export writes pages as a manifest plus media payloads. Local blobs become
// files named after their page; blobs that are gone fall back to the page's
// origin URL. The manifest never contains blob ids.
func Export(ctx context.Context, pages []models.Page, fetcher media.Fetcher, target Target, logger *zap.Logger) (*ExportResult, error) {
	if target.Dir == nil && target.Fallback == nil {
		return nil, fmt.Errorf("export needs a directory or a fallback writer")
	}
	logger = logger.Named("export")

	blobs := make([]*media.Blob, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, p := range pages {
		if p.Type == models.PageText || p.Media.Kind != models.MediaLocalBlob || fetcher == nil {
			continue
		}
		g.Go(func() error {
			b, err := fetcher.Fetch(gctx, p.Media)
			if err != nil {
				return fmt.Errorf("read media of page %s: %w", p.ID, err)
			}
			blobs[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &ExportResult{Manifest: &models.Manifest{Version: models.ManifestVersion, UpdatedAt: time.Now().UTC(), Pages: make([]models.ManifestPage, 0, len(pages))}}
	var files []payload
	for i, p := range pages {
		mp := models.ManifestPage{ID: p.ID, Type: p.Type, DurationSec: p.DurationSec}
		if !models.ValidPageID(mp.ID) {
			mp.ID = uuid.NewString()
			logger.Warn("Page id cannot name a file, exporting under a new id", zap.String("page", p.ID), zap.String("id", mp.ID))
		}
		switch {
		case p.Type == models.PageText:
			mp.Text = p.Text
		case p.Media.Kind == models.MediaLocalBlob:
			if b := blobs[i]; b != nil {
				mp.FileName = mp.ID + "." + media.ExtensionForMime(b.Mime, p.Type)
				files = append(files, payload{name: mp.FileName, data: b.Data})
			} else if p.OriginURL != "" {
				logger.Warn("Media record missing, exporting origin URL", zap.String("page", p.ID), zap.Stringer("ref", p.Media))
				mp.URL = p.OriginURL
			} else {
				logger.Warn("Media record missing, page exported without media", zap.String("page", p.ID), zap.Stringer("ref", p.Media))
				res.Lossy++
			}
		case p.Media.Kind == models.MediaServerPath:
			mp.URL = rootedPath(p.Media.Value)
		case p.Media.Kind == models.MediaRemoteURL:
			mp.URL = p.Media.Value
		default:
			res.Lossy++
		}
		res.Manifest.Pages = append(res.Manifest.Pages, mp)
	}

	data, err := json.MarshalIndent(res.Manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	if target.Dir == nil {
		if _, err := target.Fallback.Write(data); err != nil {
			return nil, fmt.Errorf("write manifest: %w", err)
		}
		res.Skipped = len(files)
		if res.Skipped > 0 {
			res.Warning = fmt.Sprintf("Only the manifest was exported; %d media file(s) must be exported manually", res.Skipped)
		}
		return res, nil
	}

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for _, f := range files {
		g.Go(func() error {
			if err := target.Dir.WriteFile(gctx, f.name, f.data); err != nil {
				return fmt.Errorf("write %s: %w", f.name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, f := range files {
		res.Bytes += int64(len(f.data))
	}
	res.Files = len(files)
	// the manifest goes last so a partial export is never mistaken for a
	// complete one
	if err := target.Dir.WriteFile(ctx, ManifestName, data); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	logger.Info("Exported story",
		zap.Int("pages", len(pages)),
		zap.Int("files", res.Files),
		zap.String("size", humanize.Bytes(uint64(res.Bytes))),
		zap.Int("lossy", res.Lossy))
	return res, nil
}

func rootedPath(p string) string {
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") || strings.HasPrefix(p, "/") {
		return p
	}
	return "/" + p
}
