package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storyweave/media"
	"storyweave/models"
)

const maxManifestBytes = 16 << 20

// ErrImportDeclined is returned when the confirmation callback refuses the
// import.
var ErrImportDeclined = errors.New("import declined")

// Source is what an import reads from. Manifest, when set, is read instead of
// the manifest file in Dir. Without Dir, file name references cannot be
// resolved.
type Source struct {
	Dir      Dir
	Manifest io.Reader
}

type ImportResult struct {
	// Pages replace the whole story.
	Pages []models.Page
	// Stored is the number of media files loaded into the media store.
	Stored int
	// URLFallbacks counts pages whose file could not be read and that use
	// their URL instead.
	URLFallbacks int
	// Failed counts pages left without media.
	Failed int
	// Reattach counts media pages that need their file attached again
	// because the source had no directory.
	Reattach int
	// Errors aggregates the per-file failures.
	Errors error
}

// Confirm is asked before anything is stored, with the number of pages that
// will replace the story.
type Confirm func(pages int) bool

// Import decodes and validates a manifest, asks for confirmation and then
// loads referenced files into store. A malformed manifest or a declined
// confirmation leaves everything untouched.
func Import(ctx context.Context, src Source, store media.Store, confirm Confirm, logger *zap.Logger) (*ImportResult, error) {
	logger = logger.Named("import")
	m, err := readManifest(ctx, src)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if confirm != nil && !confirm(len(m.Pages)) {
		return nil, ErrImportDeclined
	}

	res := &ImportResult{Pages: make([]models.Page, len(m.Pages))}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, mp := range m.Pages {
		p := models.Page{ID: mp.ID, Type: mp.Type, DurationSec: mp.DurationSec}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		switch {
		case p.Type == models.PageText:
			p.Text = mp.Text
		case mp.FileName != "" && src.Dir == nil:
			p.Media = models.RemoteURL(mp.URL)
			if p.Media.IsZero() {
				mu.Lock()
				res.Reattach++
				mu.Unlock()
			}
		case mp.FileName != "":
			g.Go(func() error {
				ref, err := loadFile(gctx, src.Dir, store, mp)
				if errors.Is(err, models.ErrStorageUnavailable) {
					return err
				}
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					p.Media = ref
					p.OriginURL = mp.URL
					res.Stored++
				case mp.URL != "":
					p.Media = models.RemoteURL(mp.URL)
					res.URLFallbacks++
					res.Errors = multierr.Append(res.Errors, err)
				default:
					res.Failed++
					res.Errors = multierr.Append(res.Errors, err)
				}
				res.Pages[i] = p
				return nil
			})
			continue
		default:
			p.Media = models.RemoteURL(mp.URL)
		}
		res.Pages[i] = p
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, err := range multierr.Errors(res.Errors) {
		logger.Warn("Media file not imported", zap.Error(err))
	}
	logger.Info("Imported story",
		zap.Int("pages", len(res.Pages)),
		zap.Int("stored", res.Stored),
		zap.Int("url_fallbacks", res.URLFallbacks),
		zap.Int("failed", res.Failed),
		zap.Int("reattach", res.Reattach))
	return res, nil
}

func readManifest(ctx context.Context, src Source) (*models.Manifest, error) {
	var data []byte
	var err error
	switch {
	case src.Manifest != nil:
		data, err = io.ReadAll(io.LimitReader(src.Manifest, maxManifestBytes))
	case src.Dir != nil:
		data, err = src.Dir.ReadFile(ctx, ManifestName)
	default:
		return nil, fmt.Errorf("import needs a manifest or a directory")
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m models.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrFormat, err)
	}
	return &m, nil
}

func loadFile(ctx context.Context, dir Dir, store media.Store, mp models.ManifestPage) (models.MediaRef, error) {
	data, err := dir.ReadFile(ctx, mp.FileName)
	if err != nil {
		return models.MediaRef{}, fmt.Errorf("page %s: %w", mp.ID, err)
	}
	if store == nil {
		return models.MediaRef{}, fmt.Errorf("%w: no media store configured", models.ErrStorageUnavailable)
	}
	f := media.File{Name: mp.FileName, Mime: media.SniffMime(data, mp.FileName), Data: data}
	ref, err := store.Store(ctx, f, mp.Type)
	if err != nil {
		return models.MediaRef{}, fmt.Errorf("page %s: store %s: %w", mp.ID, mp.FileName, err)
	}
	return ref, nil
}
