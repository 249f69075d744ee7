package media

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"storyweave/models"
)

const defaultCacheSize = 4

// Source is something a renderer can display. Blob is set for local payloads.
type Source struct {
	URL  string
	Blob *Blob
}

// Resolver turns page media references into displayable sources.
type Resolver struct {
	origin  string
	fetcher Fetcher
	logger  *zap.Logger

	mu    sync.Mutex
	cache map[models.MediaRef]*Source
	order []models.MediaRef
	limit int
	// epoch changes on Forget; fetches started before it are not cached.
	epoch uint64
}

// NewResolver creates a resolver. origin is prefixed to server paths when set
// (e.g. "http://localhost:3000"); fetcher serves local blob ids and may be nil
// when there is no local store.
func NewResolver(origin string, fetcher Fetcher, logger *zap.Logger) *Resolver {
	return &Resolver{
		origin:  strings.TrimRight(origin, "/"),
		fetcher: fetcher,
		logger:  logger.Named("resolver"),
		cache:   make(map[models.MediaRef]*Source),
		limit:   defaultCacheSize,
	}
}

// Resolve returns the displayable source for ref. Empty and orphaned
// references resolve to (nil, nil); callers render a placeholder.
func (r *Resolver) Resolve(ctx context.Context, ref models.MediaRef) (*Source, error) {
	if ref.IsZero() {
		return nil, nil
	}
	switch ref.Kind {
	case models.MediaRemoteURL:
		return &Source{URL: ref.Value}, nil
	case models.MediaServerPath:
		return &Source{URL: r.ServerURL(ref.Value)}, nil
	case models.MediaLocalBlob:
		if src := r.cached(ref); src != nil {
			return src, nil
		}
		return r.fetch(ctx, ref)
	}
	return nil, fmt.Errorf("unsupported media reference %s", ref)
}

// ServerURL roots a server-relative path and joins it to the origin. Absolute
// http(s) values are returned unchanged.
func (r *Resolver) ServerURL(p string) string {
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return p
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return r.origin + p
}

// Prefetch resolves ref in the background so that a following Resolve is
// served from cache. Failures are logged and otherwise ignored. The returned
// channel is closed when the attempt is over.
func (r *Resolver) Prefetch(ctx context.Context, ref models.MediaRef) <-chan struct{} {
	done := make(chan struct{})
	if ref.Kind != models.MediaLocalBlob || r.cached(ref) != nil {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		src, err := r.fetch(ctx, ref)
		if err != nil {
			r.logger.Warn("Prefetch failed", zap.Stringer("ref", ref), zap.Error(err))
			return
		}
		if src == nil {
			r.logger.Debug("Prefetch found no media", zap.Stringer("ref", ref))
		}
	}()
	return done
}

func (r *Resolver) fetch(ctx context.Context, ref models.MediaRef) (*Source, error) {
	if r.fetcher == nil {
		return nil, nil
	}
	r.mu.Lock()
	epoch := r.epoch
	r.mu.Unlock()
	blob, err := r.fetcher.Fetch(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ref, err)
	}
	if blob == nil {
		return nil, nil
	}
	src := &Source{URL: "blob:storyweave/" + ref.Value, Blob: blob}
	r.store(ref, src, epoch)
	return src, nil
}

func (r *Resolver) cached(ref models.MediaRef) *Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache[ref]
}

func (r *Resolver) store(ref models.MediaRef, src *Source, epoch uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if epoch != r.epoch {
		return
	}
	if _, ok := r.cache[ref]; ok {
		return
	}
	r.cache[ref] = src
	r.order = append(r.order, ref)
	for len(r.order) > r.limit {
		delete(r.cache, r.order[0])
		r.order = r.order[1:]
	}
}

// Forget drops a cached payload, e.g. after its record was deleted.
func (r *Resolver) Forget(ref models.MediaRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.epoch++
	if _, ok := r.cache[ref]; !ok {
		return
	}
	delete(r.cache, ref)
	for i, o := range r.order {
		if o == ref {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}
