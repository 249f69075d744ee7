package story

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyweave/media"
	"storyweave/models"
	"storyweave/persist"
)

const (
	WelcomeText        = "Welcome! Add pages with the editor to build your story."
	welcomeDurationSec = 5

	saveTimeout = 30 * time.Second
)

// ErrPageChanged is returned when the current page moved while an operation
// was suspended.
var ErrPageChanged = errors.New("current page changed")

// Renderer receives a fresh View after every change.
type Renderer interface {
	OnChange(v View)
}

type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

// Notice is a user-facing message.
type Notice struct {
	Level   Level
	Message string
	Err     error
}

type Notifier interface {
	Notify(n Notice)
}

// Options wires a Session to its collaborators. Store is required.
type Options struct {
	Store    persist.Store
	Settings *persist.SettingsStore
	Media    media.Store
	Resolver *media.Resolver
	Renderer Renderer
	Notifier Notifier
	Clock    clock.Clock
	Logger   *zap.Logger
	// MediaDir is the server directory manifest file names are relative to.
	MediaDir string
	// KeepBlobIDs stores local blob ids in saved manifests. Only local
	// persistence can make use of them.
	KeepBlobIDs bool
}

// Session owns the story document, settings and autoplay timer of one
// player. All mutations go through it; a single lock serializes them.
type Session struct {
	store       persist.Store
	settingsKV  *persist.SettingsStore
	media       media.Store
	resolver    *media.Resolver
	renderer    Renderer
	notifier    Notifier
	logger      *zap.Logger
	keepBlobIDs bool

	seq   *persist.Sequencer
	timer *Timer

	mu        sync.Mutex
	doc       *Document
	settings  models.Settings
	renderGen uint64
	closed    bool

	renderMu sync.Mutex
}

// Open loads settings and the stored story. A story that cannot be loaded
// is reported and replaced by the welcome page.
func Open(ctx context.Context, opts Options) (*Session, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("story session needs a store")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("session")
	if opts.MediaDir == "" {
		opts.MediaDir = "materials"
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = media.NewResolver("", opts.Media, logger)
	}

	s := &Session{
		store:       opts.Store,
		settingsKV:  opts.Settings,
		media:       opts.Media,
		resolver:    resolver,
		renderer:    opts.Renderer,
		notifier:    opts.Notifier,
		logger:      logger,
		keepBlobIDs: opts.KeepBlobIDs,
		seq:         persist.NewSequencer(opts.Store, logger),
		settings:    models.DefaultSettings(),
	}
	s.timer = NewTimer(opts.Clock, s.elapsed)
	if s.settingsKV != nil {
		s.settings = s.settingsKV.Load(ctx)
	}

	var pages []models.Page
	m, err := s.store.Load(ctx)
	switch {
	case errors.Is(err, models.ErrNoStory):
		logger.Info("No stored story, starting with the welcome page")
	case err != nil:
		logger.Warn("Failed to load story", zap.Error(err))
		s.notify(LevelWarning, "Could not load the saved story; starting fresh", err)
	default:
		pages = models.ManifestToPages(m, opts.MediaDir)
		s.seq.Seed(m.Revision)
		logger.Info("Loaded story", zap.Int("pages", len(pages)), zap.Uint64("revision", m.Revision))
	}
	if len(pages) == 0 {
		pages = []models.Page{WelcomePage()}
	}
	s.doc = NewDocument(pages)

	s.mu.Lock()
	s.restartTimerLocked()
	s.mu.Unlock()
	s.render(ctx)
	return s, nil
}

// WelcomePage is the page a new story starts with.
func WelcomePage() models.Page {
	return models.Draft{
		Type:        models.PageText,
		Text:        WelcomeText,
		DurationSec: models.Seconds(welcomeDurationSec),
	}.Page(uuid.NewString())
}

// Close stops autoplay and waits for pending saves.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.timer.Cancel()
	s.mu.Unlock()
	s.seq.Wait()
	s.logger.Debug("Session closed", zap.Uint64("committed", s.seq.Committed()))
}

// Flush waits for pending saves without closing the session.
func (s *Session) Flush() {
	s.seq.Wait()
}

func (s *Session) AddPage(ctx context.Context, d models.Draft) (models.Page, error) {
	return s.mutate(ctx, "add page", func(doc *Document) (models.Page, error) {
		return doc.AddPage(d)
	})
}

func (s *Session) ReplaceCurrent(ctx context.Context, d models.Draft) (models.Page, error) {
	return s.mutate(ctx, "replace page", func(doc *Document) (models.Page, error) {
		return doc.ReplaceCurrent(d)
	})
}

// DeleteCurrent removes the current page. Media the page referenced is kept.
func (s *Session) DeleteCurrent(ctx context.Context) (models.Page, error) {
	return s.mutate(ctx, "delete page", func(doc *Document) (models.Page, error) {
		return doc.DeleteCurrent()
	})
}

// ReplacePage replaces the page with the given id and makes it current. It
// fails with ErrPageChanged when the page no longer exists.
func (s *Session) ReplacePage(ctx context.Context, id string, d models.Draft) (models.Page, error) {
	return s.mutate(ctx, "replace page", func(doc *Document) (models.Page, error) {
		if err := d.Validate(); err != nil {
			return models.Page{}, err
		}
		if err := selectPage(doc, id); err != nil {
			return models.Page{}, err
		}
		return doc.ReplaceCurrent(d)
	})
}

// DeletePage deletes the page with the given id.
func (s *Session) DeletePage(ctx context.Context, id string) (models.Page, error) {
	return s.mutate(ctx, "delete page", func(doc *Document) (models.Page, error) {
		if err := selectPage(doc, id); err != nil {
			return models.Page{}, err
		}
		return doc.DeleteCurrent()
	})
}

// selectPage moves the cursor to id.
func selectPage(doc *Document, id string) error {
	i := doc.IndexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: page %s no longer exists", ErrPageChanged, id)
	}
	return doc.SetCurrentIndex(i)
}

// ReplaceAll swaps the whole story, e.g. after an import.
func (s *Session) ReplaceAll(ctx context.Context, pages []models.Page) error {
	_, err := s.mutate(ctx, "replace story", func(doc *Document) (models.Page, error) {
		doc.ReplaceAll(pages)
		p, _ := doc.Current()
		return p, nil
	})
	return err
}

// ReplaceCurrentMedia stores f and points the current page at it. The page
// is only updated if it is still current once the upload has finished.
func (s *Session) ReplaceCurrentMedia(ctx context.Context, f media.File) (models.Page, error) {
	s.mu.Lock()
	before, ok := s.doc.Current()
	s.mu.Unlock()
	if !ok || !before.Type.IsMedia() {
		err := fmt.Errorf("%w: current page does not hold media", models.ErrValidation)
		s.fail("replace media", err)
		return models.Page{}, err
	}
	ref, err := s.AttachMedia(ctx, f, before.Type)
	if err != nil {
		return models.Page{}, err
	}
	return s.mutate(ctx, "replace media", func(doc *Document) (models.Page, error) {
		cur, ok := doc.Current()
		if !ok || cur.ID != before.ID {
			return models.Page{}, fmt.Errorf("%w during upload of %s", ErrPageChanged, f.Name)
		}
		return doc.ReplaceCurrent(models.Draft{Type: cur.Type, Media: ref, DurationSec: cur.DurationSec})
	})
}

func (s *Session) mutate(ctx context.Context, op string, fn func(doc *Document) (models.Page, error)) (models.Page, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return models.Page{}, fmt.Errorf("%s: session closed", op)
	}
	p, err := fn(s.doc)
	if err != nil {
		s.mu.Unlock()
		s.fail(op, err)
		return models.Page{}, err
	}
	m := models.PagesToManifest(s.doc.Pages(), s.keepBlobIDs)
	s.seq.Stamp(m)
	s.restartTimerLocked()
	s.mu.Unlock()

	s.save(ctx, m)
	s.render(ctx)
	return p, nil
}

// save runs in the background and outlives ctx.
func (s *Session) save(ctx context.Context, m *models.Manifest) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	s.seq.Go(ctx, m, func(written bool, err error) {
		defer cancel()
		if err != nil {
			s.logger.Error("Failed to save story", zap.Uint64("revision", m.Revision), zap.Error(err))
			s.notify(LevelError, "Saving the story failed; use save to retry", err)
			return
		}
		if written {
			s.logger.Debug("Saved story", zap.Uint64("revision", m.Revision), zap.Int("pages", len(m.Pages)))
		}
	})
}

// Save writes the current story synchronously. It is the retry path after a
// failed background save.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	m := models.PagesToManifest(s.doc.Pages(), s.keepBlobIDs)
	s.seq.Stamp(m)
	s.mu.Unlock()
	if _, err := s.seq.Save(ctx, m); err != nil {
		s.fail("save story", err)
		return err
	}
	return nil
}

// SetCurrentIndex moves the cursor. Navigation is not persisted.
func (s *Session) SetCurrentIndex(ctx context.Context, i int) error {
	s.mu.Lock()
	err := s.doc.SetCurrentIndex(i)
	if err == nil {
		s.restartTimerLocked()
	}
	s.mu.Unlock()
	if err != nil {
		s.fail("go to page", err)
		return err
	}
	s.render(ctx)
	return nil
}

// Advance moves step pages forward (or backward when negative) with
// wrap-around.
func (s *Session) Advance(ctx context.Context, step int) {
	s.mu.Lock()
	moved := s.doc.Advance(step)
	if moved {
		s.restartTimerLocked()
	}
	s.mu.Unlock()
	if moved {
		s.render(ctx)
	}
}

// elapsed advances autoplay. It is ignored when the timer was re-armed or
// cancelled between the countdown ending and the session lock being taken.
func (s *Session) elapsed(pageID string, gen uint64) {
	s.mu.Lock()
	cur, ok := s.doc.Current()
	if s.closed || !ok || cur.ID != pageID || !s.settings.AutoPlay || !s.timer.Current(gen) {
		s.mu.Unlock()
		return
	}
	s.doc.Advance(1)
	s.restartTimerLocked()
	s.mu.Unlock()
	s.render(context.Background())
}

func (s *Session) restartTimerLocked() {
	cur, ok := s.doc.Current()
	if s.closed || !ok || !s.settings.AutoPlay {
		s.timer.Cancel()
		return
	}
	s.timer.Arm(cur.ID, models.SecondsToDuration(cur.Duration(s.settings.Normalize().AutoPlayIntervalSec)))
}

// AttachMedia stores f and returns the reference to put into a draft. No
// page is changed.
func (s *Session) AttachMedia(ctx context.Context, f media.File, t models.PageType) (models.MediaRef, error) {
	if s.media == nil {
		err := fmt.Errorf("%w: no media store configured", models.ErrStorageUnavailable)
		s.fail("attach media", err)
		return models.MediaRef{}, err
	}
	ref, err := s.media.Store(ctx, f, t)
	if err != nil {
		s.fail("attach media", err)
		return models.MediaRef{}, err
	}
	s.logger.Info("Attached media", zap.String("file", f.Name), zap.Stringer("ref", ref))
	return ref, nil
}

// DeleteMedia removes a locally stored payload. Pages still pointing at it
// render the media placeholder from then on.
func (s *Session) DeleteMedia(ctx context.Context, ref models.MediaRef) error {
	if ref.Kind != models.MediaLocalBlob {
		err := fmt.Errorf("%w: only local media can be deleted, not %s", models.ErrValidation, ref)
		s.fail("delete media", err)
		return err
	}
	rm, ok := s.media.(media.Remover)
	if !ok {
		err := fmt.Errorf("%w: media store cannot delete records", models.ErrStorageUnavailable)
		s.fail("delete media", err)
		return err
	}
	if err := rm.Delete(ctx, ref.Value); err != nil {
		s.fail("delete media", err)
		return err
	}
	s.resolver.Forget(ref)
	s.logger.Info("Deleted media", zap.Stringer("ref", ref))
	s.render(ctx)
	return nil
}

func (s *Session) Settings() models.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// UpdateSettings applies fn, persists the result and restarts autoplay.
func (s *Session) UpdateSettings(ctx context.Context, fn func(*models.Settings)) error {
	s.mu.Lock()
	next := s.settings
	fn(&next)
	next = next.Normalize()
	s.settings = next
	s.restartTimerLocked()
	s.mu.Unlock()

	s.render(ctx)
	if s.settingsKV == nil {
		return nil
	}
	if err := s.settingsKV.Save(ctx, next); err != nil {
		s.fail("save settings", err)
		return err
	}
	return nil
}

func (s *Session) Pages() []models.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Pages()
}

func (s *Session) Current() (models.Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Current()
}

func (s *Session) TimerState() TimerState {
	return s.timer.State()
}

// View returns an unresolved snapshot; Source is always nil.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return buildView(s.doc, s.settings)
}

// Resolver is the resolver the session renders with.
func (s *Session) Resolver() *media.Resolver {
	return s.resolver
}

// render resolves the current page outside the session lock and hands the
// view to the renderer unless a newer change has happened meanwhile.
func (s *Session) render(ctx context.Context) {
	s.mu.Lock()
	s.renderGen++
	gen := s.renderGen
	v := buildView(s.doc, s.settings)
	next, hasNext := s.doc.Next()
	s.mu.Unlock()

	if v.Page != nil && v.Page.Type.IsMedia() {
		src, err := s.resolver.Resolve(ctx, v.Page.Media)
		if err != nil {
			s.logger.Warn("Failed to resolve media", zap.Stringer("ref", v.Page.Media), zap.Error(err))
		}
		v.Source = src
		if src == nil {
			v.Placeholder = MediaPlaceholder
		}
	}
	if hasNext && v.Page != nil && next.ID != v.Page.ID {
		s.resolver.Prefetch(context.WithoutCancel(ctx), next.Media)
	}

	if s.renderer == nil {
		return
	}
	s.renderMu.Lock()
	defer s.renderMu.Unlock()
	s.mu.Lock()
	stale := gen != s.renderGen
	s.mu.Unlock()
	if stale {
		s.logger.Debug("Dropping outdated render", zap.Uint64("generation", gen))
		return
	}
	s.renderer.OnChange(v)
}

func (s *Session) fail(op string, err error) {
	level := LevelError
	if errors.Is(err, models.ErrValidation) || errors.Is(err, ErrPageChanged) {
		level = LevelWarning
	}
	s.logger.Debug("Operation failed", zap.String("op", op), zap.Error(err))
	s.notify(level, op+" failed", err)
}

func (s *Session) notify(level Level, msg string, err error) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(Notice{Level: level, Message: msg, Err: err})
}
