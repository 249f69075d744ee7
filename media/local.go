package media

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/xid"
	"go.uber.org/zap"

	"storyweave/models"
)

// Records is a key-object store of media records.
type Records interface {
	Put(ctx context.Context, rec *models.MediaRecord) error
	// Get returns (nil, nil) when id is unknown.
	Get(ctx context.Context, id string) (*models.MediaRecord, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Opener opens a Records backend. It runs on first use.
type Opener func(ctx context.Context) (Records, error)

// LocalStore keeps payloads in a local key-object store and hands out
// local blob ids.
type LocalStore struct {
	open   Opener
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	records Records
}

var (
	_ Store   = (*LocalStore)(nil)
	_ Remover = (*LocalStore)(nil)
)

// NewLocalStore returns a store backed by the Records open returns. A nil
// open means the host has no local store; every call then fails with
// models.ErrStorageUnavailable.
func NewLocalStore(open Opener, logger *zap.Logger) *LocalStore {
	return &LocalStore{open: open, logger: logger.Named("local-media"), now: time.Now}
}

func (s *LocalStore) db(ctx context.Context) (Records, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records != nil {
		return s.records, nil
	}
	if s.open == nil {
		return nil, fmt.Errorf("%w: no local media store", models.ErrStorageUnavailable)
	}
	r, err := s.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: open media store: %v", models.ErrStorageUnavailable, err)
	}
	s.records = r
	return r, nil
}

// Store writes f as a new record and returns its blob id.
func (s *LocalStore) Store(ctx context.Context, f File, t models.PageType) (models.MediaRef, error) {
	if !t.IsMedia() {
		return models.MediaRef{}, fmt.Errorf("%w: cannot store media for %s page", models.ErrValidation, t)
	}
	db, err := s.db(ctx)
	if err != nil {
		return models.MediaRef{}, err
	}
	mimeType := f.Mime
	if mimeType == "" {
		mimeType = SniffMime(f.Data, f.Name)
	}
	rec := &models.MediaRecord{
		ID:        xid.New().String(),
		Type:      t,
		FileName:  f.Name,
		Mime:      mimeType,
		CreatedAt: s.now().UTC(),
		Blob:      f.Data,
	}
	if err := db.Put(ctx, rec); err != nil {
		return models.MediaRef{}, fmt.Errorf("%w: put media record: %v", models.ErrStorageUnavailable, err)
	}
	s.logger.Debug("Stored media record", zap.String("id", rec.ID), zap.String("mime", rec.Mime), zap.Int("size", len(rec.Blob)))
	return models.LocalBlob(rec.ID), nil
}

// Fetch reads the record behind a local blob id; unknown ids yield (nil, nil).
func (s *LocalStore) Fetch(ctx context.Context, ref models.MediaRef) (*Blob, error) {
	if ref.Kind != models.MediaLocalBlob {
		return nil, fmt.Errorf("local store cannot fetch %s", ref)
	}
	rec, err := s.Record(ctx, ref.Value)
	if err != nil || rec == nil {
		return nil, err
	}
	return &Blob{FileName: rec.FileName, Mime: rec.Mime, Data: rec.Blob}, nil
}

// Record returns the full media record for id.
func (s *LocalStore) Record(ctx context.Context, id string) (*models.MediaRecord, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := db.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: get media record %s: %v", models.ErrStorageUnavailable, id, err)
	}
	return rec, nil
}

// Delete removes a record. Pages referencing it are left alone and resolve
// to no media once the resolver has forgotten it.
func (s *LocalStore) Delete(ctx context.Context, id string) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}
	if err := db.Delete(ctx, id); err != nil {
		return fmt.Errorf("%w: delete media record %s: %v", models.ErrStorageUnavailable, id, err)
	}
	return nil
}

func (s *LocalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records == nil {
		return nil
	}
	err := s.records.Close()
	s.records = nil
	return err
}
