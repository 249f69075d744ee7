package persist

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"storyweave/models"
)

// Sequencer enforces last-write-wins over a Store. Manifests are stamped
// with increasing revisions in mutation order; writes are serialized and a
// manifest older than the last committed one is dropped instead of written.
type Sequencer struct {
	store  Store
	logger *zap.Logger

	mu   sync.Mutex
	next uint64

	writeMu   sync.Mutex
	committed uint64

	wg sync.WaitGroup
}

func NewSequencer(store Store, logger *zap.Logger) *Sequencer {
	return &Sequencer{store: store, logger: logger.Named("sequencer")}
}

// Seed continues numbering after a loaded revision.
func (s *Sequencer) Seed(rev uint64) {
	s.mu.Lock()
	if rev > s.next {
		s.next = rev
	}
	s.mu.Unlock()
	s.writeMu.Lock()
	if rev > s.committed {
		s.committed = rev
	}
	s.writeMu.Unlock()
}

// Stamp assigns the next revision to m.
func (s *Sequencer) Stamp(m *models.Manifest) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	m.Revision = s.next
	return m.Revision
}

// Save writes m unless a newer revision has already been committed. written
// is false when m was superseded.
func (s *Sequencer) Save(ctx context.Context, m *models.Manifest) (written bool, err error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if m.Revision <= s.committed {
		s.logger.Debug("Dropping superseded save", zap.Uint64("revision", m.Revision), zap.Uint64("committed", s.committed))
		return false, nil
	}
	if err := s.store.Save(ctx, m); err != nil {
		if errors.Is(err, models.ErrStaleRevision) {
			s.logger.Debug("Store rejected stale revision", zap.Uint64("revision", m.Revision))
			return false, nil
		}
		return false, err
	}
	s.committed = m.Revision
	return true, nil
}

// Go saves m in the background. done, when set, receives the outcome.
func (s *Sequencer) Go(ctx context.Context, m *models.Manifest, done func(written bool, err error)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		written, err := s.Save(ctx, m)
		if done != nil {
			done(written, err)
		}
	}()
}

// Wait blocks until every background save has finished.
func (s *Sequencer) Wait() {
	s.wg.Wait()
}

func (s *Sequencer) Committed() uint64 {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.committed
}
