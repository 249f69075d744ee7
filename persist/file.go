package persist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"

	"storyweave/models"
)

// FileStore keeps the manifest in a JSON file, story.json in the materials
// directory.
type FileStore struct {
	path string
	mu   sync.Mutex
}

var _ Store = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the manifest. A missing or empty file is ErrNoStory.
func (s *FileStore) Load(_ context.Context) (*models.Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileStore) read() (*models.Manifest, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, models.ErrNoStory
		}
		return nil, fmt.Errorf("open story: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read story: %w", err)
	}
	if len(data) == 0 {
		return nil, models.ErrNoStory
	}
	var m models.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode story: %w", err)
	}
	return &m, nil
}

// Save writes the manifest atomically. An older revision than the stored one
// is rejected with ErrStaleRevision.
func (s *FileStore) Save(_ context.Context, m *models.Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// an unreadable file is simply overwritten
	stored, _ := s.read()
	if err := checkRevision(stored, m); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open tmp: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode story: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close tmp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename tmp: %w", err)
	}
	return nil
}
