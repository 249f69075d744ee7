package persist

import (
	"context"

	"storyweave/models"
)

// Store loads and saves a story manifest. Load returns models.ErrNoStory when
// nothing has been saved yet.
type Store interface {
	Load(ctx context.Context) (*models.Manifest, error)
	Save(ctx context.Context, m *models.Manifest) error
}

// KV is a string-keyed value store. Get reports ok=false for missing keys.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// checkRevision rejects an incoming manifest older than the stored one.
// Revision zero means "unversioned" and always passes.
func checkRevision(stored, incoming *models.Manifest) error {
	if stored == nil || incoming.Revision == 0 {
		return nil
	}
	if incoming.Revision < stored.Revision {
		return models.ErrStaleRevision
	}
	return nil
}
