package media

import (
	"context"

	"storyweave/models"
)

// File is a binary payload handed to a Store.
type File struct {
	Name string
	Mime string
	Data []byte
}

// Blob is a payload read back from a Store.
type Blob struct {
	FileName string
	Mime     string
	Data     []byte
}

// Fetcher retrieves the payload behind a media reference. A missing payload
// is reported as (nil, nil).
type Fetcher interface {
	Fetch(ctx context.Context, ref models.MediaRef) (*Blob, error)
}

// Store persists payloads and hands back references usable by pages. Every
// call creates a new independent record; nothing is deduplicated.
type Store interface {
	Fetcher
	Store(ctx context.Context, f File, t models.PageType) (models.MediaRef, error)
}

// Remover is implemented by stores whose records can be deleted by id.
type Remover interface {
	Delete(ctx context.Context, id string) error
}
