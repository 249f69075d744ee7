package models

import "errors"

var (
	// ErrValidation blocks a mutation; the document stays unchanged.
	ErrValidation = errors.New("validation failed")

	// ErrStorageUnavailable means the local media store is missing or broken.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrNetwork covers failed uploads, saves and loads against the server.
	ErrNetwork = errors.New("network failure")

	ErrNotFound = errors.New("not found")

	// ErrFormat means an imported manifest failed shape validation.
	ErrFormat = errors.New("invalid manifest format")

	// ErrStaleRevision is returned when a save carries an older revision than
	// the one already stored.
	ErrStaleRevision = errors.New("stale revision")

	// ErrNoStory is returned by loaders when nothing has been saved yet.
	ErrNoStory = errors.New("no story")
)
