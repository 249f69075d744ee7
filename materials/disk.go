package materials

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"storyweave/models"
)

// Disk keeps materials as files in a directory.
type Disk struct {
	dir string
}

var _ Materials = (*Disk)(nil)

// NewDisk makes sure dir exists.
func NewDisk(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create materials dir: %w", err)
	}
	return &Disk{dir: dir}, nil
}

func (d *Disk) Dir() string { return d.dir }

// Put writes the file atomically.
func (d *Disk) Put(_ context.Context, name string, r io.Reader, _ int64, _ string) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: bad material name %q", models.ErrValidation, name)
	}
	dst := filepath.Join(d.dir, name)
	tmp, err := os.CreateTemp(d.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("open tmp: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close tmp: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename tmp: %w", err)
	}
	return nil
}

func (d *Disk) Open(_ context.Context, name string) (*Object, error) {
	if !ValidName(name) {
		return nil, fmt.Errorf("%w: %s", models.ErrNotFound, name)
	}
	f, err := os.Open(filepath.Join(d.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", models.ErrNotFound, name)
		}
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}
	if fi.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s", models.ErrNotFound, name)
	}
	return &Object{
		ReadSeekCloser: f,
		Size:           fi.Size(),
		ModTime:        fi.ModTime(),
		ContentType:    mime.TypeByExtension(filepath.Ext(name)),
	}, nil
}
