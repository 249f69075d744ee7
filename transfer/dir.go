package transfer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ManifestName is the manifest file inside an export directory.
const ManifestName = "story.json"

// Dir is the directory capability used by Export and Import. Names are plain
// file names without any path component.
type Dir interface {
	ReadFile(ctx context.Context, name string) ([]byte, error)
	WriteFile(ctx context.Context, name string, data []byte) error
}

// OSDir is a Dir on the local file system.
type OSDir struct {
	root string
}

var _ Dir = (*OSDir)(nil)

func NewOSDir(root string) *OSDir {
	return &OSDir{root: root}
}

func (d *OSDir) Root() string { return d.root }

func (d *OSDir) path(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return filepath.Join(d.root, name), nil
}

func (d *OSDir) ReadFile(_ context.Context, name string) ([]byte, error) {
	p, err := d.path(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

// WriteFile creates the directory on first use and replaces name atomically.
func (d *OSDir) WriteFile(_ context.Context, name string, data []byte) error {
	p, err := d.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", d.root, err)
	}
	tmp, err := os.CreateTemp(d.root, "."+name+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}
