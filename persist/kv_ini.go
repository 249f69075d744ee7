package persist

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-ini/ini"
)

const iniSection = "storyweave"

// INIKV keeps key-value pairs in an INI file. Every Set rewrites the file.
type INIKV struct {
	path string
	mu   sync.Mutex
}

var _ KV = (*INIKV)(nil)

func NewINIKV(path string) *INIKV {
	return &INIKV{path: path}
}

func (k *INIKV) load() (*ini.File, error) {
	f, err := ini.LoadSources(ini.LoadOptions{Loose: true, IgnoreInlineComment: true}, k.path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", k.path, err)
	}
	return f, nil
}

func (k *INIKV) Get(_ context.Context, key string) (string, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	f, err := k.load()
	if err != nil {
		return "", false, err
	}
	sec := f.Section(iniSection)
	if !sec.HasKey(key) {
		return "", false, nil
	}
	return sec.Key(key).String(), true, nil
}

func (k *INIKV) Set(_ context.Context, key, value string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	f, err := k.load()
	if err != nil {
		return err
	}
	f.Section(iniSection).Key(key).SetValue(value)
	return k.save(f)
}

func (k *INIKV) Delete(_ context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	f, err := k.load()
	if err != nil {
		return err
	}
	f.Section(iniSection).DeleteKey(key)
	return k.save(f)
}

func (k *INIKV) save(f *ini.File) error {
	if err := os.MkdirAll(filepath.Dir(k.path), 0o750); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp := k.path + ".tmp"
	if err := f.SaveTo(tmp); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", k.path, err)
	}
	if err := os.Rename(tmp, k.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename tmp: %w", err)
	}
	return nil
}
