package persist

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"storyweave/models"
)

const (
	StoryKey    = "storyweave-story-v1"
	SettingsKey = "storyweave-settings-v1"
)

// KVStore keeps the manifest as JSON under StoryKey. Local blob ids are kept
// in this form.
type KVStore struct {
	kv KV
}

var _ Store = (*KVStore)(nil)

func NewKVStore(kv KV) *KVStore {
	return &KVStore{kv: kv}
}

func (s *KVStore) Load(ctx context.Context) (*models.Manifest, error) {
	raw, ok, err := s.kv.Get(ctx, StoryKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	if !ok || raw == "" {
		return nil, models.ErrNoStory
	}
	var m models.Manifest
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("%w: decode stored story: %v", models.ErrFormat, err)
	}
	if len(m.Pages) == 0 {
		return nil, models.ErrNoStory
	}
	return &m, nil
}

func (s *KVStore) Save(ctx context.Context, m *models.Manifest) error {
	if raw, ok, err := s.kv.Get(ctx, StoryKey); err == nil && ok {
		var stored models.Manifest
		if json.Unmarshal([]byte(raw), &stored) == nil {
			if err := checkRevision(&stored, m); err != nil {
				return err
			}
		}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode story: %w", err)
	}
	if err := s.kv.Set(ctx, StoryKey, string(data)); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	return nil
}

// SettingsStore loads and saves player settings from a KV.
type SettingsStore struct {
	kv     KV
	logger *zap.Logger
}

func NewSettingsStore(kv KV, logger *zap.Logger) *SettingsStore {
	return &SettingsStore{kv: kv, logger: logger.Named("settings")}
}

// Load never fails: unreadable settings fall back to defaults field by field.
func (s *SettingsStore) Load(ctx context.Context) models.Settings {
	settings := models.DefaultSettings()
	raw, ok, err := s.kv.Get(ctx, SettingsKey)
	if err != nil {
		s.logger.Warn("Failed to read settings", zap.Error(err))
		return settings
	}
	if !ok {
		return settings
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		s.logger.Warn("Failed to decode settings", zap.Error(err))
		return settings
	}
	s.decodeField(fields, "autoPlay", &settings.AutoPlay)
	s.decodeField(fields, "autoPlayIntervalSec", &settings.AutoPlayIntervalSec)
	s.decodeField(fields, "textSize", &settings.TextSize)
	return settings.Normalize()
}

// decodeField leaves dst untouched when the field is absent or malformed.
func (s *SettingsStore) decodeField(fields map[string]json.RawMessage, key string, dst any) {
	raw, ok := fields[key]
	if !ok {
		return
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.logger.Warn("Ignoring malformed setting", zap.String("key", key), zap.Error(err))
	}
}

func (s *SettingsStore) Save(ctx context.Context, settings models.Settings) error {
	data, err := json.Marshal(settings.Normalize())
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := s.kv.Set(ctx, SettingsKey, string(data)); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
