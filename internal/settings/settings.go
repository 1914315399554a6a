// Package settings stores display preferences in the persisted key-value
// table. Like task records, a stored settings document is completed from a
// default table on load and written back when anything was missing.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"taskgraph/internal/kvstorage"
)

// Table is the kvstorage table holding persisted documents.
const Table = "persisted"

// Key is the document key for the settings record.
const Key = "settings"

// ErrUnknownSetting is returned by Set for a key not in Defaults.
var ErrUnknownSetting = errors.New("unknown setting")

// Settings controls what list views show.
type Settings struct {
	ShowTags     bool `json:"show_tags" yaml:"show_tags" toml:"show_tags"`
	ShowParents  bool `json:"show_parents" yaml:"show_parents" toml:"show_parents"`
	ShowBlocked  bool `json:"show_blocked" yaml:"show_blocked" toml:"show_blocked"`
	ShowFinished bool `json:"show_finished" yaml:"show_finished" toml:"show_finished"`
}

// Defaults holds the value of every setting key when it has never been
// stored.
var Defaults = map[string]bool{
	"show_tags":     true,
	"show_parents":  true,
	"show_blocked":  true,
	"show_finished": false,
}

// Default returns the settings with every key at its default.
func Default() Settings {
	return Settings{
		ShowTags:     Defaults["show_tags"],
		ShowParents:  Defaults["show_parents"],
		ShowBlocked:  Defaults["show_blocked"],
		ShowFinished: Defaults["show_finished"],
	}
}

// Keys returns the setting keys, sorted.
func Keys() []string {
	keys := make([]string, 0, len(Defaults))
	for k := range Defaults {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Load reads the settings document. Keys missing from the stored document
// (or the whole document, on first use) take their defaults, and the
// completed document is written back.
func Load(ctx context.Context, kv kvstorage.KVStore) (Settings, error) {
	fields := make(map[string]json.RawMessage)

	data, err := kv.Get(ctx, Key)
	switch {
	case errors.Is(err, kvstorage.ErrKeyNotFound):
	case err != nil:
		return Settings{}, fmt.Errorf("reading settings: %w", err)
	default:
		if err := json.Unmarshal(data, &fields); err != nil {
			return Settings{}, fmt.Errorf("parsing settings: %w", err)
		}
	}

	filled := false
	for _, key := range Keys() {
		if _, ok := fields[key]; ok {
			continue
		}
		fields[key] = json.RawMessage(strconv.FormatBool(Defaults[key]))
		filled = true
	}

	encoded, err := json.Marshal(fields)
	if err != nil {
		return Settings{}, fmt.Errorf("encoding settings: %w", err)
	}
	var s Settings
	if err := json.Unmarshal(encoded, &s); err != nil {
		return Settings{}, fmt.Errorf("parsing settings: %w", err)
	}

	if filled {
		if err := Save(ctx, kv, s); err != nil {
			return Settings{}, err
		}
	}
	return s, nil
}

// Save replaces the stored settings document.
func Save(ctx context.Context, kv kvstorage.KVStore, s Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if err := kv.Set(ctx, Key, data, kvstorage.SetOptions{}); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	return nil
}

// Init writes the default settings document unless one is already stored.
// It reports whether it wrote the document.
func Init(ctx context.Context, kv kvstorage.KVStore) (bool, error) {
	data, err := json.MarshalIndent(Default(), "", "  ")
	if err != nil {
		return false, fmt.Errorf("encoding settings: %w", err)
	}
	err = kv.Set(ctx, Key, data, kvstorage.SetOptions{Exists: kvstorage.FailIfExists})
	if errors.Is(err, kvstorage.ErrAlreadyExists) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("writing settings: %w", err)
	}
	return true, nil
}

// Reset removes the stored settings document, so the next Load starts over
// from the defaults.
func Reset(ctx context.Context, kv kvstorage.KVStore) error {
	err := kv.Delete(ctx, Key)
	if err != nil && !errors.Is(err, kvstorage.ErrKeyNotFound) {
		return fmt.Errorf("removing settings: %w", err)
	}
	return nil
}

// Set changes one setting by key. value is parsed with strconv.ParseBool.
func (s *Settings) Set(key, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("setting %s: invalid value %q (must be true or false)", key, value)
	}
	switch key {
	case "show_tags":
		s.ShowTags = b
	case "show_parents":
		s.ShowParents = b
	case "show_blocked":
		s.ShowBlocked = b
	case "show_finished":
		s.ShowFinished = b
	default:
		return fmt.Errorf("%w: %q (valid: %v)", ErrUnknownSetting, key, Keys())
	}
	return nil
}

// Get returns one setting by key.
func (s Settings) Get(key string) (bool, error) {
	switch key {
	case "show_tags":
		return s.ShowTags, nil
	case "show_parents":
		return s.ShowParents, nil
	case "show_blocked":
		return s.ShowBlocked, nil
	case "show_finished":
		return s.ShowFinished, nil
	}
	return false, fmt.Errorf("%w: %q (valid: %v)", ErrUnknownSetting, key, Keys())
}

// Patch applies a partial update, as sent over HTTP.
type Patch struct {
	ShowTags     *bool `json:"show_tags,omitempty"`
	ShowParents  *bool `json:"show_parents,omitempty"`
	ShowBlocked  *bool `json:"show_blocked,omitempty"`
	ShowFinished *bool `json:"show_finished,omitempty"`
}

// Apply copies the non-nil fields of p into s.
func (p Patch) Apply(s *Settings) {
	if p.ShowTags != nil {
		s.ShowTags = *p.ShowTags
	}
	if p.ShowParents != nil {
		s.ShowParents = *p.ShowParents
	}
	if p.ShowBlocked != nil {
		s.ShowBlocked = *p.ShowBlocked
	}
	if p.ShowFinished != nil {
		s.ShowFinished = *p.ShowFinished
	}
}
