package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	autopilotdomain "github.com/KomaiX512/Accountmanager-sub004/internal/autopilot/domain"
	"github.com/KomaiX512/Accountmanager-sub004/pkg/blobstore"
)

// SettingsRepository stores per-account autopilot settings. Read once
// per scheduler tick per account.
type SettingsRepository interface {
	// Get returns the account's settings, creating the all-disabled
	// default on first read.
	Get(ctx context.Context, platform, username string) (*autopilotdomain.Settings, error)
	// Save overwrites the account's settings.
	Save(ctx context.Context, settings *autopilotdomain.Settings) error
	// List returns settings for every known account.
	List(ctx context.Context) ([]*autopilotdomain.Settings, error)
	// UpdateLastRun stamps one capability's last run time. Stamps are
	// stored under their own keys and never rewrite the flag fields,
	// which stay owned by the user.
	UpdateLastRun(ctx context.Context, platform, username, capability string, at time.Time) error
}

type blobSettingsRepository struct {
	store blobstore.Store
}

func NewSettingsRepository(store blobstore.Store) SettingsRepository {
	return &blobSettingsRepository{store: store}
}

func (r *blobSettingsRepository) Get(ctx context.Context, platform, username string) (*autopilotdomain.Settings, error) {
	entry, err := r.store.Get(ctx, blobstore.SettingsKey(platform, username))
	if errors.Is(err, blobstore.ErrNotFound) {
		settings := autopilotdomain.DefaultSettings(platform, username)
		if err := r.Save(ctx, settings); err != nil {
			return nil, err
		}
		return settings, nil
	}
	if err != nil {
		return nil, err
	}
	settings, err := decodeSettings(entry.Value)
	if err != nil {
		return nil, err
	}
	if err := r.loadLastRuns(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

func (r *blobSettingsRepository) Save(ctx context.Context, settings *autopilotdomain.Settings) error {
	if settings.Platform == "" || settings.Username == "" {
		return fmt.Errorf("settings are missing platform or username")
	}
	// Run stamps live under their own keys; the record only carries the
	// user-owned fields.
	record := *settings
	record.Capabilities = make(map[string]autopilotdomain.CapabilitySettings, len(settings.Capabilities))
	for name, capSettings := range settings.Capabilities {
		capSettings.LastRunAt = time.Time{}
		record.Capabilities[name] = capSettings
	}
	raw, err := json.Marshal(&record)
	if err != nil {
		return err
	}
	return r.store.Put(ctx, blobstore.SettingsKey(settings.Platform, settings.Username), raw, nil)
}

func (r *blobSettingsRepository) List(ctx context.Context) ([]*autopilotdomain.Settings, error) {
	entries, err := r.store.List(ctx, blobstore.SettingsPrefix())
	if err != nil {
		return nil, err
	}
	out := make([]*autopilotdomain.Settings, 0, len(entries))
	for _, entry := range entries {
		settings, err := decodeSettings(entry.Value)
		if err != nil {
			return nil, fmt.Errorf("corrupt settings at %s: %w", entry.Key, err)
		}
		if err := r.loadLastRuns(ctx, settings); err != nil {
			return nil, err
		}
		out = append(out, settings)
	}
	return out, nil
}

func (r *blobSettingsRepository) UpdateLastRun(ctx context.Context, platform, username, capability string, at time.Time) error {
	settings, err := r.Get(ctx, platform, username)
	if err != nil {
		return err
	}
	if _, ok := settings.Capabilities[capability]; !ok {
		return fmt.Errorf("unknown capability %q", capability)
	}
	return r.store.Put(ctx, blobstore.LastRunKey(platform, username, capability),
		[]byte(at.UTC().Format(time.RFC3339Nano)), nil)
}

func (r *blobSettingsRepository) loadLastRuns(ctx context.Context, settings *autopilotdomain.Settings) error {
	for name, capSettings := range settings.Capabilities {
		entry, err := r.store.Get(ctx, blobstore.LastRunKey(settings.Platform, settings.Username, name))
		if errors.Is(err, blobstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		at, err := time.Parse(time.RFC3339Nano, string(entry.Value))
		if err != nil {
			return fmt.Errorf("corrupt run stamp for %s/%s %s: %w", settings.Platform, settings.Username, name, err)
		}
		capSettings.LastRunAt = at
		settings.Capabilities[name] = capSettings
	}
	return nil
}

func decodeSettings(raw []byte) (*autopilotdomain.Settings, error) {
	var settings autopilotdomain.Settings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return nil, err
	}
	if settings.Capabilities == nil {
		settings.Capabilities = make(map[string]autopilotdomain.CapabilitySettings)
	}
	// Accounts created before a capability existed pick up its default.
	defaults := autopilotdomain.DefaultSettings(settings.Platform, settings.Username)
	for name, capSettings := range defaults.Capabilities {
		if _, ok := settings.Capabilities[name]; !ok {
			settings.Capabilities[name] = capSettings
		}
	}
	return &settings, nil
}
