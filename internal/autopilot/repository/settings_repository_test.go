package repository

import (
	"context"
	"testing"
	"time"

	autopilotdomain "github.com/KomaiX512/Accountmanager-sub004/internal/autopilot/domain"
	"github.com/KomaiX512/Accountmanager-sub004/pkg/blobstore"
)

func TestSettingsDefaultOnFirstRead(t *testing.T) {
	ctx := context.Background()
	repo := NewSettingsRepository(blobstore.NewMemoryStore())

	settings, err := repo.Get(ctx, "instagram", "brand")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if settings.Enabled {
		t.Error("new account must start disabled")
	}
	reply, ok := settings.Capabilities[autopilotdomain.CapabilityAutoReply]
	if !ok {
		t.Fatal("expected autoReply capability in defaults")
	}
	if reply.Enabled {
		t.Error("capabilities must start disabled")
	}
	if reply.IntervalSeconds != autopilotdomain.DefaultAutoReplyInterval {
		t.Errorf("expected default interval %d, got %d", autopilotdomain.DefaultAutoReplyInterval, reply.IntervalSeconds)
	}

	// The default is persisted, so the account shows up in List.
	accounts, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(accounts) != 1 {
		t.Errorf("expected 1 account after first read, got %d", len(accounts))
	}
}

func TestSettingsSaveRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewSettingsRepository(blobstore.NewMemoryStore())

	settings, _ := repo.Get(ctx, "instagram", "brand")
	settings.Enabled = true
	capSettings := settings.Capabilities[autopilotdomain.CapabilityAutoSchedule]
	capSettings.Enabled = true
	capSettings.IntervalSeconds = 600
	settings.Capabilities[autopilotdomain.CapabilityAutoSchedule] = capSettings

	if err := repo.Save(ctx, settings); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := repo.Get(ctx, "instagram", "brand")
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if !loaded.Enabled {
		t.Error("enabled flag lost")
	}
	if loaded.Capabilities[autopilotdomain.CapabilityAutoSchedule].IntervalSeconds != 600 {
		t.Errorf("interval lost: %+v", loaded.Capabilities[autopilotdomain.CapabilityAutoSchedule])
	}
}

func TestUpdateLastRunPreservesFlags(t *testing.T) {
	ctx := context.Background()
	repo := NewSettingsRepository(blobstore.NewMemoryStore())

	settings, _ := repo.Get(ctx, "instagram", "brand")
	settings.Enabled = true
	capSettings := settings.Capabilities[autopilotdomain.CapabilityAutoReply]
	capSettings.Enabled = true
	settings.Capabilities[autopilotdomain.CapabilityAutoReply] = capSettings
	repo.Save(ctx, settings)

	at := time.Unix(1700000000, 0)
	if err := repo.UpdateLastRun(ctx, "instagram", "brand", autopilotdomain.CapabilityAutoReply, at); err != nil {
		t.Fatalf("update last run failed: %v", err)
	}

	loaded, _ := repo.Get(ctx, "instagram", "brand")
	reply := loaded.Capabilities[autopilotdomain.CapabilityAutoReply]
	if !reply.LastRunAt.Equal(at) {
		t.Errorf("expected last run %v, got %v", at, reply.LastRunAt)
	}
	if !reply.Enabled || !loaded.Enabled {
		t.Error("stamping a run must not touch enabled flags")
	}

	if err := repo.UpdateLastRun(ctx, "instagram", "brand", "teleport", at); err == nil {
		t.Error("expected error for unknown capability")
	}
}

// hookStore lets a test interleave a write inside another operation's
// read window.
type hookStore struct {
	blobstore.Store
	onGet func(key string)
}

func (s *hookStore) Get(ctx context.Context, key string) (*blobstore.Entry, error) {
	if s.onGet != nil {
		s.onGet(key)
	}
	return s.Store.Get(ctx, key)
}

func TestUpdateLastRunDoesNotRevertConcurrentDisable(t *testing.T) {
	ctx := context.Background()
	raw := blobstore.NewMemoryStore()
	hooked := &hookStore{Store: raw}
	repo := NewSettingsRepository(hooked)
	direct := NewSettingsRepository(raw)

	settings, _ := direct.Get(ctx, "instagram", "brand")
	settings.Enabled = true
	capSettings := settings.Capabilities[autopilotdomain.CapabilityAutoReply]
	capSettings.Enabled = true
	settings.Capabilities[autopilotdomain.CapabilityAutoReply] = capSettings
	if err := direct.Save(ctx, settings); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// The user turns everything off while the stamp's read-then-write
	// is in flight.
	fired := false
	hooked.onGet = func(key string) {
		if fired || key != blobstore.SettingsKey("instagram", "brand") {
			return
		}
		fired = true
		current, err := direct.Get(ctx, "instagram", "brand")
		if err != nil {
			t.Fatalf("concurrent get failed: %v", err)
		}
		current.Enabled = false
		reply := current.Capabilities[autopilotdomain.CapabilityAutoReply]
		reply.Enabled = false
		current.Capabilities[autopilotdomain.CapabilityAutoReply] = reply
		if err := direct.Save(ctx, current); err != nil {
			t.Fatalf("concurrent save failed: %v", err)
		}
	}

	at := time.Unix(1700000000, 0)
	if err := repo.UpdateLastRun(ctx, "instagram", "brand", autopilotdomain.CapabilityAutoReply, at); err != nil {
		t.Fatalf("update last run failed: %v", err)
	}
	if !fired {
		t.Fatal("interleaved save never ran")
	}

	loaded, _ := direct.Get(ctx, "instagram", "brand")
	if loaded.Enabled {
		t.Error("master-switch disable was reverted by the run stamp")
	}
	reply := loaded.Capabilities[autopilotdomain.CapabilityAutoReply]
	if reply.Enabled {
		t.Error("capability disable was reverted by the run stamp")
	}
	if !reply.LastRunAt.Equal(at) {
		t.Errorf("expected run stamp %v, got %v", at, reply.LastRunAt)
	}
}

func TestDecodeSettingsBackfillsNewCapabilities(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	repo := NewSettingsRepository(store)

	// An account written before a capability existed.
	store.Put(ctx, blobstore.SettingsKey("instagram", "old"),
		[]byte(`{"platform":"instagram","username":"old","enabled":true,"capabilities":{"autoReply":{"enabled":true,"interval_seconds":60}}}`), nil)

	settings, err := repo.Get(ctx, "instagram", "old")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !settings.Capabilities[autopilotdomain.CapabilityAutoReply].Enabled {
		t.Error("existing capability settings lost")
	}
	schedule, ok := settings.Capabilities[autopilotdomain.CapabilityAutoSchedule]
	if !ok {
		t.Fatal("missing capability should be backfilled with its default")
	}
	if schedule.Enabled || schedule.IntervalSeconds != autopilotdomain.DefaultAutoScheduleInterval {
		t.Errorf("backfilled capability should be the disabled default, got %+v", schedule)
	}
}
