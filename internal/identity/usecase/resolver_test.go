package usecase

import (
	"context"
	"errors"
	"testing"

	identityrepo "github.com/KomaiX512/Accountmanager-sub004/internal/identity/repository"
	"github.com/KomaiX512/Accountmanager-sub004/pkg/blobstore"
	"github.com/KomaiX512/Accountmanager-sub004/pkg/platform"
)

type fakeLookup struct {
	usernames map[string]string
	err       error
	calls     int
}

func (f *fakeLookup) LookupProfile(_ context.Context, platformName, subjectID string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	username, ok := f.usernames[platformName+"/"+subjectID]
	if !ok {
		return "", platform.ErrNotFound
	}
	return username, nil
}

func TestResolveFromStore(t *testing.T) {
	ctx := context.Background()
	mappings := identityrepo.NewMappingRepository(blobstore.NewMemoryStore())
	lookup := &fakeLookup{}
	resolver := NewResolver(mappings, lookup)

	if err := resolver.Connect(ctx, "instagram", "R1", "brand"); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	mapping, err := resolver.Resolve(ctx, "instagram", "R1")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if mapping.Username != "brand" {
		t.Errorf("expected brand, got %s", mapping.Username)
	}
	if lookup.calls != 0 {
		t.Errorf("store hit must not call the platform, got %d calls", lookup.calls)
	}
}

func TestResolveFallbackLookup(t *testing.T) {
	ctx := context.Background()
	mappings := identityrepo.NewMappingRepository(blobstore.NewMemoryStore())
	lookup := &fakeLookup{usernames: map[string]string{"instagram/R1": "brand"}}
	resolver := NewResolver(mappings, lookup)

	mapping, err := resolver.Resolve(ctx, "instagram", "R1")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if mapping.Username != "brand" {
		t.Errorf("expected brand, got %s", mapping.Username)
	}
	if lookup.calls != 1 {
		t.Fatalf("expected one lookup call, got %d", lookup.calls)
	}

	// The recovered mapping is persisted; the next resolve skips the
	// platform entirely.
	if _, err := resolver.Resolve(ctx, "instagram", "R1"); err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if lookup.calls != 1 {
		t.Errorf("expected recovered mapping to be cached, got %d calls", lookup.calls)
	}
}

func TestResolveUnresolved(t *testing.T) {
	ctx := context.Background()
	mappings := identityrepo.NewMappingRepository(blobstore.NewMemoryStore())
	resolver := NewResolver(mappings, &fakeLookup{})

	_, err := resolver.Resolve(ctx, "instagram", "unknown")
	if !errors.Is(err, ErrUnresolved) {
		t.Errorf("expected ErrUnresolved, got %v", err)
	}
}

func TestResolveThrottledDefers(t *testing.T) {
	ctx := context.Background()
	mappings := identityrepo.NewMappingRepository(blobstore.NewMemoryStore())
	resolver := NewResolver(mappings, &fakeLookup{err: platform.ErrThrottled})

	_, err := resolver.Resolve(ctx, "instagram", "R1")
	if !errors.Is(err, ErrUnresolved) {
		t.Errorf("throttled lookup should surface as unresolved, got %v", err)
	}
}

func TestResolveNilLookup(t *testing.T) {
	ctx := context.Background()
	mappings := identityrepo.NewMappingRepository(blobstore.NewMemoryStore())
	resolver := NewResolver(mappings, nil)

	_, err := resolver.Resolve(ctx, "instagram", "R1")
	if !errors.Is(err, ErrUnresolved) {
		t.Errorf("expected ErrUnresolved without a lookup, got %v", err)
	}
}

func TestConnectConflict(t *testing.T) {
	ctx := context.Background()
	mappings := identityrepo.NewMappingRepository(blobstore.NewMemoryStore())
	resolver := NewResolver(mappings, nil)

	if err := resolver.Connect(ctx, "instagram", "R1", "brand"); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	// Same answer again is fine.
	if err := resolver.Connect(ctx, "instagram", "R1", "brand"); err != nil {
		t.Errorf("re-connecting the same username should be a no-op, got %v", err)
	}
	// A different answer is a conflict, never a silent merge.
	err := resolver.Connect(ctx, "instagram", "R1", "impostor")
	if !errors.Is(err, identityrepo.ErrMappingConflict) {
		t.Errorf("expected ErrMappingConflict, got %v", err)
	}

	mapping, _ := resolver.Resolve(ctx, "instagram", "R1")
	if mapping.Username != "brand" {
		t.Errorf("conflict must not overwrite, got %s", mapping.Username)
	}
}
