package notification

import (
	"context"
	"testing"

	"github.com/KomaiX512/Accountmanager-sub004/pkg/blobstore"
)

func TestDeviceRegisterListRemove(t *testing.T) {
	ctx := context.Background()
	devices := NewDeviceRepository(blobstore.NewMemoryStore())

	if err := devices.Register(ctx, "instagram", "brand", "tok1"); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	devices.Register(ctx, "instagram", "brand", "tok2")
	devices.Register(ctx, "instagram", "other", "tok3")

	tokens, err := devices.List(ctx, "instagram", "brand")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(tokens) != 2 {
		t.Fatalf("expected 2 tokens for brand, got %d", len(tokens))
	}

	// Re-registering the same token is idempotent.
	devices.Register(ctx, "instagram", "brand", "tok1")
	tokens, _ = devices.List(ctx, "instagram", "brand")
	if len(tokens) != 2 {
		t.Errorf("re-register duplicated a token, got %d", len(tokens))
	}

	if err := devices.Remove(ctx, "instagram", "brand", "tok1"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	tokens, _ = devices.List(ctx, "instagram", "brand")
	if len(tokens) != 1 || tokens[0] != "tok2" {
		t.Errorf("expected only tok2 left, got %v", tokens)
	}
}
