package notification

import (
	"context"
	"time"

	"github.com/KomaiX512/Accountmanager-sub004/pkg/blobstore"
)

// DeviceRepository stores FCM device registrations per account.
type DeviceRepository interface {
	Register(ctx context.Context, platform, username, token string) error
	Remove(ctx context.Context, platform, username, token string) error
	List(ctx context.Context, platform, username string) ([]string, error)
}

type blobDeviceRepository struct {
	store blobstore.Store
}

func NewDeviceRepository(store blobstore.Store) DeviceRepository {
	return &blobDeviceRepository{store: store}
}

func (r *blobDeviceRepository) Register(ctx context.Context, platform, username, token string) error {
	key := blobstore.DeviceKey(platform, username, token)
	metadata := map[string]string{"registered_at": time.Now().UTC().Format(time.RFC3339)}
	return r.store.Put(ctx, key, []byte(token), metadata)
}

func (r *blobDeviceRepository) Remove(ctx context.Context, platform, username, token string) error {
	return r.store.Delete(ctx, blobstore.DeviceKey(platform, username, token))
}

func (r *blobDeviceRepository) List(ctx context.Context, platform, username string) ([]string, error) {
	entries, err := r.store.List(ctx, blobstore.DevicePrefix(platform, username))
	if err != nil {
		return nil, err
	}
	tokens := make([]string, 0, len(entries))
	for _, entry := range entries {
		tokens = append(tokens, string(entry.Value))
	}
	return tokens, nil
}
