package blobstore

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get for a key that does not exist.
	ErrNotFound = errors.New("blobstore: key not found")
	// ErrKeyExists is returned by PutIfAbsent when the key is already taken.
	ErrKeyExists = errors.New("blobstore: key already exists")
)

// Entry is one stored blob together with its key and metadata.
type Entry struct {
	Key      string
	Value    []byte
	Metadata map[string]string
}

// Store is the durable object store boundary. Keys are namespaced by
// kind/platform/username (see the key helpers below).
type Store interface {
	// Get returns the blob stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (*Entry, error)
	// Put stores the blob, overwriting any existing value.
	Put(ctx context.Context, key string, value []byte, metadata map[string]string) error
	// PutIfAbsent stores the blob only when the key is free. It is the
	// atomic insert primitive backing event dedup and identity-mapping
	// conflict detection; returns ErrKeyExists when the key is taken.
	PutIfAbsent(ctx context.Context, key string, value []byte, metadata map[string]string) error
	// List returns all entries whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]*Entry, error)
	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Key helpers. Every stored kind lives under its own prefix so List
// can scan one account or one platform without touching the rest.

func EventKey(platform, username, externalID string) string {
	return fmt.Sprintf("events/%s/%s/%s", platform, username, externalID)
}

func EventPrefix(platform, username string) string {
	return fmt.Sprintf("events/%s/%s/", platform, username)
}

func EventPlatformPrefix(platform string) string {
	return fmt.Sprintf("events/%s/", platform)
}

func IdentityKey(platform, subjectID string) string {
	return fmt.Sprintf("identity/%s/%s", platform, subjectID)
}

func SettingsKey(platform, username string) string {
	return fmt.Sprintf("settings/%s/%s", platform, username)
}

func SettingsPrefix() string {
	return "settings/"
}

// LastRunKey holds one capability's run stamp. Stamps live outside the
// settings record so the scheduler and the settings handler never
// write the same key.
func LastRunKey(platform, username, capability string) string {
	return fmt.Sprintf("lastruns/%s/%s/%s", platform, username, capability)
}

func DraftKey(platform, username, draftID string) string {
	return fmt.Sprintf("drafts/%s/%s/%s", platform, username, draftID)
}

func DraftPrefix(platform, username string) string {
	return fmt.Sprintf("drafts/%s/%s/", platform, username)
}

func DeviceKey(platform, username, token string) string {
	return fmt.Sprintf("devices/%s/%s/%s", platform, username, token)
}

func DevicePrefix(platform, username string) string {
	return fmt.Sprintf("devices/%s/%s/", platform, username)
}
