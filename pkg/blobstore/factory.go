package blobstore

import (
	"fmt"
	"log"

	"gorm.io/gorm"
)

// NewStore selects the store backend from configuration. The memory
// backend keeps nothing across restarts and exists for development and
// tests only.
func NewStore(backend string, db *gorm.DB) (Store, error) {
	switch backend {
	case "postgres", "":
		if db == nil {
			return nil, fmt.Errorf("postgres blobstore requires a database connection")
		}
		return NewGormStore(db)
	case "memory":
		log.Println("[Blobstore] Using in-memory backend, data will not survive restarts")
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", backend)
	}
}
