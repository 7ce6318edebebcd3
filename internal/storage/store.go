// Package storage provides storage abstractions for the sync state.
package storage

import (
	"context"

	"github.com/jwulff/mylife-sync/internal/domain"
)

// Store is the interface for persistent storage.
type Store interface {
	// Configuration
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
	DeleteConfig(ctx context.Context, key string) error

	// Sync history
	SaveRun(ctx context.Context, run *domain.SyncRun) error
	GetRun(ctx context.Context, id string) (*domain.SyncRun, error)
	RecentRuns(ctx context.Context, limit int) ([]*domain.SyncRun, error)

	// Lifecycle
	Close() error
}

// Config keys.
const (
	// KeyPortalSession holds the serialized portal cookies.
	KeyPortalSession = "mylife.cookies"
)

// ErrNotFound is returned when a record is not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e ErrNotFound) Error() string {
	return e.Resource + " not found: " + e.ID
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	_, ok := err.(ErrNotFound)
	return ok
}
