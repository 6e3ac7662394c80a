// Package storage abstracts the object store used to stage inbound media
// while it is analyzed.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotConfigured is returned when no object store has been configured.
var ErrNotConfigured = errors.New("object storage is not configured")

// Provider abstracts object storage operations.
type Provider interface {
	// Put writes data to storage under the given key.
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	// URL returns a time-limited link for a storage key. The link must be
	// reachable without credentials until ttl elapses.
	URL(ctx context.Context, key string, ttl time.Duration) (string, error)
	// Delete removes the object at key.
	Delete(ctx context.Context, key string) error
	// ListOlderThan returns keys of staged objects last modified before cutoff.
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]string, error)
}
