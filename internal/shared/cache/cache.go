// Package cache holds the JSON key/value backends used for document snapshots.
package cache

import (
	"context"
	"time"
)

// JSON is the key/value contract shared by Redis and Memory.
type JSON interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
