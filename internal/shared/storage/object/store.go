// Package object archives exported files by owner.
package object

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"cv-backend/internal/shared/util"
)

// Object describes a stored file.
type Object struct {
	Key         string `json:"key"`
	Size        int64  `json:"sizeBytes"`
	ContentType string `json:"contentType"`
}

// Store is implemented by the local filesystem and S3 backends.
type Store interface {
	Put(ctx context.Context, ownerID, fileName, contentType string, body io.Reader) (Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// BuildKey lays objects out as exports/<owner hash>/<utc stamp>_<file name>.
func BuildKey(ownerID, fileName string, at time.Time) (string, error) {
	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", fmt.Errorf("sanitize file name: %w", err)
	}
	if ownerID == "" {
		return "", fmt.Errorf("owner is required")
	}
	stamp := at.UTC().Format("20060102T150405.000Z")
	return path.Join("exports", util.HashKey(ownerID), stamp+"_"+name), nil
}
