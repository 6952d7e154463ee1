// Package storage keeps uploaded binary objects (profile pictures, message
// attachments) either on local disk or in an S3-compatible bucket.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Delete(ctx context.Context, key string) error
	// URL returns an address clients can fetch the object from.
	URL(ctx context.Context, key string) (string, error)
}

// NewKey builds a unique object key under prefix, e.g.
// "users/<id>/profile/2025/01/02/<uuid>".
func NewKey(prefix string, now time.Time) string {
	return path.Join(prefix, fmt.Sprintf("%04d/%02d/%02d", now.Year(), now.Month(), now.Day()), uuid.NewString())
}

func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." || part == "" {
			return false
		}
	}
	return true
}
