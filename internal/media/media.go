// Package media defines the contracts for capturing and durably storing image
// bytes, plus the S3-backed blob store used in production.
package media

import "context"

// Capture is a transient local handle on raw image bytes obtained from a
// camera or picker. It owns no durable resources.
type Capture struct {
	Data        []byte
	ContentType string
}

// Capturer obtains raw image bytes from a platform capture primitive.
type Capturer interface {
	Capture(ctx context.Context) (Capture, error)
}

// BlobStore persists raw bytes under a key and returns a durable reference.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, ref string) error
}
