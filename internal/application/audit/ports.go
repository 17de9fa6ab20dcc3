package audit

import (
	"context"
	"io"
	"time"
)

// AttachmentStorage stores completion photos in object storage.
// Keys are opaque to the store; the service builds them per tenant and audit.
type AttachmentStorage interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	// DownloadURL returns a time-limited link to the object
	DownloadURL(ctx context.Context, key string) (string, time.Time, error)
	Delete(ctx context.Context, key string) error
}
