// Package media keeps image bytes out of the persisted session record.
// Messages carry a short reference; the bytes live in a FileStore on local
// disk or in an S3-compatible bucket.
package media

import (
	"context"
	"io"
)

// FileStore is the blob backend under Store. Paths are forward-slash
// separated and relative to the store root.
type FileStore interface {
	// Read opens the named blob. A missing blob yields an error wrapping
	// os.ErrNotExist.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write stores data under path, replacing any previous content.
	Write(ctx context.Context, path, contentType string, data []byte) error

	// Delete removes the named blob. Missing blobs are not an error.
	Delete(ctx context.Context, path string) error
}
