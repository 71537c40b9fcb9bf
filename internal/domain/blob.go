package domain

import (
	"context"
	"io"
)

// BlobWriter uploads objects to blob storage. Used to archive superseded
// model artifacts before an estimation run overwrites them.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
