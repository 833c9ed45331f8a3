// Package blob stores uploaded files (donation screenshots) outside the
// record store. S3Store talks to S3 or any S3-compatible server (MinIO);
// LocalStore writes to a directory for single-host setups.
package blob

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// Store saves and loads blobs by key. Deleting a missing key is not an
// error.
type Store interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, key string) error
}

// NewKey returns a fresh key of the form prefix/YYYY/MM/DD/<uuid>.
// Date prefixes keep object listings browsable by day.
func NewKey(prefix string, t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s", prefix, t.Year(), t.Month(), t.Day(), uuid.NewString())
}
