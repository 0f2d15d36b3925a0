package data

import (
	"context"
	"errors"
)

var ErrBlobNotFound = errors.New("document not found")

// BlobStore is a versioned key/value store for whole documents. Put succeeds
// only when the stored version equals expectVersion (0 for a new key) and
// returns core.ErrVersionConflict otherwise.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, int64, error)
	Put(ctx context.Context, key string, body []byte, expectVersion int64) (int64, error)
	Close() error
}
