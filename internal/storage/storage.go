package storage

import (
	"context"
	"io"
)

// FileStore persists uploaded photos under slash-separated logical paths
// such as uploads/campaign_1/van_2/initial_1700000000_0a1b2c3d.png.
type FileStore interface {
	Put(ctx context.Context, path string, body io.Reader, contentType string) error
	Delete(ctx context.Context, path string) error
	// URL returns where a client can fetch the file stored at path.
	URL(path string) string
}
