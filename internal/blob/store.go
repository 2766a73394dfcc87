package blob

import "context"

// Store persists a byte buffer under a folder and returns a public URL for it.
// The scraping pipeline treats both backends as the same capability.
type Store interface {
	Save(ctx context.Context, data []byte, folder, name string) (string, error)
}
