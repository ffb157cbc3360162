package memory

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/madeyra2980/backend-form/pkg/carcheck"
)

// Backend is an in-memory implementation of the carcheck.BlobStore interface
type Backend struct {
	mu              sync.RWMutex
	objects         map[string][]byte
	objectsMimeType map[string]string
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects:         make(map[string][]byte),
		objectsMimeType: make(map[string]string),
	}
}

// Upload stores content under key
func (b *Backend) Upload(ctx context.Context, key string, reader io.Reader, mimeType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[key] = data
	b.objectsMimeType[key] = mimeType
	return nil
}

// Download returns a reader over a copy of the stored content
func (b *Backend) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.objects[key]
	if !exists {
		return nil, carcheck.ErrBlobNotFound
	}

	return io.NopCloser(bytes.NewReader(bytes.Clone(data))), nil
}

// Delete removes stored content
func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[key]; !exists {
		return carcheck.ErrBlobNotFound
	}

	delete(b.objects, key)
	delete(b.objectsMimeType, key)
	return nil
}

// MimeType returns the MIME type recorded for key
func (b *Backend) MimeType(key string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	mimeType, ok := b.objectsMimeType[key]
	return mimeType, ok
}

// Len returns the number of stored blobs
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.objects)
}
