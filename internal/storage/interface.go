package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ImageStore is the object storage used by upload and tweet handlers
type ImageStore interface {
	UploadImage(ctx context.Context, data []byte, userID, kind, originalFilename, contentType string) (*UploadResult, error)
	DeleteFile(ctx context.Context, key string) error
}

// Ensure S3Uploader implements ImageStore
var _ ImageStore = (*S3Uploader)(nil)

// MemoryStore is an in-process ImageStore for tests and local development
type MemoryStore struct {
	mu      sync.Mutex
	BaseURL string
	Objects map[string][]byte
	Deleted []string

	// UploadErr and DeleteErr force failures when set
	UploadErr error
	DeleteErr error
}

var _ ImageStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		BaseURL: "https://cdn.test",
		Objects: make(map[string][]byte),
	}
}

func (m *MemoryStore) UploadImage(_ context.Context, data []byte, userID, kind, _, contentType string) (*UploadResult, error) {
	if m.UploadErr != nil {
		return nil, m.UploadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := ObjectKey(kind, userID, contentType, time.Now().UTC())
	m.Objects[key] = data
	return &UploadResult{
		Key:    key,
		URL:    fmt.Sprintf("%s/%s", m.BaseURL, key),
		Bucket: "memory",
		Size:   int64(len(data)),
	}, nil
}

func (m *MemoryStore) DeleteFile(_ context.Context, key string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.Objects, key)
	m.Deleted = append(m.Deleted, key)
	return nil
}

// Has reports whether key is stored
func (m *MemoryStore) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Objects[key]
	return ok
}
