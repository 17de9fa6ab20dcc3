package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/assetaudit/backend/internal/application/audit"
)

var _ audit.AttachmentStorage = (*MemoryAttachmentStorage)(nil)

// MemoryAttachmentStorage keeps attachments in process memory.
// Used in development and tests when no object store is configured.
type MemoryAttachmentStorage struct {
	BaseURL string

	mu      sync.RWMutex
	objects map[string]storedObject
}

type storedObject struct {
	data        []byte
	contentType string
}

// NewMemoryAttachmentStorage creates an empty in-memory store
func NewMemoryAttachmentStorage() *MemoryAttachmentStorage {
	return &MemoryAttachmentStorage{
		BaseURL: "https://storage.example.com",
		objects: make(map[string]storedObject),
	}
}

// Put stores the body under key
func (m *MemoryAttachmentStorage) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if key == "" {
		return errEmptyKey
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, body)
	if err != nil {
		return fmt.Errorf("failed to read attachment: %w", err)
	}
	if size >= 0 && n != size {
		return fmt.Errorf("attachment size mismatch: declared %d, read %d", size, n)
	}

	m.mu.Lock()
	m.objects[key] = storedObject{data: buf.Bytes(), contentType: contentType}
	m.mu.Unlock()
	return nil
}

// DownloadURL returns a fake link for a stored key
func (m *MemoryAttachmentStorage) DownloadURL(ctx context.Context, key string) (string, time.Time, error) {
	if key == "" {
		return "", time.Time{}, errEmptyKey
	}
	expiresAt := time.Now().Add(15 * time.Minute)
	return m.BaseURL + "/" + key + "?expires=" + expiresAt.UTC().Format(time.RFC3339), expiresAt, nil
}

// Delete removes key; missing keys are ignored
func (m *MemoryAttachmentStorage) Delete(ctx context.Context, key string) error {
	if key == "" {
		return errEmptyKey
	}
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

// Get returns a stored object
func (m *MemoryAttachmentStorage) Get(key string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	return obj.data, obj.contentType, ok
}

// Len returns the number of stored objects
func (m *MemoryAttachmentStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
