package data

import (
	"clouddb/internal/core"
	"context"
	"sync"
)

type memoryDoc struct {
	body    []byte
	version int64
}

// MemoryStore is a process-local BlobStore, used by tests and the memory
// driver.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string]memoryDoc
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]memoryDoc)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[key]
	if !ok {
		return nil, 0, ErrBlobNotFound
	}
	return append([]byte(nil), doc.body...), doc.version, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, body []byte, expectVersion int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.docs[key].version != expectVersion {
		return 0, core.ErrVersionConflict
	}
	next := expectVersion + 1
	s.docs[key] = memoryDoc{body: append([]byte(nil), body...), version: next}
	return next, nil
}

// Corrupt overwrites a document body without bumping its version.
func (s *MemoryStore) Corrupt(key string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.docs[key]
	doc.body = append([]byte(nil), body...)
	if doc.version == 0 {
		doc.version = 1
	}
	s.docs[key] = doc
}

func (s *MemoryStore) Close() error { return nil }
