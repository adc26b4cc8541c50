package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/nemonet1337/nexinventory/pkg/inventory"
)

// ErrClosed is returned by a memory storage after Close
var ErrClosed = errors.New("ストレージはクローズされています")

// MemoryStorage implements the Storage interface in process memory
// プロセス内メモリを使用したStorageインターフェースの実装
type MemoryStorage struct {
	mu     sync.Mutex
	docs   map[inventory.Collection][]byte
	closed bool
}

var _ inventory.Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty memory storage
// 空のメモリストレージを作成
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{docs: make(map[inventory.Collection][]byte)}
}

// Load returns copies of the requested documents
func (s *MemoryStorage) Load(ctx context.Context, collections ...inventory.Collection) (map[inventory.Collection][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.snapshot(collections), nil
}

// Update runs fn under the storage lock and writes its result
func (s *MemoryStorage) Update(ctx context.Context, collections []inventory.Collection, fn inventory.UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	out, err := fn(s.snapshot(collections))
	if err != nil {
		return err
	}
	for col, raw := range out {
		s.docs[col] = append([]byte(nil), raw...)
	}
	return nil
}

// Delete removes the named documents
func (s *MemoryStorage) Delete(ctx context.Context, collections ...inventory.Collection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for _, col := range collections {
		delete(s.docs, col)
	}
	return nil
}

// Ping reports whether the storage is open
func (s *MemoryStorage) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Close marks the storage closed
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MemoryStorage) snapshot(collections []inventory.Collection) map[inventory.Collection][]byte {
	out := make(map[inventory.Collection][]byte, len(collections))
	for _, col := range collections {
		if raw, ok := s.docs[col]; ok {
			out[col] = append([]byte(nil), raw...)
		}
	}
	return out
}
