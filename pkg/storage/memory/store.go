package memory

import (
	"bytes"
	"context"
	"io"
	"maps"
	"slices"
	"sync"

	"orphansweep/pkg/storage"
)

// Store 是 storage.Store 的内存实现
// 用于测试以及本地演练；并发安全
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte

	// 故障注入：key -> 该 key 在 Get/Delete 时返回的错误
	getErrs    map[string]error
	deleteErrs map[string]error
}

func NewStore() *Store {
	return &Store{
		objects:    make(map[string][]byte),
		getErrs:    make(map[string]error),
		deleteErrs: make(map[string]error),
	}
}

// Put 写入对象 (测试灌数据用)
func (s *Store) Put(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = slices.Clone(data)
}

// Has 检查对象是否存在
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok
}

// Keys 返回当前全部 key (升序)
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.objects))
}

// FailGet 让之后对 key 的 Get 返回 err
func (s *Store) FailGet(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getErrs[key] = err
}

// FailDelete 让之后对 key 的 Delete 返回 err
func (s *Store) FailDelete(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteErrs[key] = err
}

func (s *Store) ListKeys(ctx context.Context, fn func(key string) error) error {
	for _, k := range s.Keys() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(k); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.getErrs[key]; err != nil {
		return nil, err
	}
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *Store) Delete(ctx context.Context, keys []string) (map[string]error, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	failures := make(map[string]error)
	for _, k := range keys {
		if err := s.deleteErrs[k]; err != nil {
			failures[k] = err
			continue
		}
		delete(s.objects, k)
	}
	return failures, nil
}

// 编译期检查
var _ storage.Store = (*Store)(nil)
