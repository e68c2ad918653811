package storage

import (
	"errors"
	"sync"
)

// MemStore is an in-process core.Storage. Two sessions sharing one
// MemStore behave like two clients on the same shared store, which is
// what tests and single-process demos need.
type MemStore struct {
	mu   sync.Mutex
	data map[string]string
	subs map[string][]chan struct{}
}

func NewMemStore() *MemStore {
	return &MemStore{
		data: make(map[string]string),
		subs: make(map[string][]chan struct{}),
	}
}

func (s *MemStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

// Set stores the value and signals subscribers. The non-blocking sends
// stay under the lock so a concurrent Watch cancel cannot close a channel
// mid-send.
func (s *MemStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	for _, ch := range s.subs[key] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

func (s *MemStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *MemStore) Watch(key string) (<-chan struct{}, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, nil, errors.New("mem store not initialized")
	}
	ch := make(chan struct{}, 1)
	s.subs[key] = append(s.subs[key], ch)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			subs := s.subs[key]
			for i, c := range subs {
				if c == ch {
					s.subs[key] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
			close(ch)
		})
	}
	return ch, cancel, nil
}
