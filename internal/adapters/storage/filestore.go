// Package storage provides core.Storage implementations: a file-backed
// store shared between client processes on one device, and an in-memory
// store for tests and single-process setups.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const fileExt = ".json"

// FileStore keeps one file per key under a shared directory. Every client
// process opens the same directory; an fsnotify watch on it is the
// cross-context change signal. Writes are write-then-rename so a reader
// never observes a half-written value.
type FileStore struct {
	dir     string
	watcher *fsnotify.Watcher

	mu     sync.Mutex
	subs   map[string][]chan struct{}
	closed bool
}

func Open(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir %s: %w", dir, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch store dir %s: %w", dir, err)
	}
	s := &FileStore{
		dir:     dir,
		watcher: watcher,
		subs:    make(map[string][]chan struct{}),
	}
	go s.loop()
	log.Info().Str("module", "adapters.storage").Str("dir", dir).Msg("file store opened")
	return s, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+fileExt)
}

func (s *FileStore) Get(key string) (string, bool, error) {
	b, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(b), true, nil
}

func (s *FileStore) Set(key, value string) error {
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, []byte(value), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(key))
}

func (s *FileStore) Remove(key string) error {
	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Watch subscribes to changes of key. The writer's own process receives
// its writes too; callers rely on the anti-echo rule to ignore them.
func (s *FileStore) Watch(key string) (<-chan struct{}, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, nil, errors.New("file store closed")
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

func (s *FileStore) loop() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			if !strings.HasSuffix(name, fileExt) {
				continue // in-flight .tmp files
			}
			s.notify(strings.TrimSuffix(name, fileExt))
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Str("module", "adapters.storage").Msg("watcher error")
		}
	}
}

func (s *FileStore) notify(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs[key] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Close stops the watcher. Outstanding Watch cancels remain safe to call.
func (s *FileStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.watcher.Close()
}
