// ABOUTME: File backed credential store with change watching
// ABOUTME: External edits to the JSON file are picked up without a restart
package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/visual-lock/visuallock/internal/logger"
)

// StorageKey is the JSON key holding the override
const StorageKey = "vl_sc_client_id"

type fileDoc struct {
	ClientID string `json:"vl_sc_client_id"`
}

// FileStore keeps the override in a small JSON document
type FileStore struct {
	path string

	mu      sync.RWMutex
	value   string
	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewFileStore opens the store at path. A missing file is an empty store.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path}
	v, err := s.read()
	if err != nil {
		return nil, err
	}
	s.value = v
	return s, nil
}

// Path returns the backing file location
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) read() (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read credential file: %w", err)
	}
	if len(data) == 0 {
		return "", nil
	}
	var doc fileDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("failed to parse credential file: %w", err)
	}
	return doc.ClientID, nil
}

// Load returns the cached override
func (s *FileStore) Load(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value, nil
}

// Save writes the override atomically and updates the cache
func (s *FileStore) Save(ctx context.Context, value string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create credential directory: %w", err)
	}
	data, err := json.MarshalIndent(fileDoc{ClientID: value}, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace credential file: %w", err)
	}

	s.mu.Lock()
	s.value = value
	s.mu.Unlock()

	logger.Info("Saved credential override", logger.String("path", s.path))
	return nil
}

// Watch reloads the cache whenever the file changes on disk.
// The directory is watched so editors that replace the file are seen too.
func (s *FileStore) Watch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		return nil
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create credential directory: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	s.watcher = w
	s.done = make(chan struct{})
	s.wg.Add(1)
	go s.watchLoop(w, s.done)
	return nil
}

func (s *FileStore) watchLoop(w *fsnotify.Watcher, done <-chan struct{}) {
	defer s.wg.Done()
	name := filepath.Clean(s.path)
	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			s.reload()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Warn("Credential watcher error", logger.ErrorField(err))
		case <-done:
			return
		}
	}
}

func (s *FileStore) reload() {
	v, err := s.read()
	if err != nil {
		// Partial writes are retried on the next event
		logger.Debug("Credential reload skipped", logger.ErrorField(err))
		return
	}
	s.mu.Lock()
	changed := v != s.value
	s.value = v
	s.mu.Unlock()
	if changed {
		logger.Info("Credential override changed on disk")
	}
}

// Close stops the watcher
func (s *FileStore) Close() error {
	s.mu.Lock()
	w := s.watcher
	done := s.done
	s.watcher = nil
	s.mu.Unlock()
	if w == nil {
		return nil
	}
	close(done)
	err := w.Close()
	s.wg.Wait()
	return err
}
