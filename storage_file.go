package outfit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DefaultFileStoreVersion is the on-disk format version written by FileStorage.
const DefaultFileStoreVersion = 1

type fileStoreData struct {
	Version int               `json:"version"`
	Entries map[string]string `json:"entries"`
}

// FileStorage persists session keys in a single JSON file. Every write goes
// through a temp file, fsync and rename so the file is never half-written.
type FileStorage struct {
	mu   sync.RWMutex
	path string
	data *fileStoreData
}

// NewFileStorage creates or opens a store at the given path.
// If the file doesn't exist, a new empty store is created.
// If the directory doesn't exist, it is created with 0700 permissions.
//
// A file that exists but cannot be decoded is reported as ErrStoreCorrupted.
func NewFileStorage(path string) (*FileStorage, error) {
	s := &FileStorage{
		path: path,
		data: emptyFileStoreData(),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return s, nil
}

func emptyFileStoreData() *fileStoreData {
	return &fileStoreData{
		Version: DefaultFileStoreVersion,
		Entries: make(map[string]string),
	}
}

func (s *FileStorage) load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	data, err := decodeFileStore(raw)
	if err != nil {
		return err
	}
	s.data = data
	return nil
}

// decodeFileStore parses a store document. An empty document is an empty store.
func decodeFileStore(raw []byte) (*fileStoreData, error) {
	data := emptyFileStoreData()
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreCorrupted, err)
	}
	if data.Version > DefaultFileStoreVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrStoreCorrupted, data.Version)
	}
	if data.Entries == nil {
		data.Entries = make(map[string]string)
	}
	return data, nil
}

// writeLocked persists next and swaps it in only after it is on disk.
// Must be called with write lock held.
func (s *FileStorage) writeLocked(next *fileStoreData) error {
	raw, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := replaceFile(s.path, raw); err != nil {
		return fmt.Errorf("%w: %v", ErrStorePersist, err)
	}
	s.data = next
	return nil
}

// replaceFile writes raw next to path and renames it into place, so readers
// see either the old document or the new one.
func replaceFile(path string, raw []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = tmp.Chmod(0600); err != nil {
		return err
	}
	if _, err = tmp.Write(raw); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *FileStorage) cloneLocked() *fileStoreData {
	next := &fileStoreData{
		Version: DefaultFileStoreVersion,
		Entries: make(map[string]string, len(s.data.Entries)),
	}
	for k, v := range s.data.Entries {
		next.Entries[k] = v
	}
	return next
}

// Path returns the store file path.
func (s *FileStorage) Path() string {
	return s.path
}

// Get implements Storage.
func (s *FileStorage) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data.Entries[key]
	return v, ok, nil
}

// SetMany implements Storage.
func (s *FileStorage) SetMany(_ context.Context, kv map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cloneLocked()
	for k, v := range kv {
		next.Entries[k] = v
	}
	return s.writeLocked(next)
}

// DeleteMany implements Storage.
func (s *FileStorage) DeleteMany(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cloneLocked()
	changed := false
	for _, k := range keys {
		if _, ok := next.Entries[k]; ok {
			delete(next.Entries, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.writeLocked(next)
}
