// Package handoff passes data between the converter and the 3D editor
// through a small local key/value store.
package handoff

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Candseven88/3D-Logo-Maker/internal/utils"
	"github.com/Candseven88/3D-Logo-Maker/pkg/export"
)

// Well-known keys read by the 3D editor and the converter.
const (
	KeySVGData          = "svgData"
	KeyFileName         = "fileName"
	KeyPendingImageFile = "pendingImageFile"
	KeyPendingImageName = "pendingImageName"
)

// ErrNotFound is returned by Get for absent keys.
var ErrNotFound = errors.New("handoff key not found")

// Store is a string key/value store
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Remove(key string) error
}

// FileStore keeps one file per key inside a directory.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create handoff directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, utils.SanitizeFilename(key))
}

// Get implements Store
func (s *FileStore) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return string(data), nil
}

// Set implements Store. Values are written to a temporary file and renamed
// into place so readers never observe a partial value.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.path(key)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, []byte(value), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

// Remove implements Store. Removing an absent key is not an error.
func (s *FileStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

// MemoryStore is an in-process Store
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

// Get implements Store
func (m *MemoryStore) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set implements Store
func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// Remove implements Store
func (m *MemoryStore) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// SendToEditor stores the exported SVG and its file name for the 3D editor.
func SendToEditor(s Store, blob *export.Blob) error {
	if err := s.Set(KeySVGData, string(blob.Data)); err != nil {
		return err
	}
	return s.Set(KeyFileName, blob.Name)
}

// Receive returns the SVG and file name left for the 3D editor.
func Receive(s Store) (svgData, fileName string, err error) {
	if svgData, err = s.Get(KeySVGData); err != nil {
		return "", "", err
	}
	fileName, err = s.Get(KeyFileName)
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	return svgData, fileName, err
}

// LeavePending stores an image data URL for the converter to pick up.
func LeavePending(s Store, name, dataURL string) error {
	if err := s.Set(KeyPendingImageFile, dataURL); err != nil {
		return err
	}
	return s.Set(KeyPendingImageName, name)
}

// TakePending returns the pending image and removes it from the store, so
// it is consumed at most once. ok is false when nothing is pending.
func TakePending(s Store) (name, dataURL string, ok bool, err error) {
	dataURL, err = s.Get(KeyPendingImageFile)
	if errors.Is(err, ErrNotFound) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, err
	}
	name, err = s.Get(KeyPendingImageName)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", "", false, err
	}

	if err := s.Remove(KeyPendingImageFile); err != nil {
		return "", "", false, err
	}
	if err := s.Remove(KeyPendingImageName); err != nil {
		return "", "", false, err
	}
	return name, dataURL, true, nil
}
