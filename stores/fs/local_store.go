package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// LocalStore is device storage kept as a single JSON file, by default
// ~/.config/<appName>/local.json
type LocalStore struct {
	mu     sync.RWMutex
	path   string
	values map[string]string
}

// localFile is the JSON structure stored on disk
type localFile struct {
	Values map[string]string `json:"values"`
}

// NewLocalStore opens (or prepares) the store at path. If path is empty it
// defaults to ~/.config/<appName>/local.json
func NewLocalStore(path string, appName string) (*LocalStore, error) {
	if path == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("could not determine config directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
		if appName == "" {
			appName = "recipeauth"
		}
		path = filepath.Join(configDir, appName, "local.json")
	}

	store := &LocalStore{path: path, values: make(map[string]string)}
	if err := store.load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return store, nil
}

// Path returns the file backing the store
func (s *LocalStore) Path() string { return s.path }

func (s *LocalStore) load() error {
	var file localFile
	if err := readJSONFile(s.path, &file); err != nil {
		if os.IsNotExist(err) {
			return err
		}
		return fmt.Errorf("failed to parse local store: %w", err)
	}
	if file.Values != nil {
		s.values = file.Values
	}
	return nil
}

// save writes the store to disk; callers hold the write lock
func (s *LocalStore) save() error {
	data, err := json.MarshalIndent(localFile{Values: s.values}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode local store: %w", err)
	}
	return writeAtomicFile(s.path, data)
}

// Get returns nil, nil when the key is absent
func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return nil, nil
	}
	return []byte(value), nil
}

func (s *LocalStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = string(value)
	return s.save()
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.save()
}

// Keys lists stored keys, mostly for diagnostics
func (s *LocalStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
