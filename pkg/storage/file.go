package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps every key in a single JSON document on disk
type FileStore struct {
	filePath string
	mu       sync.RWMutex
	values   map[string]json.RawMessage
}

// fileDocument represents the JSON structure for storage
type fileDocument struct {
	Values map[string]json.RawMessage `json:"values"`
}

// NewFileStore creates a new file store, loading the existing document if any
func NewFileStore(filePath string) (*FileStore, error) {
	if filePath == "" {
		return nil, fmt.Errorf("store file path is required")
	}

	s := &FileStore{
		filePath: filePath,
		values:   make(map[string]json.RawMessage),
	}

	// A missing file is created on first save
	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load store: %w", err)
	}

	return s, nil
}

// load reads the document from disk
func (s *FileStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to unmarshal store: %w", err)
	}

	s.values = doc.Values
	if s.values == nil {
		s.values = make(map[string]json.RawMessage)
	}

	return nil
}

// flush writes the document to disk. Caller must hold the write lock.
func (s *FileStore) flush() error {
	data, err := json.MarshalIndent(fileDocument{Values: s.values}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to temporary file first, then rename for atomic write
	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write store: %w", err)
	}

	if err := os.Rename(tempFile, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Load decodes the value stored under key
func (s *FileStore) Load(_ context.Context, key string, v any) (bool, error) {
	if key == "" {
		return false, ErrKeyRequired
	}

	s.mu.RLock()
	raw, ok := s.values[key]
	s.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("failed to decode %q: %w", key, err)
	}
	return true, nil
}

// Save stores v under key and flushes the document
func (s *FileStore) Save(_ context.Context, key string, v any) error {
	if key == "" {
		return ErrKeyRequired
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = raw
	return s.flush()
}

// Delete removes key. Deleting an absent key is not an error.
func (s *FileStore) Delete(_ context.Context, key string) error {
	if key == "" {
		return ErrKeyRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.flush()
}

// Close is a no-op, every write is flushed immediately
func (s *FileStore) Close() error {
	return nil
}

// FilePath returns the storage file path
func (s *FileStore) FilePath() string {
	return s.filePath
}
