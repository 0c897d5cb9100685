package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	BackendFile = "file"
	BackendBolt = "bolt"

	DefaultFileName = ".wallet-swap-state.json"
	DefaultBoltName = ".wallet-swap.db"
)

// ErrKeyRequired is returned when a store operation is given an empty key.
var ErrKeyRequired = errors.New("storage key is required")

// Store is a persisted key-value store holding opaque JSON values.
type Store interface {
	// Load decodes the value stored under key into v. It reports false when
	// the key is absent.
	Load(ctx context.Context, key string, v any) (bool, error)
	Save(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open creates the store for the configured backend. An empty path selects
// the backend's default file in the home directory.
func Open(backend, path string) (Store, error) {
	switch backend {
	case "", BackendFile:
		if path == "" {
			p, err := defaultPath(DefaultFileName)
			if err != nil {
				return nil, err
			}
			path = p
		}
		return NewFileStore(path)
	case BackendBolt:
		if path == "" {
			p, err := defaultPath(DefaultBoltName)
			if err != nil {
				return nil, err
			}
			path = p
		}
		return NewBoltStore(path)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", backend)
	}
}

func defaultPath(name string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, name), nil
}
