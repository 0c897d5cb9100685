package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var swapsBucket = []byte("swaps")

// BoltStore keeps values in a single bbolt bucket
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the database at path
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt store: %w", err)
	}

	tx, err := db.Begin(true)
	if err != nil {
		db.Close()
		return nil, err
	}
	defer tx.Rollback()
	if _, err := tx.CreateBucketIfNotExists(swapsBucket); err != nil {
		db.Close()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (bs *BoltStore) Load(_ context.Context, key string, v any) (bool, error) {
	if key == "" {
		return false, ErrKeyRequired
	}

	var raw []byte
	err := bs.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(swapsBucket)
		if b == nil {
			return fmt.Errorf("bucket nil")
		}
		if data := b.Get([]byte(key)); data != nil {
			raw = append([]byte(nil), data...)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("failed to decode %q: %w", key, err)
	}
	return true, nil
}

func (bs *BoltStore) Save(_ context.Context, key string, v any) error {
	if key == "" {
		return ErrKeyRequired
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}

	return bs.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(swapsBucket)
		if b == nil {
			return fmt.Errorf("bucket nil")
		}
		return b.Put([]byte(key), raw)
	})
}

func (bs *BoltStore) Delete(_ context.Context, key string) error {
	if key == "" {
		return ErrKeyRequired
	}

	return bs.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(swapsBucket)
		if b == nil {
			return fmt.Errorf("bucket nil")
		}
		return b.Delete([]byte(key))
	})
}

func (bs *BoltStore) Close() error {
	return bs.db.Close()
}
