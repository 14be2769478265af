package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a key is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// ErrCorrupt is returned when a stored document cannot be decoded.
var ErrCorrupt = errors.New("storage: corrupt document")

// Store is a key-value store for JSON documents. Keys are slash separated.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	// List returns every key starting with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// LoadJSON decodes the document at key into out. A document that fails to
// decode is copied to key+".corrupt" and ErrCorrupt is returned.
func LoadJSON(ctx context.Context, s Store, key string, out any) error {
	data, err := s.Load(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		backup := key + ".corrupt"
		if saveErr := s.Save(ctx, backup, data); saveErr != nil {
			return fmt.Errorf("%w: %s: %v (backup failed: %v)", ErrCorrupt, key, err, saveErr)
		}
		return fmt.Errorf("%w: %s (backed up to %s): %v", ErrCorrupt, key, backup, err)
	}
	return nil
}

// SaveJSON encodes v with indentation and stores it at key.
func SaveJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.Save(ctx, key, data)
}
