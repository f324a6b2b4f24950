package embedding

import (
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var cacheBucket = []byte("embeddings")

// Cache is a durable keyword -> vector store. Keywords are assumed
// semantically stable, so entries are never invalidated.
type Cache struct {
	db *bolt.DB
}

// OpenCache opens (or creates) the cache file at path.
func OpenCache(path string) (*Cache, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open embedding cache %q: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(cacheBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create embedding cache bucket: %w", err)
	}

	return &Cache{db: db}, nil
}

// Get returns the cached vector for a normalized keyword, if present.
func (c *Cache) Get(word string) ([]float64, bool, error) {
	if c == nil || c.db == nil {
		return nil, false, fmt.Errorf("embedding cache is not initialized")
	}

	var vector []float64
	found := false
	err := c.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(cacheBucket).Get([]byte(word))
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, &vector); err != nil {
			return fmt.Errorf("decode cached vector for %q: %w", word, err)
		}
		found = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return vector, found, nil
}

// PutBatch persists a batch of vectors in one write transaction, so at most
// one in-flight batch can be lost on crash.
func (c *Cache) PutBatch(entries map[string][]float64) error {
	if c == nil || c.db == nil {
		return fmt.Errorf("embedding cache is not initialized")
	}
	if len(entries) == 0 {
		return nil
	}

	return c.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(cacheBucket)
		for word, vector := range entries {
			raw, err := json.Marshal(vector)
			if err != nil {
				return fmt.Errorf("encode vector for %q: %w", word, err)
			}
			if err := bucket.Put([]byte(word), raw); err != nil {
				return fmt.Errorf("store vector for %q: %w", word, err)
			}
		}
		return nil
	})
}

// Len reports the number of cached entries.
func (c *Cache) Len() (int, error) {
	if c == nil || c.db == nil {
		return 0, fmt.Errorf("embedding cache is not initialized")
	}

	count := 0
	err := c.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(cacheBucket).Stats().KeyN
		return nil
	})
	return count, err
}

func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}
