package store

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	bolt "go.etcd.io/bbolt"
)

// BoltCache persists values in one bbolt bucket, JSON encoded.
//
// Values go through a JSON round trip: a form value read back holds float64
// numbers and types.Blob leaves come back as plain objects.
type BoltCache[S any] struct {
	db     *bolt.DB
	bucket []byte
}

// DecodeError reports an entry whose stored bytes do not decode into the
// cache's value type, typically written by an older schema.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// OpenBoltCache opens (creating if needed) the database at path.
func OpenBoltCache[S any](path, bucket string) (*BoltCache[S], error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	c, err := NewBoltCache[S](db, bucket)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// NewBoltCache uses an already opened database. The caller keeps ownership.
func NewBoltCache[S any](db *bolt.DB, bucket string) (*BoltCache[S], error) {
	name := []byte(bucket)
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(name)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return &BoltCache[S]{db: db, bucket: name}, nil
}

func (c *BoltCache[S]) Close() error {
	return c.db.Close()
}

func (c *BoltCache[S]) Set(ctx context.Context, key string, val S) error {
	data, err := sonic.Marshal(val)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(c.bucket).Put([]byte(key), data)
	})
}

func (c *BoltCache[S]) Get(ctx context.Context, key string) (S, bool, error) {
	var (
		val   S
		found bool
	)
	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(c.bucket).Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		if err := sonic.Unmarshal(data, &val); err != nil {
			return &DecodeError{Key: key, Err: err}
		}
		return nil
	})
	if err != nil {
		var zero S
		return zero, false, err
	}
	return val, found, nil
}

func (c *BoltCache[S]) Del(ctx context.Context, key string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(c.bucket).Delete([]byte(key))
	})
}

func (c *BoltCache[S]) Exists(ctx context.Context, key string) (bool, error) {
	var found bool
	err := c.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(c.bucket).Get([]byte(key)) != nil
		return nil
	})
	return found, err
}

func (c *BoltCache[S]) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)
	err := c.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(c.bucket).Cursor()
		p := []byte(prefix)
		for k, _ := cursor.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = cursor.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	return keys, err
}

var _ Cache[int] = (*BoltCache[int])(nil)
