package pkgcache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	dbFile        = "icond.pkg-map"
	bucketName    = "pkg_desktop"
	dbPermissions = 0600
)

// Cache persists the package-to-desktop-entry map across daemon runs
// using bbolt, so a slow package database is only paid for once per
// package set.
type Cache struct {
	db *bbolt.DB
}

// New creates or opens the cache database under the user cache directory.
func New() (*Cache, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user cache directory: %w", err)
	}
	return NewWithCacheDir(cacheDir)
}

// NewWithCacheDir creates or opens the cache database under the given
// directory. Used by tests.
func NewWithCacheDir(cacheDir string) (*Cache, error) {
	dir := filepath.Join(cacheDir, "softstation")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)

	db, err := bbolt.Open(dbPath, dbPermissions, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Cache{db: db}, nil
}

// Put records a package's desktop-entry path.
func (c *Cache) Put(pkg, path string) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucketName)
		}
		return b.Put([]byte(pkg), []byte(path))
	})
}

// Get returns the cached desktop-entry path for a package, if any.
func (c *Cache) Get(pkg string) (string, bool) {
	var path string
	c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		if val := b.Get([]byte(pkg)); val != nil {
			path = string(val)
		}
		return nil
	})
	return path, path != ""
}

// Delete removes a package's entry. Used when a cached path turned out to
// be stale.
func (c *Cache) Delete(pkg string) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(pkg))
	})
}

// All returns the whole cached map.
func (c *Cache) All() map[string]string {
	all := make(map[string]string)
	c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			all[string(k)] = string(v)
			return nil
		})
	})
	return all
}

// Close closes the database.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
