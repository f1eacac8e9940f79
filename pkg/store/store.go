// Package store persists scan findings in a bbolt database with a bleve
// full-text index alongside it.
package store

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/blevesearch/bleve/v2"
	bolt "go.etcd.io/bbolt"
)

var storeLog = log.New(os.Stderr, "[smelly:store] ", log.Ltime)

// Common errors.
var (
	ErrNotFound = errors.New("not found")

	errSearchClosed = errors.New("findings search index is closed")
)

// Bucket names.
var (
	BucketFindings = []byte("findings")
	BucketMeta     = []byte("meta")
)

// SearchDirName is the bleve index directory, created next to the database.
const SearchDirName = "search.bleve"

// DefaultOpenTimeout bounds the wait for the database file lock held by
// another smelly process (for example a running watch).
const DefaultOpenTimeout = 1 * time.Second

// Store keeps findings keyed by ULID and mirrors them into a search index.
type Store struct {
	db         *bolt.DB
	search     bleve.Index
	dbPath     string
	searchPath string
}

// Open opens or creates the findings store at dbPath. Its parent directory
// is created when missing.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	searchPath := filepath.Join(dir, SearchDirName)

	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: DefaultOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open findings db %s: %w", dbPath, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{BucketFindings, BucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize findings buckets: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("findings schema migration failed: %w", err)
	}

	index, created, err := openOrCreateSearchIndex(searchPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create/open findings search index: %w", err)
	}

	s := &Store{
		db:         db,
		search:     index,
		dbPath:     dbPath,
		searchPath: searchPath,
	}

	if err := s.ensureSearchMapping(created); err != nil {
		s.Close()
		return nil, fmt.Errorf("findings search mapping check failed: %w", err)
	}

	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.dbPath }

// Close closes the search index and the database.
func (s *Store) Close() error {
	var errs []error
	if s.search != nil {
		if err := s.search.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close findings search: %w", err))
		}
		s.search = nil
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close findings db: %w", err))
		}
		s.db = nil
	}
	return errors.Join(errs...)
}

// GetMeta reads a string value from the meta bucket.
func (s *Store) GetMeta(key string) (string, error) {
	var val string
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(BucketMeta).Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		val = string(data)
		return nil
	})
	return val, err
}

// SetMeta writes a string value to the meta bucket.
func (s *Store) SetMeta(key, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(BucketMeta).Put([]byte(key), []byte(value))
	})
}
