package store

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/blevesearch/bleve/v2/mapping"
	bolt "go.etcd.io/bbolt"
)

// SchemaVersion is the schema the binary writes. Bump it with every new
// entry in migrations.
var SchemaVersion uint64 = 1

const schemaVersionKey = "schema_version"

type migration struct {
	version     uint64
	description string
	migrate     func(tx *bolt.Tx) error
}

// migrations run once each, in order, inside a single transaction.
var migrations = []migration{
	{version: 1, description: "baseline findings schema", migrate: func(tx *bolt.Tx) error { return nil }},
}

// RunMigrations brings the database up to SchemaVersion. A database written
// by a newer binary is rejected.
func RunMigrations(db *bolt.DB) error {
	current, err := GetSchemaVersion(db)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if current > SchemaVersion {
		return fmt.Errorf("database schema version %d is ahead of binary version %d (downgrade not supported)", current, SchemaVersion)
	}
	if current == SchemaVersion {
		return nil
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, m := range migrations {
			if m.version <= current {
				continue
			}
			storeLog.Printf("applying migration v%d: %s", m.version, m.description)
			if err := m.migrate(tx); err != nil {
				return fmt.Errorf("migration v%d (%s) failed: %w", m.version, m.description, err)
			}
		}
		return putSchemaVersion(tx, SchemaVersion)
	})
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// GetSchemaVersion returns the stored schema version, or 0 for a fresh
// database.
func GetSchemaVersion(db *bolt.DB) (uint64, error) {
	var version uint64
	err := db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(BucketMeta)
		if meta == nil {
			return nil
		}
		data := meta.Get([]byte(schemaVersionKey))
		if data == nil {
			return nil
		}
		if len(data) != 8 {
			return fmt.Errorf("corrupt schema_version: expected 8 bytes, got %d", len(data))
		}
		version = binary.BigEndian.Uint64(data)
		return nil
	})
	return version, err
}

func putSchemaVersion(tx *bolt.Tx, version uint64) error {
	meta := tx.Bucket(BucketMeta)
	if meta == nil {
		return fmt.Errorf("meta bucket not found")
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, version)
	return meta.Put([]byte(schemaVersionKey), buf)
}

// MappingHash is a SHA-256 digest of an index mapping, used to notice when
// the search index must be rebuilt.
func MappingHash(m mapping.IndexMapping) string {
	data, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%x", sha256.Sum256(data))
}
