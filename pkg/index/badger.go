package index

import (
	"context"
	"fmt"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// DefaultBadgerDir is the directory, relative to the managed folder, used by
// BadgerStore when no explicit path is configured.
const DefaultBadgerDir = ".index.badger"

// keyPrefix namespaces index entries inside the database.
var keyPrefix = []byte("index/")

// BadgerStoreConfig configures a BadgerStore.
type BadgerStoreConfig struct {
	// DBPath is the directory where BadgerDB keeps its files.
	DBPath string `mapstructure:"db_path"`

	// InMemory runs BadgerDB without touching disk. Only useful in tests.
	InMemory bool `mapstructure:"in_memory"`
}

// BadgerStore persists entries in an embedded BadgerDB database.
//
// Each entry is one key ("index/<id>") holding the relative path. Writes use
// SyncWrites so Append is durable when it returns, matching the text store.
type BadgerStore struct {
	db   *badger.DB
	path string
}

// OpenBadgerStore opens (or creates) a BadgerDB index. An empty DBPath
// defaults to root/.index.badger.
func OpenBadgerStore(ctx context.Context, root string, cfg BadgerStoreConfig) (*BadgerStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = filepath.Join(root, DefaultBadgerDir)
	}

	opts := badger.DefaultOptions(dbPath).
		WithLoggingLevel(badger.WARNING).
		WithCompression(options.None).
		WithSyncWrites(true)
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("").WithInMemory(true)
		dbPath = ":memory:"
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", dbPath, err)
	}

	return &BadgerStore{db: db, path: dbPath}, nil
}

// Load iterates over every stored entry. An entry that would not be valid in
// the text format is reported as corruption and fails the load.
func (s *BadgerStore) Load(ctx context.Context) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := make(map[string]string)

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: keyPrefix, PrefetchValues: true})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			id := string(item.Key()[len(keyPrefix):])

			value, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("read entry %q: %w", id, err)
			}

			entry := Entry{ID: id, Path: string(value)}
			if err := entry.Validate(); err != nil {
				return &CorruptionError{Source: s.path, Reason: err.Error()}
			}
			entries[entry.ID] = entry.Path
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// Append stores e. Appending an ID that already exists is rejected so the
// database never silently rebinds an ID.
func (s *BadgerStore) Append(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.Validate(); err != nil {
		return err
	}

	key := append(append([]byte{}, keyPrefix...), e.ID...)

	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return fmt.Errorf("id %q already persisted: %w", e.ID, ErrInvalidEntry)
		}
		if err != badger.ErrKeyNotFound {
			return fmt.Errorf("check entry %q: %w", e.ID, err)
		}

		if err := txn.Set(key, []byte(e.Path)); err != nil {
			return fmt.Errorf("store entry %q: %w", e.ID, err)
		}
		return nil
	})
}

// Close flushes and closes the database.
func (s *BadgerStore) Close() error {
	if s.db.IsClosed() {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}
