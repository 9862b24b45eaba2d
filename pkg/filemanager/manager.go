// Package filemanager owns a folder of files and the index that maps file IDs
// to paths inside it.
//
// All index access goes through a single reader/writer lock: lookups share it,
// while AddFile holds it exclusively only to reserve the ID and name and later
// to commit the new entry. The file itself is written and persisted outside the
// lock, so a slow upload never blocks readers, and readers never observe an
// entry whose file or index line is not yet on disk.
package filemanager

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/marmos91/medioxide/internal/logger"
	"github.com/marmos91/medioxide/pkg/index"
	"github.com/marmos91/medioxide/pkg/metrics"
)

// Replicator copies committed files somewhere else, e.g. an S3 bucket.
//
// Replicate runs after the entry is committed. A failure is logged and counted
// but never undoes the local commit.
type Replicator interface {
	Replicate(ctx context.Context, entry index.Entry, localPath string) error
}

// Config configures a FileManager.
type Config struct {
	// Root is the managed folder.
	Root string

	// CreateIfMissing creates Root (and an empty index) when it does not exist.
	CreateIfMissing bool

	// Store persists the index. The manager takes ownership and closes it on
	// Close.
	Store index.Store

	// OpenStore builds the store once Root exists. It is used when Store is
	// nil; if both are nil the text store at Root/index.txt is used.
	OpenStore func(ctx context.Context, root string) (index.Store, error)

	// Replicator, if set, is invoked for every committed file.
	Replicator Replicator

	// Metrics records index operations. Nil disables metrics.
	Metrics metrics.IndexMetrics
}

// FileManager indexes the files of one folder by ID.
type FileManager struct {
	root       string
	store      index.Store
	replicator Replicator
	metrics    metrics.IndexMetrics

	mu      sync.RWMutex
	entries map[string]string

	// IDs and paths claimed by in-flight AddFile calls.
	pendingIDs   map[string]struct{}
	pendingPaths map[string]struct{}

	closed bool
}

// New opens the folder at cfg.Root and loads its index.
//
// A missing folder is an error unless cfg.CreateIfMissing is set. A corrupt
// index fails the whole load with an error matching ErrCorruptedIndexEntry.
func New(ctx context.Context, cfg Config) (*FileManager, error) {
	if cfg.Root == "" {
		return nil, newError("new", cfg.Root, ErrDirectoryDoesNotExist, nil)
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, newError("new", cfg.Root, ErrCouldNotReadDirectory, err)
	}

	info, err := os.Stat(root)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if !cfg.CreateIfMissing {
			return nil, newError("new", root, ErrDirectoryDoesNotExist, nil)
		}
		if err := os.MkdirAll(root, 0755); err != nil {
			return nil, newError("new", root, ErrCouldNotCreateDirectory, err)
		}
		logger.Info("Created managed folder %s", root)
	case err != nil:
		return nil, newError("new", root, ErrCouldNotReadDirectory, err)
	case !info.IsDir():
		return nil, newError("new", root, ErrNotADirectory, nil)
	}

	store := cfg.Store
	switch {
	case store != nil:
	case cfg.OpenStore != nil:
		store, err = cfg.OpenStore(ctx, root)
		if err != nil {
			return nil, newError("load", root, ErrCouldNotLoadIndex, err)
		}
	default:
		store = index.OpenTextStore(root)
	}

	entries, err := store.Load(ctx)
	if err != nil {
		_ = store.Close()
		if errors.Is(err, index.ErrCorruptedIndexEntry) {
			return nil, newError("load", root, ErrCorruptedIndexEntry, err)
		}
		return nil, newError("load", root, ErrCouldNotLoadIndex, err)
	}

	m := cfg.Metrics
	if m == nil {
		m = metrics.NewNoopIndexMetrics()
	}

	fm := &FileManager{
		root:         root,
		store:        store,
		replicator:   cfg.Replicator,
		metrics:      m,
		entries:      entries,
		pendingIDs:   make(map[string]struct{}),
		pendingPaths: make(map[string]struct{}),
	}
	fm.metrics.SetIndexSize(len(entries))

	logger.Info("Loaded index of %s: %d entries", root, len(entries))
	return fm, nil
}

// Root returns the absolute path of the managed folder.
func (m *FileManager) Root() string {
	return m.root
}

// Len returns the number of committed entries, or 0 once closed.
func (m *FileManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0
	}
	return len(m.entries)
}

// List returns a snapshot of all committed entries, ordered by ID.
func (m *FileManager) List(ctx context.Context) ([]index.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, newError("list", m.root, ErrIndexUnavailable, nil)
	}

	out := make([]index.Entry, 0, len(m.entries))
	for id, rel := range m.entries {
		out = append(out, index.Entry{ID: id, Path: rel})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Verify checks every entry against the filesystem and returns the ones whose
// file is missing or not a regular file, ordered by ID.
func (m *FileManager) Verify(ctx context.Context) ([]index.Entry, error) {
	entries, err := m.List(ctx)
	if err != nil {
		return nil, err
	}

	var desynced []index.Entry
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := m.statIndexed("verify", e.Path); err != nil {
			desynced = append(desynced, e)
		}
	}
	return desynced, nil
}

// Close releases the index store. Subsequent operations fail with
// ErrIndexUnavailable. Close is idempotent.
func (m *FileManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if err := m.store.Close(); err != nil {
		return newError("close", m.root, ErrIndexUnavailable, err)
	}
	return nil
}

// absPath maps an index path to its location on disk.
func (m *FileManager) absPath(rel string) string {
	return filepath.Join(m.root, filepath.FromSlash(rel))
}

// statIndexed checks that rel names a regular file inside the folder.
func (m *FileManager) statIndexed(op, rel string) (string, error) {
	path := m.absPath(rel)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", newError(op, path, ErrIndexedFileDoesNotExist, nil)
		}
		return "", newError(op, path, ErrCouldNotReadFile, err)
	}
	if !info.Mode().IsRegular() {
		return "", newError(op, path, ErrIndexedFileDoesNotExist, nil)
	}
	return path, nil
}
