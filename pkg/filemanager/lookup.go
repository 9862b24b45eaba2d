package filemanager

import (
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/marmos91/medioxide/pkg/metrics"
)

// Lookups take the shared side of the index lock and run concurrently with
// each other. An absent ID or path is reported as found=false with a nil
// error; an indexed entry whose file is gone yields ErrIndexedFileDoesNotExist.

// GetFileByID opens the file indexed under id. The caller must close it.
func (m *FileManager) GetFileByID(ctx context.Context, id string) (*os.File, bool, error) {
	const op = "get_file_by_id"
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, false, m.unavailable(op)
	}

	rel, ok := m.entries[id]
	if !ok {
		m.metrics.RecordLookup(op, metrics.LookupMiss)
		return nil, false, nil
	}
	return m.openIndexed(op, rel)
}

// GetPathByID returns the absolute path of the file indexed under id, after
// checking that it still exists.
func (m *FileManager) GetPathByID(ctx context.Context, id string) (string, bool, error) {
	const op = "get_path_by_id"
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, m.unavailable(op)
	}

	rel, ok := m.entries[id]
	if !ok {
		m.metrics.RecordLookup(op, metrics.LookupMiss)
		return "", false, nil
	}
	p, err := m.statIndexed(op, rel)
	if err != nil {
		m.recordFailure(op, err)
		return "", true, err
	}
	m.metrics.RecordLookup(op, metrics.LookupHit)
	return p, true, nil
}

// FileExistsWithID reports whether id is indexed. It does not touch the disk.
func (m *FileManager) FileExistsWithID(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false, m.unavailable("file_exists_with_id")
	}
	_, ok := m.entries[id]
	return ok, nil
}

// FileExistsAtPath reports whether some entry points at p. p may be relative
// to the managed folder or absolute. The scan is linear in the index size.
func (m *FileManager) FileExistsAtPath(ctx context.Context, p string) (bool, error) {
	_, ok, err := m.GetIDFromPath(ctx, p)
	return ok, err
}

// GetIDFromPath returns the ID indexed for p. p may be relative to the
// managed folder or absolute.
func (m *FileManager) GetIDFromPath(ctx context.Context, p string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, m.unavailable("get_id_from_path")
	}

	rel, ok := m.relativize(p)
	if !ok {
		return "", false, nil
	}
	id, ok := m.idForPathLocked(rel)
	return id, ok, nil
}

// GetFileByPath opens the indexed file at p and returns it with its ID.
// The caller must close the file.
func (m *FileManager) GetFileByPath(ctx context.Context, p string) (*os.File, string, bool, error) {
	const op = "get_file_by_path"
	if err := ctx.Err(); err != nil {
		return nil, "", false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, "", false, m.unavailable(op)
	}

	rel, ok := m.relativize(p)
	if !ok {
		m.metrics.RecordLookup(op, metrics.LookupMiss)
		return nil, "", false, nil
	}
	id, ok := m.idForPathLocked(rel)
	if !ok {
		m.metrics.RecordLookup(op, metrics.LookupMiss)
		return nil, "", false, nil
	}
	f, found, err := m.openIndexed(op, rel)
	return f, id, found, err
}

// openIndexed opens an indexed file. The read lock must be held.
func (m *FileManager) openIndexed(op, rel string) (*os.File, bool, error) {
	p, err := m.statIndexed(op, rel)
	if err != nil {
		m.recordFailure(op, err)
		return nil, true, err
	}

	f, err := os.Open(p)
	if err != nil {
		m.metrics.RecordLookup(op, metrics.LookupFailure)
		return nil, true, newError(op, p, ErrCouldNotReadFile, err)
	}
	m.metrics.RecordLookup(op, metrics.LookupHit)
	return f, true, nil
}

// idForPathLocked scans the index for rel. The lock must be held.
func (m *FileManager) idForPathLocked(rel string) (string, bool) {
	for id, candidate := range m.entries {
		if candidate == rel {
			return id, true
		}
	}
	return "", false
}

// relativize converts p to index form. Paths outside the folder never match.
func (m *FileManager) relativize(p string) (string, bool) {
	if p == "" {
		return "", false
	}
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(m.root, p)
		if err != nil {
			return "", false
		}
		p = rel
	}
	rel := path.Clean(filepath.ToSlash(p))
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") || strings.HasPrefix(rel, "/") {
		return "", false
	}
	return rel, true
}

func (m *FileManager) recordFailure(op string, err error) {
	if isDesync(err) {
		m.metrics.RecordLookup(op, metrics.LookupDesync)
		return
	}
	m.metrics.RecordLookup(op, metrics.LookupFailure)
}

func (m *FileManager) unavailable(op string) error {
	m.metrics.RecordLookup(op, metrics.LookupFailure)
	return newError(op, m.root, ErrIndexUnavailable, nil)
}

func isDesync(err error) bool {
	return errors.Is(err, ErrIndexedFileDoesNotExist)
}
