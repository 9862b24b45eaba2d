package filemanager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/marmos91/medioxide/internal/logger"
	"github.com/marmos91/medioxide/pkg/index"
)

// tempPrefix marks partially written files. Names using it are rejected so
// a stray temp file can never be indexed.
const tempPrefix = ".medioxide-tmp-"

// AddFile stores content under root/name and indexes it under id. It returns
// the absolute path of the new file.
//
// The ID and name are reserved first, so a concurrent AddFile for the same ID
// or name fails fast. The content is written to a temp file, fsynced and
// linked into place without replacing anything; the index entry is then
// appended to the store and only afterwards becomes visible to lookups.
//
// On ErrIDAlreadyExists or ErrFileAlreadyExists nothing is mutated.
func (m *FileManager) AddFile(ctx context.Context, id, name string, content io.Reader) (_ string, err error) {
	var size int64
	defer func() { m.metrics.RecordAdd(size, err) }()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validateID(id); err != nil {
		return "", newError("add", id, ErrInvalidID, err)
	}
	rel, err := cleanName(name)
	if err != nil {
		return "", newError("add", name, ErrInvalidFileName, err)
	}

	if err := m.reserve(id, rel); err != nil {
		return "", err
	}
	committed := false
	defer func() {
		if !committed {
			m.release(id, rel)
		}
	}()

	target := m.absPath(rel)
	created, err := m.makeParents(rel)
	if err != nil {
		return "", err
	}
	size, err = m.writeNew(target, content)
	if err != nil {
		removeDirs(created)
		return "", err
	}

	entry := index.Entry{ID: id, Path: rel}
	if err := m.store.Append(ctx, entry); err != nil {
		if rmErr := os.Remove(target); rmErr != nil {
			logger.Error("Failed to remove %s after index append failure: %v", target, rmErr)
		}
		removeDirs(created)
		return "", newError("add", id, ErrCouldNotPersistIndex, err)
	}

	m.commit(entry)
	committed = true
	logger.Debug("Indexed %s as %s (%s)", rel, id, humanize.Bytes(uint64(size)))

	if m.replicator != nil {
		repErr := m.replicator.Replicate(ctx, entry, target)
		m.metrics.RecordReplication(repErr)
		if repErr != nil {
			logger.Warn("Replication of %s failed: %v", id, repErr)
		}
	}

	return target, nil
}

// reserve claims id and rel for one in-flight AddFile.
func (m *FileManager) reserve(id, rel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return newError("add", id, ErrIndexUnavailable, nil)
	}
	// A taken path wins over a taken ID. An indexed path whose file went
	// missing still counts as taken, otherwise two IDs would end up pointing
	// at the same file.
	if _, ok := m.pendingPaths[rel]; ok {
		return newError("add", m.absPath(rel), ErrFileAlreadyExists, nil)
	}
	if _, ok := m.idForPathLocked(rel); ok {
		return newError("add", m.absPath(rel), ErrFileAlreadyExists, nil)
	}
	_, indexed := m.entries[id]
	_, pending := m.pendingIDs[id]
	if indexed || pending {
		if _, err := os.Lstat(m.absPath(rel)); err == nil {
			return newError("add", m.absPath(rel), ErrFileAlreadyExists, nil)
		}
		return newError("add", id, ErrIDAlreadyExists, nil)
	}

	m.pendingIDs[id] = struct{}{}
	m.pendingPaths[rel] = struct{}{}
	return nil
}

func (m *FileManager) release(id, rel string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pendingIDs, id)
	delete(m.pendingPaths, rel)
}

// commit publishes an entry that is already persisted. It runs even if the
// manager was closed meanwhile, since the store already holds the entry.
func (m *FileManager) commit(e index.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pendingIDs, e.ID)
	delete(m.pendingPaths, e.Path)
	m.entries[e.ID] = e.Path
	m.metrics.SetIndexSize(len(m.entries))
}

// makeParents creates the missing parent directories of rel and returns the
// ones it created, outermost first. An existing parent that resolves outside
// the managed folder is rejected before anything is created beneath it.
func (m *FileManager) makeParents(rel string) ([]string, error) {
	parent := path.Dir(rel)
	if parent == "." {
		return nil, nil
	}

	var created []string
	dir := m.root
	for _, part := range strings.Split(parent, "/") {
		dir = filepath.Join(dir, part)
		if _, err := os.Lstat(dir); err == nil {
			if err := m.checkInsideRoot(dir); err != nil {
				removeDirs(created)
				return nil, err
			}
			continue
		}
		if err := os.Mkdir(dir, 0755); err != nil && !errors.Is(err, fs.ErrExist) {
			removeDirs(created)
			return nil, newError("add", dir, ErrCouldNotCreateDirectory, err)
		} else if err == nil {
			created = append(created, dir)
		}
	}
	return created, nil
}

// checkInsideRoot rejects a directory that is not a directory or whose
// resolved location is outside the managed folder.
func (m *FileManager) checkInsideRoot(dir string) error {
	resolvedRoot, err := filepath.EvalSymlinks(m.root)
	if err != nil {
		return newError("add", m.root, ErrCouldNotReadDirectory, err)
	}
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return newError("add", dir, ErrCouldNotCreateDirectory, err)
	}

	relToRoot, err := filepath.Rel(resolvedRoot, resolved)
	if err != nil || !filepath.IsLocal(relToRoot) {
		return newError("add", dir, ErrInvalidFileName,
			fmt.Errorf("%s resolves outside the managed folder", dir))
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return newError("add", dir, ErrCouldNotCreateDirectory, err)
	}
	if !info.IsDir() {
		return newError("add", dir, ErrCouldNotCreateDirectory, ErrNotADirectory)
	}
	return nil
}

// removeDirs removes directories created for a failed add, innermost first.
// Directories that gained other entries meanwhile are kept.
func removeDirs(dirs []string) {
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := os.Remove(dirs[i]); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Debug("Keeping directory %s: %v", dirs[i], err)
		}
	}
}

// writeNew writes content to target, failing if target already exists. The
// parent directory must already exist.
func (m *FileManager) writeNew(target string, content io.Reader) (int64, error) {
	dir := filepath.Dir(target)

	tmpPath := filepath.Join(dir, tempPrefix+uuid.NewString())
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return 0, newError("add", target, ErrCouldNotCreateFile, err)
	}
	defer func() {
		if rmErr := os.Remove(tmpPath); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			logger.Warn("Failed to remove temp file %s: %v", tmpPath, rmErr)
		}
	}()

	size, err := io.Copy(tmp, content)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, newError("add", target, ErrCouldNotCreateFile, err)
	}

	// Link fails instead of replacing an existing file.
	if err := os.Link(tmpPath, target); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return 0, newError("add", target, ErrFileAlreadyExists, nil)
		}
		return 0, newError("add", target, ErrCouldNotCreateFile, err)
	}

	syncDir(dir)
	return size, nil
}

// syncDir flushes directory metadata so the new link survives a crash.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		logger.Debug("fsync %s: %v", dir, err)
	}
}

func validateID(id string) error {
	if id == "" {
		return errors.New("empty id")
	}
	if strings.ContainsAny(id, " \r\n\x00") {
		return fmt.Errorf("id %q contains whitespace or NUL", id)
	}
	return nil
}

// cleanName validates a display name and returns it in index form: a clean,
// slash-separated path relative to the managed folder.
func cleanName(name string) (string, error) {
	if name == "" {
		return "", errors.New("empty name")
	}
	if strings.ContainsAny(name, " \r\n\x00") {
		return "", fmt.Errorf("name %q contains whitespace or NUL", name)
	}
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("name %q escapes the managed folder", name)
	}

	rel := filepath.ToSlash(name)
	if path.Clean(rel) != rel {
		return "", fmt.Errorf("name %q is not a clean path", name)
	}
	if rel == index.FileName {
		return "", fmt.Errorf("name %q is reserved for the index", name)
	}
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, tempPrefix) || part == index.DefaultBadgerDir {
			return "", fmt.Errorf("name %q uses a reserved component", name)
		}
	}
	return rel, nil
}
