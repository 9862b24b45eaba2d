package fileserver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/marmos91/medioxide/internal/logger"
	"github.com/marmos91/medioxide/pkg/filemanager"
	"github.com/marmos91/medioxide/pkg/index"
)

var (
	// ErrForbidden means the locator would reach outside the served folder.
	ErrForbidden = errors.New("locator escapes served folder")

	// ErrNotFound means the locator does not name a servable file.
	ErrNotFound = errors.New("resource not found")
)

// Resolver maps a request locator to an absolute file path.
type Resolver interface {
	Resolve(ctx context.Context, locator string) (string, error)
}

// PathResolver serves files by their path relative to a root folder.
//
// Locators are untrusted: absolute paths, ".." segments leaving the root and
// symlinks pointing outside of it are all rejected with ErrForbidden. The
// index file and index database are never served.
type PathResolver struct {
	root string
}

// NewPathResolver resolves locators against root. root must exist.
func NewPathResolver(root string) (*PathResolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve served folder %s: %w", root, err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve served folder %s: %w", root, err)
	}
	return &PathResolver{root: real}, nil
}

// Root returns the served folder with symlinks resolved.
func (r *PathResolver) Root() string {
	return r.root
}

func (r *PathResolver) Resolve(ctx context.Context, locator string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if locator == "" || strings.ContainsRune(locator, 0) {
		return "", ErrForbidden
	}
	if filepath.IsAbs(locator) || !filepath.IsLocal(locator) {
		return "", ErrForbidden
	}
	if isReserved(filepath.ToSlash(filepath.Clean(locator))) {
		return "", ErrNotFound
	}

	joined := filepath.Join(r.root, locator)
	real, err := filepath.EvalSymlinks(joined)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("resolve %s: %w", locator, err)
	}

	rel, err := filepath.Rel(r.root, real)
	if err != nil || !filepath.IsLocal(rel) {
		logger.Warn("Rejected locator %q: resolves outside %s", locator, r.root)
		return "", ErrForbidden
	}
	if isReserved(filepath.ToSlash(rel)) {
		return "", ErrNotFound
	}
	return real, nil
}

func isReserved(rel string) bool {
	first, _, _ := strings.Cut(rel, "/")
	return rel == index.FileName || first == index.DefaultBadgerDir
}

// IDLookup is the part of the file manager IndexResolver needs.
type IDLookup interface {
	GetPathByID(ctx context.Context, id string) (string, bool, error)
}

// IndexResolver serves files by their ID.
type IndexResolver struct {
	lookup IDLookup
}

// NewIndexResolver resolves locators as IDs through lookup, usually a
// *filemanager.FileManager.
func NewIndexResolver(lookup IDLookup) *IndexResolver {
	return &IndexResolver{lookup: lookup}
}

func (r *IndexResolver) Resolve(ctx context.Context, locator string) (string, error) {
	if locator == "" {
		return "", ErrNotFound
	}

	path, found, err := r.lookup.GetPathByID(ctx, locator)
	if errors.Is(err, filemanager.ErrIndexedFileDoesNotExist) {
		logger.Warn("Index entry %s points at a missing file: %v", locator, err)
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", locator, err)
	}
	if !found {
		return "", ErrNotFound
	}
	return path, nil
}
