package index

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// maxLineSize bounds a single index line. Paths are limited to 4096 bytes by
// most filesystems, so this leaves generous room for the ID.
const maxLineSize = 64 * 1024

// TextStore persists entries in a flat index.txt file.
//
// Appends go through a single O_APPEND file handle and are fsynced before
// Append returns.
type TextStore struct {
	path string

	mu     sync.Mutex
	file   *os.File
	closed bool
}

// OpenTextStore returns a store backed by root/index.txt. No I/O happens
// until Load or Append is called.
func OpenTextStore(root string) *TextStore {
	return &TextStore{path: filepath.Join(root, FileName)}
}

// Path returns the location of the index file.
func (s *TextStore) Path() string {
	return s.path
}

// Load reads the index file. A missing file is created empty and yields an
// empty mapping. Any malformed line, including a repeated ID, aborts the load
// with an error matching ErrCorruptedIndexEntry.
func (s *TextStore) Load(ctx context.Context) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		created, createErr := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY, 0644)
		if createErr != nil {
			return nil, fmt.Errorf("create index %s: %w", s.path, createErr)
		}
		if closeErr := created.Close(); closeErr != nil {
			return nil, fmt.Errorf("create index %s: %w", s.path, closeErr)
		}
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", s.path, err)
	}
	defer func() { _ = f.Close() }()

	entries := make(map[string]string)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		entry, err := ParseEntry(scanner.Text())
		if err != nil {
			return nil, &CorruptionError{
				Source: s.path,
				Line:   lineNo,
				Reason: "expected \"<id> <path>\"",
			}
		}

		if _, dup := entries[entry.ID]; dup {
			return nil, &CorruptionError{
				Source: s.path,
				Line:   lineNo,
				Reason: fmt.Sprintf("duplicate id %q", entry.ID),
			}
		}
		entries[entry.ID] = entry.Path
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, &CorruptionError{Source: s.path, Line: lineNo + 1, Reason: "line too long"}
		}
		return nil, fmt.Errorf("read index %s: %w", s.path, err)
	}

	return entries, nil
}

// Append writes e as a new line and fsyncs the file.
func (s *TextStore) Append(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("append to %s: %w", s.path, os.ErrClosed)
	}

	line := FormatEntry(e)
	if s.file == nil {
		f, err := os.OpenFile(s.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open index %s for append: %w", s.path, err)
		}
		terminated, err := endsWithNewline(f)
		if err != nil {
			_ = f.Close()
			return fmt.Errorf("read index %s: %w", s.path, err)
		}
		if !terminated {
			// The last line was cut short or hand edited; start on a fresh line.
			line = "\n" + line
		}
		s.file = f
	}

	if _, err := s.file.WriteString(line); err != nil {
		return fmt.Errorf("append to index %s: %w", s.path, err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync index %s: %w", s.path, err)
	}

	return nil
}

// endsWithNewline reports whether f is empty or its last byte is '\n'.
func endsWithNewline(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return true, nil
	}

	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return false, err
	}
	return last[0] == '\n', nil
}

// Close releases the append handle. It is safe to call more than once.
func (s *TextStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.file == nil {
		return nil
	}

	err := s.file.Close()
	s.file = nil
	return err
}
