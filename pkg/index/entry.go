// Package index implements the persisted form of the file index: the mapping
// from an opaque file ID to the path of the file relative to the managed folder.
//
// The canonical format is a flat text file named index.txt with one entry per
// line:
//
//	<id> <relative_path>\n
//
// There is no header, footer or checksum. A line that does not split on a
// single space into exactly two non-empty tokens is corrupt, and one corrupt
// line fails the whole load. IDs and paths can therefore never contain spaces.
package index

import (
	"errors"
	"fmt"
	"strings"
)

// FileName is the name of the text index inside the managed folder.
const FileName = "index.txt"

var (
	// ErrCorruptedIndexEntry indicates a persisted entry could not be parsed.
	ErrCorruptedIndexEntry = errors.New("entry in index was corrupted")

	// ErrInvalidEntry indicates an entry cannot be represented in the index
	// format (empty field, space or line break).
	ErrInvalidEntry = errors.New("entry cannot be stored in index")
)

// Entry associates a file ID with its path relative to the managed folder.
type Entry struct {
	ID   string
	Path string
}

// ParseEntry parses one index line. A trailing "\r" is tolerated so that
// files edited on Windows still load.
func ParseEntry(line string) (Entry, error) {
	line = strings.TrimSuffix(line, "\r")

	tokens := strings.Split(line, " ")
	if len(tokens) != 2 || tokens[0] == "" || tokens[1] == "" {
		return Entry{}, ErrCorruptedIndexEntry
	}

	return Entry{ID: tokens[0], Path: tokens[1]}, nil
}

// FormatEntry renders e as a newline-terminated index line.
func FormatEntry(e Entry) string {
	return e.ID + " " + e.Path + "\n"
}

// Validate reports whether e survives a FormatEntry/ParseEntry round trip.
func (e Entry) Validate() error {
	if err := validateToken(e.ID); err != nil {
		return fmt.Errorf("id %q: %w", e.ID, err)
	}
	if err := validateToken(e.Path); err != nil {
		return fmt.Errorf("path %q: %w", e.Path, err)
	}
	return nil
}

func validateToken(s string) error {
	if s == "" {
		return ErrInvalidEntry
	}
	if strings.ContainsAny(s, " \r\n") {
		return ErrInvalidEntry
	}
	return nil
}

// CorruptionError reports where a corrupt entry was found.
type CorruptionError struct {
	// Source is the file or database the entry was read from.
	Source string

	// Line is the 1-based line number for text indexes, 0 otherwise.
	Line int

	// Reason describes what is wrong with the entry.
	Reason string
}

func (e *CorruptionError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s: %s", e.Source, e.Line, ErrCorruptedIndexEntry, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Source, ErrCorruptedIndexEntry, e.Reason)
}

func (e *CorruptionError) Is(target error) bool {
	return target == ErrCorruptedIndexEntry
}
