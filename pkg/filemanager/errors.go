package filemanager

import (
	"errors"

	"github.com/marmos91/medioxide/pkg/index"
)

// Errors returned by the file manager. Callers match them with errors.Is;
// the concrete value is usually an *Error carrying the operation and path.
var (
	// ErrDirectoryDoesNotExist: the managed folder is missing and creation
	// was not requested.
	ErrDirectoryDoesNotExist = errors.New("directory to manage does not exist")

	// ErrNotADirectory: the managed folder path exists but is not a directory.
	ErrNotADirectory = errors.New("path to manage is not a directory")

	// ErrCouldNotCreateDirectory: creating the managed folder (or a
	// subdirectory for a nested file name) failed.
	ErrCouldNotCreateDirectory = errors.New("directory could not be created")

	// ErrCouldNotReadDirectory: the managed folder could not be inspected.
	ErrCouldNotReadDirectory = errors.New("directory could not be read from")

	// ErrCouldNotLoadIndex: the persisted index could not be read.
	ErrCouldNotLoadIndex = errors.New("could not load in-memory file index")

	// ErrCorruptedIndexEntry: a persisted index entry is malformed. The whole
	// load fails.
	ErrCorruptedIndexEntry = index.ErrCorruptedIndexEntry

	// ErrCouldNotPersistIndex: the write-through append of a new entry failed.
	// The file written for it is removed again.
	ErrCouldNotPersistIndex = errors.New("could not persist index entry")

	// ErrCouldNotCreateFile: reading the new content or writing it to disk failed.
	ErrCouldNotCreateFile = errors.New("could not create new file")

	// ErrCouldNotReadFile: an indexed file exists but could not be opened.
	ErrCouldNotReadFile = errors.New("could not read file")

	// ErrFileAlreadyExists: a file is already present (or being written) at
	// the target path. Nothing was mutated.
	ErrFileAlreadyExists = errors.New("file already exists")

	// ErrIDAlreadyExists: the ID is already indexed or reserved by a
	// concurrent AddFile. Nothing was mutated.
	ErrIDAlreadyExists = errors.New("id already exists")

	// ErrIndexedFileDoesNotExist: the index references a file that is missing
	// or not a regular file. This signals index/filesystem desync.
	ErrIndexedFileDoesNotExist = errors.New("file does not exist in directory, but was found in index")

	// ErrIndexUnavailable: the index lock can no longer be acquired because
	// the manager was closed.
	ErrIndexUnavailable = errors.New("could not acquire index lock")

	// ErrInvalidID: the ID is empty or contains characters the index format
	// cannot store (space, line break).
	ErrInvalidID = errors.New("invalid file id")

	// ErrInvalidFileName: the display name is not a clean relative path
	// inside the managed folder, or cannot be stored in the index.
	ErrInvalidFileName = errors.New("invalid file name")
)

// Error describes a failed file manager operation.
type Error struct {
	// Op is the operation that failed ("new", "load", "add", "get", ...).
	Op string

	// Path is the file, directory or ID the operation was about.
	Path string

	// Kind is one of the Err* sentinels above.
	Kind error

	// Err is the underlying cause, if any.
	Err error
}

func newError(op, path string, kind, cause error) *Error {
	return &Error{Op: op, Path: path, Kind: kind, Err: cause}
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	msg += ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the sentinel kind, so errors.Is(err, ErrFileAlreadyExists) works
// without unwrapping to the cause.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}
