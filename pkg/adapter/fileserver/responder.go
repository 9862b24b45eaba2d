package fileserver

import (
	"errors"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/marmos91/medioxide/internal/protocol/response"
)

// FileResponder writes a file, or the status explaining why it could not,
// to a client.
type FileResponder struct{}

// Respond writes the file at path to w. It returns the status that was sent,
// the number of body bytes written on success, and any error.
//
// A missing path or anything other than a regular file yields 404. Read
// failures yield 500.
func (FileResponder) Respond(w io.Writer, path string) (response.Status, int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return writeStatus(w, response.StatusNotFound, nil)
		}
		return writeStatus(w, response.StatusInternalServerError, err)
	}
	if !info.Mode().IsRegular() {
		return writeStatus(w, response.StatusNotFound, nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return writeStatus(w, response.StatusInternalServerError, err)
	}

	contentType := ContentType(path, data)
	n, err := response.WriteOK(w, contentType, data)
	headerLen := int64(len(response.Header(response.StatusOK, contentType)))
	return response.StatusOK, max(n-headerLen, 0), err
}

// writeStatus sends an error response and reports cause, or the write error
// if sending failed.
func writeStatus(w io.Writer, status response.Status, cause error) (response.Status, int64, error) {
	if _, err := response.WriteError(w, status); err != nil {
		return status, 0, err
	}
	return status, 0, cause
}

// ContentType picks the media type by file extension, then by sniffing the
// content.
func ContentType(path string, data []byte) string {
	if ext := filepath.Ext(path); ext != "" {
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
	}
	return mimetype.Detect(data).String()
}
