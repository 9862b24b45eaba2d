package fileserver

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marmos91/medioxide/internal/protocol/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileResponder_RegularFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	var buf bytes.Buffer
	status, sent, err := FileResponder{}.Respond(&buf, path)
	require.NoError(t, err)

	assert.Equal(t, response.StatusOK, status)
	assert.EqualValues(t, 5, sent)
	assert.Equal(t, "HTTP/1.1 200 OK\r\nContent-type: text/plain; charset=utf-8\r\n\r\nhello", buf.String())
}

func TestFileResponder_NotFound(t *testing.T) {
	dir := t.TempDir()

	for _, path := range []string{filepath.Join(dir, "missing.txt"), dir} {
		var buf bytes.Buffer
		status, sent, err := FileResponder{}.Respond(&buf, path)
		require.NoError(t, err)
		assert.Equal(t, response.StatusNotFound, status)
		assert.Zero(t, sent)
		assert.True(t, strings.HasPrefix(buf.String(), "HTTP/1.1 404 Not Found\r\n"))
	}
}

func TestContentType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	assert.Equal(t, "text/plain; charset=utf-8", ContentType("a.txt", []byte("hello")))
	assert.Equal(t, "image/png", ContentType("a.png", png))
	assert.Equal(t, "image/png", ContentType("no-extension", png))
	assert.Equal(t, "application/pdf", ContentType("blob", []byte("%PDF-1.4\n")))
}
