package response

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteOK(t *testing.T) {
	var buf bytes.Buffer

	n, err := WriteOK(&buf, "text/plain; charset=utf-8", []byte("hello"))
	require.NoError(t, err)

	want := "HTTP/1.1 200 OK\r\nContent-type: text/plain; charset=utf-8\r\n\r\nhello"
	assert.Equal(t, want, buf.String())
	assert.EqualValues(t, len(want), n)
}

func TestWriteOK_EmptyBody(t *testing.T) {
	var buf bytes.Buffer

	_, err := WriteOK(&buf, "application/octet-stream", nil)
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1 200 OK\r\nContent-type: application/octet-stream\r\n\r\n", buf.String())
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		status Status
		line   string
	}{
		{StatusBadRequest, "HTTP/1.1 400 Bad Request\r\n"},
		{StatusForbidden, "HTTP/1.1 403 Forbidden\r\n"},
		{StatusNotFound, "HTTP/1.1 404 Not Found\r\n"},
		{StatusMethodNotAllowed, "HTTP/1.1 405 Method Not Allowed\r\n"},
		{StatusInternalServerError, "HTTP/1.1 500 Internal Server Error\r\n"},
		{StatusServiceUnavailable, "HTTP/1.1 503 Service Unavailable\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.status.Text(), func(t *testing.T) {
			var buf bytes.Buffer
			_, err := WriteError(&buf, tt.status)
			require.NoError(t, err)

			out := buf.String()
			assert.Equal(t, tt.line, out[:len(tt.line)])
			assert.Contains(t, out, "Content-type: text/plain\r\n\r\n")
			assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte(tt.status.String()+"\n")))
		})
	}
}

func TestStatus_UnknownText(t *testing.T) {
	assert.Equal(t, "Status 418", Status(418).Text())
	assert.Equal(t, "418 Status 418", Status(418).String())
}
