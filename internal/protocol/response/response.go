// Package response frames the file server's replies: a status line, a single
// Content-type header, a blank line and the raw body.
package response

import (
	"fmt"
	"io"
	"net"
	"strconv"
)

// Status is a response status code.
type Status int

const (
	StatusOK                  Status = 200
	StatusBadRequest          Status = 400
	StatusForbidden           Status = 403
	StatusNotFound            Status = 404
	StatusMethodNotAllowed    Status = 405
	StatusInternalServerError Status = 500
	StatusServiceUnavailable  Status = 503
)

// Protocol is the version token written on every status line.
const Protocol = "HTTP/1.1"

// PlainText is the content type of error bodies.
const PlainText = "text/plain"

// Text returns the reason phrase for s.
func (s Status) Text() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusBadRequest:
		return "Bad Request"
	case StatusForbidden:
		return "Forbidden"
	case StatusNotFound:
		return "Not Found"
	case StatusMethodNotAllowed:
		return "Method Not Allowed"
	case StatusInternalServerError:
		return "Internal Server Error"
	case StatusServiceUnavailable:
		return "Service Unavailable"
	default:
		return "Status " + strconv.Itoa(int(s))
	}
}

func (s Status) String() string {
	return fmt.Sprintf("%d %s", int(s), s.Text())
}

// Header renders the status line, the Content-type header and the blank line
// that precedes the body.
func Header(status Status, contentType string) []byte {
	return []byte(Protocol + " " + status.String() + "\r\nContent-type: " + contentType + "\r\n\r\n")
}

// Write sends the header and body. On a TCP connection both go out in a
// single writev.
func Write(w io.Writer, status Status, contentType string, body []byte) (int64, error) {
	bufs := net.Buffers{Header(status, contentType), body}
	return bufs.WriteTo(w)
}

// WriteOK sends a 200 response carrying body.
func WriteOK(w io.Writer, contentType string, body []byte) (int64, error) {
	return Write(w, StatusOK, contentType, body)
}

// WriteError sends status with a one-line plain text body.
func WriteError(w io.Writer, status Status) (int64, error) {
	return Write(w, status, PlainText, []byte(status.String()+"\n"))
}
