// Package request parses the single request line the file server accepts:
//
//	<METHOD> /<resource> [<VERSION>]\r\n
//
// The whole line must arrive in one read. Headers after the first line are
// ignored and request bodies are not supported.
package request

import (
	"bytes"
	"errors"
	"strings"
)

// Parse failures. Every *ParseError matches exactly one of these.
var (
	ErrEmptyRequest         = errors.New("empty request")
	ErrNoLineTerminator     = errors.New("request line is not terminated")
	ErrMalformedRequestLine = errors.New("malformed request line")
)

// ParseError describes why a buffer could not be parsed.
type ParseError struct {
	Kind   error
	Reason string
}

func (e *ParseError) Error() string {
	if e.Reason == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Reason
}

func (e *ParseError) Is(target error) bool {
	return target == e.Kind
}

// Request is a parsed request line.
type Request struct {
	Method string

	// Target is the raw path as sent, e.g. "/docs/a.txt".
	Target string

	// Locator is Target with exactly one leading "/" removed.
	Locator string

	// Version is the protocol token, empty when the client omitted it.
	Version string
}

// Parse extracts the request line from buf. It never panics; any input that
// is not a request line yields a *ParseError.
func Parse(buf []byte) (*Request, error) {
	if len(bytes.Trim(buf, "\x00")) == 0 {
		return nil, &ParseError{Kind: ErrEmptyRequest}
	}

	end := bytes.IndexByte(buf, '\n')
	if end < 0 {
		return nil, &ParseError{Kind: ErrNoLineTerminator, Reason: "no line feed in request"}
	}

	line := strings.TrimSuffix(string(buf[:end]), "\r")
	if line == "" {
		return nil, &ParseError{Kind: ErrMalformedRequestLine, Reason: "empty request line"}
	}

	// Tokens are separated by spaces only; runs of spaces count as one.
	var fields []string
	for _, f := range strings.Split(line, " ") {
		if f != "" {
			fields = append(fields, f)
		}
	}
	if len(fields) < 2 {
		return nil, &ParseError{Kind: ErrMalformedRequestLine, Reason: "expected method and path"}
	}

	req := &Request{
		Method:  fields[0],
		Target:  fields[1],
		Locator: strings.TrimPrefix(fields[1], "/"),
	}
	if len(fields) > 2 {
		req.Version = fields[2]
	}
	return req, nil
}
