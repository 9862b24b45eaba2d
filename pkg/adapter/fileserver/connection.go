package fileserver

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/marmos91/medioxide/internal/logger"
	"github.com/marmos91/medioxide/internal/protocol/request"
	"github.com/marmos91/medioxide/internal/protocol/response"
)

// connState is the lifecycle stage of a connection, tracked for logging.
type connState int

const (
	stateAccepted connState = iota
	stateReading
	stateParsed
	stateResolved
	stateResponding
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateAccepted:
		return "accepted"
	case stateReading:
		return "reading"
	case stateParsed:
		return "parsed"
	case stateResolved:
		return "resolved"
	case stateResponding:
		return "responding"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// FileServerConnection handles exactly one request on one client connection.
type FileServerConnection struct {
	server *FileServerAdapter
	conn   net.Conn
	state  connState
}

func NewFileServerConnection(server *FileServerAdapter, conn net.Conn) *FileServerConnection {
	return &FileServerConnection{
		server: server,
		conn:   conn,
		state:  stateAccepted,
	}
}

// Serve reads one request, answers it and closes the connection.
//
// A panic in the handler is recovered so that one misbehaving connection can
// never take the server down. Failures before the responding stage are
// answered with an error status; there is no retry.
func (c *FileServerConnection) Serve(ctx context.Context) {
	clientAddr := c.conn.RemoteAddr().String()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in connection handler from %s (state: %s): %v", clientAddr, c.state, r)
		}
		closeGracefully(c.conn)
		c.state = stateClosed
	}()

	status, err := c.handle(ctx)
	if status == 0 {
		// Nothing was written: the client went away or the read timed out.
		if err != nil {
			logDisconnect(clientAddr, err)
		}
		return
	}

	c.server.metrics.RecordRequest(int(status), time.Since(start))
	if err != nil {
		logger.Debug("Request from %s ended with %s at %s: %v", clientAddr, status, c.state, err)
	}
}

// handle runs the state machine and returns the status written, or 0 if no
// response could be written at all.
func (c *FileServerConnection) handle(ctx context.Context) (response.Status, error) {
	cfg := c.server.config

	c.state = stateReading
	if cfg.ReadTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout)); err != nil {
			return 0, err
		}
	}

	buf := make([]byte, cfg.RequestBufferSize)
	n, err := c.conn.Read(buf)
	if n == 0 {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return 0, err
	}

	if cfg.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout)); err != nil {
			return 0, err
		}
	}

	req, err := request.Parse(buf[:n])
	if err != nil {
		if errors.Is(err, request.ErrNoLineTerminator) && n == len(buf) {
			logger.Debug("Request from %s exceeds %d byte buffer", c.conn.RemoteAddr(), len(buf))
		}
		return c.fail(response.StatusBadRequest, err)
	}
	c.state = stateParsed
	logger.Debug("%s %s from %s", req.Method, req.Target, c.conn.RemoteAddr())

	if req.Method != "GET" {
		return c.fail(response.StatusMethodNotAllowed, nil)
	}

	if err := ctx.Err(); err != nil {
		return c.fail(response.StatusServiceUnavailable, err)
	}

	path, err := c.server.resolver.Resolve(ctx, req.Locator)
	switch {
	case errors.Is(err, ErrForbidden):
		return c.fail(response.StatusForbidden, err)
	case errors.Is(err, ErrNotFound):
		return c.fail(response.StatusNotFound, nil)
	case err != nil:
		logger.Warn("Failed to resolve %q: %v", req.Locator, err)
		return c.fail(response.StatusInternalServerError, err)
	}
	c.state = stateResolved
	logger.Debug("Resolved %q to %s", req.Locator, path)

	c.state = stateResponding
	status, sent, err := c.server.responder.Respond(c.conn, path)
	c.server.metrics.RecordBytesSent(sent)
	return status, err
}

// fail writes status and reports cause.
func (c *FileServerConnection) fail(status response.Status, cause error) (response.Status, error) {
	if _, err := response.WriteError(c.conn, status); err != nil {
		return status, err
	}
	return status, cause
}

// lingerTimeout bounds how long a closing connection drains unread input.
const lingerTimeout = 500 * time.Millisecond

// closeGracefully half-closes conn and drains what the client still sends
// before closing. Closing a socket with unread input makes the kernel reset
// the connection, which can destroy a response the client has not read yet.
func closeGracefully(conn net.Conn) {
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.CloseWrite(); err == nil {
			_ = conn.SetReadDeadline(time.Now().Add(lingerTimeout))
			_, _ = io.Copy(io.Discard, io.LimitReader(conn, 64*1024))
		}
	}
	_ = conn.Close()
}

func logDisconnect(clientAddr string, err error) {
	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		logger.Debug("Connection from %s closed by client", clientAddr)
	case errors.As(err, &netErr) && netErr.Timeout():
		logger.Debug("Connection from %s timed out: %v", clientAddr, err)
	default:
		logger.Debug("Error reading from %s: %v", clientAddr, err)
	}
}
