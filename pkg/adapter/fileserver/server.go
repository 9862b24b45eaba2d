package fileserver

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/medioxide/internal/logger"
	"github.com/marmos91/medioxide/internal/protocol/response"
	"github.com/marmos91/medioxide/internal/ratelimiter"
	"github.com/marmos91/medioxide/pkg/adapter"
	"github.com/marmos91/medioxide/pkg/metrics"
)

var _ adapter.Adapter = (*FileServerAdapter)(nil)

// FileServerAdapter serves files over raw TCP, one request per connection.
//
// Each accepted connection is handled by its own goroutine running a
// FileServerConnection, so a slow or misbehaving client never delays the
// accept loop or other clients.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. Listener closed (no new connections)
//  3. shutdownCtx cancelled (signals in-flight requests to abort)
//  4. Wait for active connections to complete (up to ShutdownTimeout)
//  5. Force-close any remaining connections after timeout
//
// Thread safety:
// All methods are safe for concurrent use. The shutdown mechanism uses sync.Once
// so Stop() can be called multiple times.
type FileServerAdapter struct {
	config    FileServerConfig
	resolver  Resolver
	responder FileResponder
	metrics   metrics.ServerMetrics

	// listenerMu guards listener, which is set by Serve and closed by shutdown.
	listenerMu sync.Mutex
	listener   net.Listener

	// addr is the bound address, nil until Serve has a listener.
	addr atomic.Pointer[net.TCPAddr]

	// activeConns tracks all currently active connections for graceful shutdown.
	activeConns sync.WaitGroup

	shutdownOnce sync.Once
	shutdown     chan struct{}

	// connCount tracks the current number of active connections.
	connCount atomic.Int32

	// connSemaphore limits concurrent connections. nil when unlimited.
	connSemaphore chan struct{}

	// limiter throttles the admission rate. nil when unlimited.
	limiter *ratelimiter.RateLimiter

	// shutdownCtx is cancelled during shutdown to abort in-flight requests.
	shutdownCtx    context.Context
	cancelRequests context.CancelFunc

	// activeConnections maps remote address to net.Conn for forced closure.
	activeConnections sync.Map
}

// New creates a FileServerAdapter in a stopped state.
//
// Zero values in config are replaced with defaults. serverMetrics may be nil.
//
// Panics if config validation fails.
func New(config FileServerConfig, resolver Resolver, serverMetrics metrics.ServerMetrics) *FileServerAdapter {
	config.applyDefaults()

	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid file server config: %v", err))
	}
	if resolver == nil {
		panic("file server requires a resolver")
	}

	var connSemaphore chan struct{}
	if config.MaxConnections > 0 {
		connSemaphore = make(chan struct{}, config.MaxConnections)
		logger.Debug("File server connection limit: %d", config.MaxConnections)
	} else {
		logger.Debug("File server connection limit: unlimited")
	}

	limiter := ratelimiter.New(uint(config.MaxConnectionsPerSecond), 0)
	if limiter != nil {
		logger.Debug("File server admission rate: %.0f/s (burst %d)", limiter.Limit(), limiter.Burst())
	} else {
		logger.Debug("File server admission rate: unlimited")
	}

	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	if serverMetrics == nil {
		serverMetrics = metrics.NewNoopServerMetrics()
	}

	return &FileServerAdapter{
		config:         config,
		resolver:       resolver,
		metrics:        serverMetrics,
		shutdown:       make(chan struct{}),
		connSemaphore:  connSemaphore,
		limiter:        limiter,
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancelRequests,
	}
}

// Serve binds the configured address and accepts connections until ctx is
// cancelled or Stop is called.
//
// Returns nil on graceful shutdown, or an error if the listener could not be
// created or connections had to be force-closed.
func (s *FileServerAdapter) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to create file server listener on %s: %w", s.config.Address, err)
	}

	return s.serveListener(ctx, listener)
}

// serveListener runs the accept loop on an already bound listener.
func (s *FileServerAdapter) serveListener(ctx context.Context, listener net.Listener) error {
	s.listenerMu.Lock()
	s.listener = listener
	s.listenerMu.Unlock()

	// Stop() may have run before the listener existed.
	select {
	case <-s.shutdown:
		_ = listener.Close()
		return nil
	default:
	}

	if tcpAddr, ok := listener.Addr().(*net.TCPAddr); ok {
		s.addr.Store(tcpAddr)
	}

	logger.Info("File server listening on %s (mode: %s)", listener.Addr(), s.config.Mode)
	logger.Debug("File server config: max_connections=%d max_connections_per_second=%d read_timeout=%v write_timeout=%v buffer=%d",
		s.config.MaxConnections, s.config.MaxConnectionsPerSecond, s.config.ReadTimeout, s.config.WriteTimeout, s.config.RequestBufferSize)

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("File server shutdown signal received: %v", ctx.Err())
			s.initiateShutdown()
		case <-s.shutdown:
		}
	}()

	if s.config.MetricsLogInterval > 0 {
		go s.logMetrics(ctx)
	}

	var acceptDelay time.Duration
	for {
		if s.connSemaphore != nil {
			select {
			case s.connSemaphore <- struct{}{}:
			case <-s.shutdown:
				return s.gracefulShutdown()
			}
		}

		tcpConn, err := listener.Accept()
		if err != nil {
			if s.connSemaphore != nil {
				<-s.connSemaphore
			}

			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
			}

			// Accept failures never stop the server, but a persistent one
			// (e.g. EMFILE) must not spin the loop.
			acceptDelay = nextAcceptDelay(acceptDelay)
			logger.Warn("Error accepting connection: %v; retrying in %v", err, acceptDelay)
			select {
			case <-time.After(acceptDelay):
			case <-s.shutdown:
				return s.gracefulShutdown()
			}
			continue
		}
		acceptDelay = 0

		if !s.limiter.Allow() {
			if s.connSemaphore != nil {
				<-s.connSemaphore
			}
			s.metrics.RecordConnectionRejected()
			go s.reject(tcpConn)
			continue
		}

		s.activeConns.Add(1)
		s.connCount.Add(1)

		connAddr := tcpConn.RemoteAddr().String()
		s.activeConnections.Store(connAddr, tcpConn)

		s.metrics.RecordConnectionAccepted()
		currentConns := s.connCount.Load()
		s.metrics.SetActiveConnections(currentConns)

		logger.Debug("Connection accepted from %s (active: %d)", connAddr, currentConns)

		conn := NewFileServerConnection(s, tcpConn)
		go func(addr string) {
			defer func() {
				s.activeConnections.Delete(addr)

				s.activeConns.Done()
				s.connCount.Add(-1)
				if s.connSemaphore != nil {
					<-s.connSemaphore
				}

				s.metrics.RecordConnectionClosed()
				currentConns := s.connCount.Load()
				s.metrics.SetActiveConnections(currentConns)

				logger.Debug("Connection closed from %s (active: %d)", addr, currentConns)
			}()

			conn.Serve(s.shutdownCtx)
		}(connAddr)
	}
}

// maxAcceptDelay caps the pause between failing Accept calls.
const maxAcceptDelay = time.Second

// nextAcceptDelay doubles the previous pause, starting at 5ms.
func nextAcceptDelay(prev time.Duration) time.Duration {
	if prev == 0 {
		return 5 * time.Millisecond
	}
	return min(prev*2, maxAcceptDelay)
}

// reject answers an over-limit connection with 503 and closes it.
func (s *FileServerAdapter) reject(conn net.Conn) {
	defer closeGracefully(conn)

	logger.Debug("Rejected connection from %s: admission rate exceeded", conn.RemoteAddr())
	if s.config.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	}
	if _, err := response.WriteError(conn, response.StatusServiceUnavailable); err != nil {
		logger.Debug("Error writing 503 to %s: %v", conn.RemoteAddr(), err)
	}
}

// initiateShutdown closes the listener and cancels in-flight requests.
// Safe to call multiple times.
func (s *FileServerAdapter) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		logger.Debug("File server shutdown initiated")

		close(s.shutdown)

		s.listenerMu.Lock()
		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				logger.Debug("Error closing file server listener: %v", err)
			}
		}
		s.listenerMu.Unlock()

		s.cancelRequests()
	})
}

// gracefulShutdown waits for active connections up to ShutdownTimeout, then
// force-closes whatever is left.
func (s *FileServerAdapter) gracefulShutdown() error {
	activeCount := s.connCount.Load()
	logger.Info("File server graceful shutdown: waiting for %d active connection(s) (timeout: %v)",
		activeCount, s.config.ShutdownTimeout)

	select {
	case <-s.drained():
		logger.Info("File server graceful shutdown complete: all connections closed")
		return nil

	case <-time.After(s.config.ShutdownTimeout):
		remaining := s.connCount.Load()
		logger.Warn("File server shutdown timeout exceeded: %d connection(s) still active after %v, forcing closure",
			remaining, s.config.ShutdownTimeout)

		s.forceCloseConnections()

		return fmt.Errorf("file server shutdown timeout: %d connections force-closed", remaining)
	}
}

// drained returns a channel closed once every connection handler has exited.
func (s *FileServerAdapter) drained() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()
	return done
}

// forceCloseConnections closes every tracked connection so blocked reads and
// writes fail immediately.
func (s *FileServerAdapter) forceCloseConnections() {
	closedCount := 0
	s.activeConnections.Range(func(key, value any) bool {
		addr := key.(string)
		conn := value.(net.Conn)

		if err := conn.Close(); err != nil {
			logger.Debug("Error force-closing connection to %s: %v", addr, err)
		} else {
			closedCount++
			s.metrics.RecordConnectionForceClosed()
		}
		return true
	})

	if closedCount > 0 {
		logger.Info("Force-closed %d connection(s)", closedCount)
	}
}

// Stop initiates graceful shutdown and waits for active connections until
// ctx is done. Safe to call multiple times and concurrently with Serve().
func (s *FileServerAdapter) Stop(ctx context.Context) error {
	s.initiateShutdown()

	if ctx == nil {
		return s.gracefulShutdown()
	}

	select {
	case <-s.drained():
		return nil
	case <-ctx.Done():
		remaining := s.connCount.Load()
		logger.Warn("File server shutdown context cancelled: %d connection(s) still active: %v",
			remaining, ctx.Err())
		return ctx.Err()
	}
}

// logMetrics periodically logs the active connection count.
func (s *FileServerAdapter) logMetrics(ctx context.Context) {
	ticker := time.NewTicker(s.config.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		case <-ticker.C:
			logger.Info("File server metrics: active_connections=%d", s.connCount.Load())
		}
	}
}

// GetActiveConnections returns the current number of active connections.
func (s *FileServerAdapter) GetActiveConnections() int32 {
	return s.connCount.Load()
}

// Addr returns the bound listener address, or nil before Serve has bound it.
func (s *FileServerAdapter) Addr() net.Addr {
	if addr := s.addr.Load(); addr != nil {
		return addr
	}
	return nil
}

// Port returns the bound TCP port, or 0 before Serve has bound it.
func (s *FileServerAdapter) Port() int {
	if addr := s.addr.Load(); addr != nil {
		return addr.Port
	}
	return 0
}

// Protocol returns "FILE" as the protocol identifier.
func (s *FileServerAdapter) Protocol() string {
	return "FILE"
}
