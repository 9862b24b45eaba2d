package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/medioxide/internal/logger"
	"github.com/marmos91/medioxide/pkg/adapter"
	"github.com/marmos91/medioxide/pkg/filemanager"
	"github.com/marmos91/medioxide/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// DefaultStopTimeout bounds the Stop() calls issued to adapters on shutdown.
const DefaultStopTimeout = 30 * time.Second

// ErrNoAdapters is returned by Serve when no adapter was registered.
var ErrNoAdapters = errors.New("no adapters registered; call AddAdapter() before Serve()")

// Server manages the lifecycle of the network front ends that share one
// managed folder.
//
// Lifecycle:
//  1. Creation: New() with the file manager
//  2. Registration: AddAdapter() for each front end
//  3. Startup: Serve() runs all adapters (and the metrics endpoint) concurrently
//  4. Shutdown: context cancellation, or any adapter stopping, stops the rest
//     in reverse order; the file manager is closed last
//
// Example usage:
//
//	srv := server.New(fm, server.Options{ShutdownTimeout: 30 * time.Second})
//	_ = srv.AddAdapter(fileserver.New(fsConfig, resolver, serverMetrics))
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := srv.Serve(ctx); err != nil {
//	    log.Fatal(err)
//	}
type Server struct {
	files       *filemanager.FileManager
	metrics     *metrics.Server
	stopTimeout time.Duration

	// mu protects adapters and served
	mu       sync.Mutex
	adapters []adapter.Adapter
	served   bool
}

// Options configures a Server.
type Options struct {
	// ShutdownTimeout bounds the Stop() calls issued on shutdown.
	// Defaults to DefaultStopTimeout.
	ShutdownTimeout time.Duration

	// Metrics, if set, is started alongside the adapters.
	Metrics *metrics.Server
}

// New creates a Server around fm. The server takes ownership of fm and
// closes it when Serve returns.
//
// Panics if fm is nil (indicates programmer error).
func New(fm *filemanager.FileManager, opts Options) *Server {
	if fm == nil {
		panic("file manager cannot be nil")
	}

	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultStopTimeout
	}

	return &Server{
		files:       fm,
		metrics:     opts.Metrics,
		stopTimeout: opts.ShutdownTimeout,
		adapters:    make([]adapter.Adapter, 0, 2),
	}
}

// AddAdapter registers a front end. Two adapters may not share a protocol.
//
// Panics if a is nil or Serve() has already been called.
func (s *Server) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		panic("cannot add adapter after Serve() has been called")
	}

	protocol := a.Protocol()
	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
	}

	s.adapters = append(s.adapters, a)
	logger.Info("Registered %s adapter", protocol)

	return nil
}

// Serve starts every registered adapter and blocks until ctx is cancelled or
// any adapter stops. The remaining adapters are then stopped in reverse
// registration order and the file manager is closed.
//
// Returns nil on graceful shutdown, or the first adapter error.
//
// Panics if called more than once.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		panic("Serve() has already been called on this server instance")
	}
	s.served = true
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	s.mu.Unlock()

	defer s.closeFiles()

	if len(adapters) == 0 {
		return ErrNoAdapters
	}

	logger.Info("Starting medioxide with %d adapter(s), %d indexed file(s) in %s",
		len(adapters), s.files.Len(), s.files.Root())

	g, gctx := errgroup.WithContext(ctx)
	runCtx, stopAll := context.WithCancel(gctx)
	defer stopAll()

	for _, adp := range adapters {
		adp := adp
		g.Go(func() error {
			// One adapter going away takes the whole server down.
			defer stopAll()

			protocol := adp.Protocol()
			if err := adp.Serve(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("%s adapter failed: %v", protocol, err)
				return fmt.Errorf("%s adapter error: %w", protocol, err)
			}
			logger.Info("%s adapter stopped", protocol)
			return nil
		})
	}

	if s.metrics != nil {
		g.Go(func() error {
			return s.metrics.Start(runCtx)
		})
	}

	g.Go(func() error {
		<-runCtx.Done()
		logger.Info("Shutdown signal received (reason: %v)", context.Cause(runCtx))
		s.stopAllAdapters(adapters)
		return nil
	})

	err := g.Wait()
	logger.Info("Medioxide stopped")
	return err
}

// stopAllAdapters signals every adapter to shut down, last registered first.
// Each Stop() shares one timeout so a stuck adapter cannot block shutdown.
func (s *Server) stopAllAdapters(adapters []adapter.Adapter) {
	ctx, cancel := context.WithTimeout(context.Background(), s.stopTimeout)
	defer cancel()

	logger.Info("Initiating graceful shutdown of %d adapter(s)", len(adapters))

	for i := len(adapters) - 1; i >= 0; i-- {
		adp := adapters[i]
		if err := adp.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", adp.Protocol(), err)
		} else {
			logger.Debug("%s adapter stop signal sent", adp.Protocol())
		}
	}
}

func (s *Server) closeFiles() {
	if err := s.files.Close(); err != nil {
		logger.Error("Error closing index of %s: %v", s.files.Root(), err)
	}
}

// Adapters returns a snapshot of the registered adapters.
func (s *Server) Adapters() []adapter.Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()

	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	return adapters
}
