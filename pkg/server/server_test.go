package server

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marmos91/medioxide/pkg/adapter/fileserver"
	"github.com/marmos91/medioxide/pkg/filemanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdapter blocks in Serve until its context is cancelled or Stop is called.
type fakeAdapter struct {
	protocol string
	serveErr error
	stopped  chan struct{}
	stops    atomic.Int32
}

func newFakeAdapter(protocol string) *fakeAdapter {
	return &fakeAdapter{protocol: protocol, stopped: make(chan struct{})}
}

func (a *fakeAdapter) Serve(ctx context.Context) error {
	if a.serveErr != nil {
		return a.serveErr
	}
	select {
	case <-ctx.Done():
	case <-a.stopped:
	}
	return nil
}

func (a *fakeAdapter) Stop(context.Context) error {
	if a.stops.Add(1) == 1 {
		close(a.stopped)
	}
	return nil
}

func (a *fakeAdapter) Protocol() string { return a.protocol }
func (a *fakeAdapter) Port() int        { return 0 }

func newFileManager(t *testing.T) *filemanager.FileManager {
	t.Helper()
	fm, err := filemanager.New(context.Background(), filemanager.Config{
		Root:            t.TempDir(),
		CreateIfMissing: true,
	})
	require.NoError(t, err)
	return fm
}

func TestNew_NilFileManagerPanics(t *testing.T) {
	assert.Panics(t, func() { New(nil, Options{}) })
}

func TestAddAdapter_DuplicateProtocol(t *testing.T) {
	srv := New(newFileManager(t), Options{})

	require.NoError(t, srv.AddAdapter(newFakeAdapter("FILE")))
	err := srv.AddAdapter(newFakeAdapter("FILE"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
	assert.Len(t, srv.Adapters(), 1)
}

func TestAddAdapter_NilPanics(t *testing.T) {
	srv := New(newFileManager(t), Options{})
	assert.Panics(t, func() { _ = srv.AddAdapter(nil) })
}

func TestServe_NoAdapters(t *testing.T) {
	fm := newFileManager(t)
	srv := New(fm, Options{})

	err := srv.Serve(context.Background())
	assert.ErrorIs(t, err, ErrNoAdapters)

	// The file manager is closed even when nothing was served
	_, err = fm.FileExistsWithID(context.Background(), "x")
	assert.ErrorIs(t, err, filemanager.ErrIndexUnavailable)
}

func TestServe_CancelStopsAdaptersAndClosesIndex(t *testing.T) {
	fm := newFileManager(t)
	srv := New(fm, Options{ShutdownTimeout: time.Second})

	first := newFakeAdapter("FILE")
	second := newFakeAdapter("OTHER")
	require.NoError(t, srv.AddAdapter(first))
	require.NoError(t, srv.AddAdapter(second))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	assert.Equal(t, int32(1), first.stops.Load())
	assert.Equal(t, int32(1), second.stops.Load())

	_, err := fm.FileExistsWithID(context.Background(), "x")
	assert.ErrorIs(t, err, filemanager.ErrIndexUnavailable)
}

func TestServe_AdapterFailureStopsOthers(t *testing.T) {
	srv := New(newFileManager(t), Options{ShutdownTimeout: time.Second})

	healthy := newFakeAdapter("FILE")
	broken := newFakeAdapter("BROKEN")
	broken.serveErr = errors.New("bind: address already in use")
	require.NoError(t, srv.AddAdapter(healthy))
	require.NoError(t, srv.AddAdapter(broken))

	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background()) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "BROKEN adapter error")
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after adapter failure")
	}

	assert.Equal(t, int32(1), healthy.stops.Load())
}

func TestServe_TwicePanics(t *testing.T) {
	srv := New(newFileManager(t), Options{})
	_ = srv.Serve(context.Background())

	assert.Panics(t, func() { _ = srv.Serve(context.Background()) })
	assert.Panics(t, func() { _ = srv.AddAdapter(newFakeAdapter("FILE")) })
}

func TestServe_FileServerEndToEnd(t *testing.T) {
	fm := newFileManager(t)
	_, err := fm.AddFile(context.Background(), "abc123", "notes/hello.txt", strings.NewReader("hello from medioxide"))
	require.NoError(t, err)

	adapter := fileserver.New(fileserver.FileServerConfig{
		Address:         "127.0.0.1:0",
		Mode:            fileserver.ModeIndex,
		ShutdownTimeout: time.Second,
	}, fileserver.NewIndexResolver(fm), nil)

	srv := New(fm, Options{ShutdownTimeout: time.Second})
	require.NoError(t, srv.AddAdapter(adapter))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	require.Eventually(t, func() bool { return adapter.Port() != 0 }, 2*time.Second, 5*time.Millisecond)

	conn, err := net.DialTimeout("tcp", adapter.Addr().String(), 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = conn.Write([]byte("GET /abc123 HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)

	out, err := io.ReadAll(conn)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(out), "HTTP/1.1 200 OK\r\n"), "got %q", out)
	assert.Contains(t, string(out), "Content-type: text/plain")
	assert.True(t, strings.HasSuffix(string(out), "\r\n\r\nhello from medioxide"))
}
