package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandler_DisabledRegistry(t *testing.T) {
	if IsEnabled() {
		t.Skip("registry already initialized by another test")
	}

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "disabled")
}

func TestNoopMetrics(t *testing.T) {
	// No-op implementations must be usable without a registry.
	s := NewNoopServerMetrics()
	s.RecordRequest(200, 0)
	s.RecordBytesSent(10)
	s.SetActiveConnections(1)
	s.RecordConnectionAccepted()
	s.RecordConnectionClosed()
	s.RecordConnectionRejected()
	s.RecordConnectionForceClosed()

	i := NewNoopIndexMetrics()
	i.RecordAdd(10, nil)
	i.RecordLookup("get_file_by_id", LookupHit)
	i.RecordReplication(nil)
	i.SetIndexSize(3)
}

func TestNewServer_DefaultPort(t *testing.T) {
	assert.Equal(t, 9090, NewServer(ServerConfig{}).Port())
	assert.Equal(t, 9191, NewServer(ServerConfig{Port: 9191}).Port())
}
