package metrics

import "time"

// ServerMetrics provides observability for the file server adapter.
//
// If no implementation is passed to the adapter, a no-op one is used.
type ServerMetrics interface {
	// RecordRequest records a completed request with the status code that was
	// written back and the time spent between reading and responding.
	RecordRequest(status int, duration time.Duration)

	// RecordBytesSent records response body bytes written to a client.
	RecordBytesSent(bytes int64)

	// SetActiveConnections updates the current connection count.
	SetActiveConnections(count int32)

	// RecordConnectionAccepted increments the accepted connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the closed connections counter.
	RecordConnectionClosed()

	// RecordConnectionRejected increments the counter of connections refused
	// by admission control (rate limit).
	RecordConnectionRejected()

	// RecordConnectionForceClosed increments the counter of connections closed
	// because the shutdown timeout expired.
	RecordConnectionForceClosed()
}

// NewNoopServerMetrics returns a ServerMetrics that discards everything.
func NewNoopServerMetrics() ServerMetrics {
	return noopServerMetrics{}
}

type noopServerMetrics struct{}

func (noopServerMetrics) RecordRequest(int, time.Duration) {}
func (noopServerMetrics) RecordBytesSent(int64)            {}
func (noopServerMetrics) SetActiveConnections(int32)       {}
func (noopServerMetrics) RecordConnectionAccepted()        {}
func (noopServerMetrics) RecordConnectionClosed()          {}
func (noopServerMetrics) RecordConnectionRejected()        {}
func (noopServerMetrics) RecordConnectionForceClosed()     {}
