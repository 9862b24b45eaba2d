package metrics

// Lookup results reported to IndexMetrics.RecordLookup.
const (
	LookupHit     = "hit"
	LookupMiss    = "miss"
	LookupDesync  = "desync"
	LookupFailure = "error"
)

// IndexMetrics provides observability for the file manager and its index.
type IndexMetrics interface {
	// RecordAdd records an AddFile call, its stored size and its outcome.
	RecordAdd(bytes int64, err error)

	// RecordLookup records a lookup operation ("get_file_by_id", ...) and its
	// result (one of the Lookup* constants).
	RecordLookup(operation string, result string)

	// RecordReplication records the outcome of replicating a committed file.
	RecordReplication(err error)

	// SetIndexSize updates the number of committed entries.
	SetIndexSize(entries int)
}

// NewNoopIndexMetrics returns an IndexMetrics that discards everything.
func NewNoopIndexMetrics() IndexMetrics {
	return noopIndexMetrics{}
}

type noopIndexMetrics struct{}

func (noopIndexMetrics) RecordAdd(int64, error)      {}
func (noopIndexMetrics) RecordLookup(string, string) {}
func (noopIndexMetrics) RecordReplication(error)     {}
func (noopIndexMetrics) SetIndexSize(int)            {}
