package index

import "context"

// Store persists index entries.
//
// Implementations must make Append durable before returning: the file manager
// only publishes an entry to readers after Append succeeds, so a restart
// reconstructs the same mapping (write-through persistence).
//
// Thread safety:
// Implementations must be safe for concurrent use.
type Store interface {
	// Load reads every persisted entry. It fails as a whole if any entry is
	// corrupt; there is no skip-and-continue recovery.
	Load(ctx context.Context) (map[string]string, error)

	// Append durably records one new entry.
	Append(ctx context.Context, e Entry) error

	// Close releases any resources held by the store.
	Close() error
}
