package memory

// Store is the key/value, hint and expiry-sweep subset of the kernel's memory
// substrate (spec.md §4.1). *DB is the only implementation; the
// higher-level components (coordination, routing, learning) take *DB
// directly rather than this interface.
type Store interface {
	StoreEntry(key, value string, opts StoreOptions) error
	Retrieve(key string, opts RetrieveOptions) (string, bool, error)
	Query(pattern string, opts QueryOptions) ([]*Entry, error)
	Delete(key, partition string, agentID string) error
	Clear(partition string) error

	PostHint(hint *Hint) error
	ReadHints(pattern string) ([]*Hint, error)

	CleanExpired() (int, error)

	Close() error
}

var _ Store = (*DB)(nil)
