package storage

// Store is a key/value blob store. Keys are arbitrary non-empty strings;
// values are opaque bytes and may be empty.
type Store interface {
	// Put stores data under key, replacing any previous value.
	Put(key string, data []byte) error

	// Get retrieves the value stored under key.
	Get(key string) ([]byte, error)

	// Has checks if a value exists for key.
	Has(key string) (bool, error)

	// Delete removes the value stored under key.
	Delete(key string) error

	// Size returns the size in bytes of the value stored under key.
	Size(key string) (int64, error)

	// List returns all stored keys, in no particular order.
	List() ([]string, error)
}
