// Package catalog persists the addresses of stored files so they can be
// listed and fetched again by id. Two backends are provided: an embedded
// bbolt database and a SQLite table.
package catalog

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Record describes one stored file.
type Record struct {
	ID         uint64    `json:"id"`
	Name       string    `json:"file_name"`
	MsgIDs     []int64   `json:"msg_ids"`
	Size       int64     `json:"size_bytes"`
	StoredSize int64     `json:"stored_bytes"`
	Digest     []byte    `json:"digest,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// SortKey selects the List ordering column.
type SortKey string

const (
	SortByDate SortKey = "date"
	SortBySize SortKey = "size"
	SortByName SortKey = "name"
)

// SortDir selects ascending or descending order.
type SortDir string

const (
	Asc  SortDir = "asc"
	Desc SortDir = "desc"
)

// ParseSortKey maps a user value to a SortKey. Unknown values sort by date.
func ParseSortKey(s string) SortKey {
	switch SortKey(strings.ToLower(strings.TrimSpace(s))) {
	case SortBySize:
		return SortBySize
	case SortByName:
		return SortByName
	default:
		return SortByDate
	}
}

// ParseSortDir maps a user value to a SortDir. Anything but "asc" is
// descending.
func ParseSortDir(s string) SortDir {
	if strings.EqualFold(strings.TrimSpace(s), string(Asc)) {
		return Asc
	}
	return Desc
}

// Store is a file metadata catalog.
type Store interface {
	// Add inserts rec and returns its assigned id. ID is ignored; a zero
	// UploadedAt is set to the current time.
	Add(ctx context.Context, rec Record) (uint64, error)

	// Get returns the record with the given id.
	Get(ctx context.Context, id uint64) (*Record, error)

	// List returns up to limit records in the given order. A limit of
	// zero or less returns every record.
	List(ctx context.Context, limit int, key SortKey, dir SortDir) ([]Record, error)

	// Delete removes a record and returns the message ids it referenced.
	Delete(ctx context.Context, id uint64) ([]int64, error)

	// Close releases the underlying database.
	Close() error
}

const (
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
)

// Open opens the named backend at path.
func Open(backend, path string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendBolt:
		return OpenBolt(path)
	case BackendSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

func validate(rec Record) error {
	if strings.TrimSpace(rec.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidRecord)
	}
	if len(rec.MsgIDs) == 0 {
		return fmt.Errorf("%w: no message ids", ErrInvalidRecord)
	}
	if rec.Size < 0 || rec.StoredSize < 0 {
		return fmt.Errorf("%w: negative size", ErrInvalidRecord)
	}
	return nil
}

// stamp prepares rec for insertion. Timestamps keep second precision so
// both backends round-trip the same value.
func stamp(rec Record) Record {
	if rec.UploadedAt.IsZero() {
		rec.UploadedAt = time.Now()
	}
	rec.UploadedAt = rec.UploadedAt.Truncate(time.Second).UTC()
	rec.MsgIDs = append([]int64(nil), rec.MsgIDs...)
	rec.Digest = append([]byte(nil), rec.Digest...)
	return rec
}

// sortRecords orders recs in place. Ties break on id in the same direction.
func sortRecords(recs []Record, key SortKey, dir SortDir) {
	slices.SortStableFunc(recs, func(a, b Record) int {
		c := 0
		switch key {
		case SortBySize:
			c = cmp.Compare(a.Size, b.Size)
		case SortByName:
			c = strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		default:
			c = a.UploadedAt.Compare(b.UploadedAt)
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if dir != Asc {
			return -c
		}
		return c
	})
}
