package catalog

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

var bucketFiles = []byte("files")

// BoltStore keeps records as JSON values in a bbolt bucket keyed by a
// big-endian sequence number.
type BoltStore struct {
	db *bbolt.DB
}

var _ Store = (*BoltStore)(nil)

// OpenBolt opens or creates the bbolt database at path. The parent
// directory is created if it does not exist.
func OpenBolt(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("catalog: create directory: %w", err)
	}
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketFiles)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalog: create bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error { return s.db.Close() }

func idKey(id uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, id)
	return k
}

func (s *BoltStore) Add(ctx context.Context, rec Record) (uint64, error) {
	if err := validate(rec); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	rec = stamp(rec)

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketFiles)
		id, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("catalog: next id: %w", err)
		}
		rec.ID = id
		data, err := json.Marshal(&rec)
		if err != nil {
			return fmt.Errorf("catalog: encode record: %w", err)
		}
		return b.Put(idKey(id), data)
	})
	if err != nil {
		return 0, err
	}
	return rec.ID, nil
}

func (s *BoltStore) Get(ctx context.Context, id uint64) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rec Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketFiles).Get(idKey(id))
		if data == nil {
			return ErrNotFound
		}
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("catalog: decode record %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *BoltStore) List(ctx context.Context, limit int, key SortKey, dir SortDir) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var recs []Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketFiles).ForEach(func(k, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("catalog: decode record %d: %w", binary.BigEndian.Uint64(k), err)
			}
			recs = append(recs, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sortRecords(recs, key, dir)
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func (s *BoltStore) Delete(ctx context.Context, id uint64) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var ids []int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketFiles)
		data := b.Get(idKey(id))
		if data == nil {
			return ErrNotFound
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("catalog: decode record %d: %w", id, err)
		}
		ids = rec.MsgIDs
		return b.Delete(idKey(id))
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
