/*
Package boltstore implements the second persistent Backend variant
spec.md §4.2 allows alongside sqlitestore: go.etcd.io/bbolt, collapsing
the teacher's bucket-per-collection BoltStore (pkg/storage/boltdb.go,
one bucket per domain type) down to a single "entries" bucket keyed by
the pkg/value JSON codec, since every record here is the same (key,
value, expiry) shape rather than a handful of distinct domain types.
*/
package boltstore

import (
	"context"
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/storebroker/pkg/backend"
	"github.com/cuemby/storebroker/pkg/storeerr"
	"github.com/cuemby/storebroker/pkg/value"
)

var bucketEntries = []byte("entries")

// record is the JSON-on-disk shape of one bucket value.
type record struct {
	Value      json.RawMessage `json:"value"`
	ExpiryUnix *int64          `json:"expiry_unix,omitempty"`
}

// Backend is the bbolt-backed implementation of backend.Backend. bbolt
// serializes all access through its own transaction machinery, so no
// additional locking is needed here the way sqlitestore needs a
// sync.RWMutex around *sql.DB.
type Backend struct {
	db *bolt.DB
}

// Open creates or opens a bbolt-backed store at path.
func Open(path string) (*Backend, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, storeerr.Newf(storeerr.KindCannotOpenFile, "open bolt backend: %v", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEntries)
		return err
	})
	if err != nil {
		db.Close()
		return nil, storeerr.Newf(storeerr.KindBackendFailure, "create entries bucket: %v", err)
	}
	return &Backend{db: db}, nil
}

func (b *Backend) Close() error {
	return b.db.Close()
}

func (b *Backend) Put(_ context.Context, key, val value.Value, expiry *time.Time) error {
	keyBlob, err := value.Encode(key)
	if err != nil {
		return storeerr.Newf(storeerr.KindInvalidData, "%v", err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return putRecord(tx, keyBlob, val, expiry)
	})
}

func (b *Backend) Add(_ context.Context, key, delta value.Value, initType value.Kind, expiry *time.Time) error {
	keyBlob, err := value.Encode(key)
	if err != nil {
		return storeerr.Newf(storeerr.KindInvalidData, "%v", err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		current, present, existingExpiry, err := getRecord(tx, keyBlob)
		if err != nil {
			return err
		}
		target := value.Value{}
		if present {
			target = current
		}
		next, verr := value.Add(target, present, delta, initType)
		if verr != nil {
			return translateValueErr(verr)
		}
		eff := expiry
		if eff == nil {
			eff = existingExpiry
		}
		return putRecord(tx, keyBlob, next, eff)
	})
}

func (b *Backend) Subtract(_ context.Context, key, delta value.Value, expiry *time.Time) error {
	keyBlob, err := value.Encode(key)
	if err != nil {
		return storeerr.Newf(storeerr.KindInvalidData, "%v", err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		current, present, existingExpiry, err := getRecord(tx, keyBlob)
		if err != nil {
			return err
		}
		if !present {
			return storeerr.New(storeerr.KindNoSuchKey)
		}
		next, verr := value.Subtract(current, delta)
		if verr != nil {
			return translateValueErr(verr)
		}
		eff := expiry
		if eff == nil {
			eff = existingExpiry
		}
		return putRecord(tx, keyBlob, next, eff)
	})
}

func (b *Backend) Erase(_ context.Context, key value.Value) error {
	keyBlob, err := value.Encode(key)
	if err != nil {
		return storeerr.Newf(storeerr.KindInvalidData, "%v", err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).Delete(keyBlob)
	})
}

func (b *Backend) Clear(_ context.Context) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketEntries); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket(bucketEntries)
		return err
	})
}

func (b *Backend) Expire(_ context.Context, key value.Value, now time.Time) (bool, error) {
	keyBlob, err := value.Encode(key)
	if err != nil {
		return false, storeerr.Newf(storeerr.KindInvalidData, "%v", err)
	}
	var removed bool
	err = b.db.Update(func(tx *bolt.Tx) error {
		_, present, expiry, err := getRecord(tx, keyBlob)
		if err != nil {
			return err
		}
		if !present || expiry == nil || expiry.After(now) {
			return nil
		}
		removed = true
		return tx.Bucket(bucketEntries).Delete(keyBlob)
	})
	if err != nil {
		return false, storeerr.Newf(storeerr.KindBackendFailure, "expire: %v", err)
	}
	return removed, nil
}

func (b *Backend) Get(_ context.Context, key value.Value) (value.Value, error) {
	keyBlob, err := value.Encode(key)
	if err != nil {
		return value.Value{}, storeerr.Newf(storeerr.KindInvalidData, "%v", err)
	}
	var v value.Value
	var present bool
	err = b.db.View(func(tx *bolt.Tx) error {
		got, ok, _, err := getRecord(tx, keyBlob)
		v, present = got, ok
		return err
	})
	if err != nil {
		return value.Value{}, err
	}
	if !present {
		return value.Value{}, storeerr.New(storeerr.KindNoSuchKey)
	}
	return v, nil
}

func (b *Backend) Exists(_ context.Context, key value.Value) (bool, error) {
	keyBlob, err := value.Encode(key)
	if err != nil {
		return false, storeerr.Newf(storeerr.KindInvalidData, "%v", err)
	}
	var present bool
	err = b.db.View(func(tx *bolt.Tx) error {
		_, ok, _, err := getRecord(tx, keyBlob)
		present = ok
		return err
	})
	return present, err
}

func (b *Backend) Size(_ context.Context) (uint64, error) {
	var n uint64
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).ForEach(func(_, _ []byte) error {
			n++
			return nil
		})
	})
	return n, err
}

func (b *Backend) Keys(_ context.Context) (value.Value, error) {
	var keys []value.Value
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).ForEach(func(k, _ []byte) error {
			key, err := value.Decode(k)
			if err != nil {
				return err
			}
			keys = append(keys, key)
			return nil
		})
	})
	if err != nil {
		return value.Value{}, storeerr.Newf(storeerr.KindInvalidData, "%v", err)
	}
	return value.Set(keys...), nil
}

func (b *Backend) Snapshot(_ context.Context) (backend.Snapshot, error) {
	var snap backend.Snapshot
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).ForEach(func(k, v []byte) error {
			key, err := value.Decode(k)
			if err != nil {
				return err
			}
			var rec record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			val, err := value.Decode(rec.Value)
			if err != nil {
				return err
			}
			var expiry *time.Time
			if rec.ExpiryUnix != nil {
				t := time.Unix(0, *rec.ExpiryUnix).UTC()
				expiry = &t
			}
			snap.Entries = append(snap.Entries, backend.Entry{Key: key, Value: val, Expiry: expiry})
			if expiry != nil {
				snap.Expiries = append(snap.Expiries, backend.KeyExpiry{Key: key, Expiry: *expiry})
			}
			return nil
		})
	})
	if err != nil {
		return backend.Snapshot{}, storeerr.Newf(storeerr.KindInvalidData, "%v", err)
	}
	return snap, nil
}

func (b *Backend) Expiries(_ context.Context) ([]backend.KeyExpiry, error) {
	var out []backend.KeyExpiry
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).ForEach(func(k, v []byte) error {
			var rec record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if rec.ExpiryUnix == nil {
				return nil
			}
			key, err := value.Decode(k)
			if err != nil {
				return err
			}
			out = append(out, backend.KeyExpiry{Key: key, Expiry: time.Unix(0, *rec.ExpiryUnix).UTC()})
			return nil
		})
	})
	if err != nil {
		return nil, storeerr.Newf(storeerr.KindInvalidData, "%v", err)
	}
	return out, nil
}

// getRecord and putRecord operate within an already-open bbolt
// transaction; they do not acquire locks of their own.
func getRecord(tx *bolt.Tx, keyBlob []byte) (value.Value, bool, *time.Time, error) {
	raw := tx.Bucket(bucketEntries).Get(keyBlob)
	if raw == nil {
		return value.Value{}, false, nil, nil
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return value.Value{}, false, nil, storeerr.Newf(storeerr.KindInvalidData, "%v", err)
	}
	val, err := value.Decode(rec.Value)
	if err != nil {
		return value.Value{}, false, nil, storeerr.Newf(storeerr.KindInvalidData, "%v", err)
	}
	var expiry *time.Time
	if rec.ExpiryUnix != nil {
		t := time.Unix(0, *rec.ExpiryUnix).UTC()
		expiry = &t
	}
	return val, true, expiry, nil
}

func putRecord(tx *bolt.Tx, keyBlob []byte, val value.Value, expiry *time.Time) error {
	valBlob, err := value.Encode(val)
	if err != nil {
		return storeerr.Newf(storeerr.KindInvalidData, "%v", err)
	}
	rec := record{Value: valBlob}
	if expiry != nil {
		u := expiry.UnixNano()
		rec.ExpiryUnix = &u
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return storeerr.Newf(storeerr.KindInvalidData, "%v", err)
	}
	return tx.Bucket(bucketEntries).Put(keyBlob, raw)
}

func translateValueErr(err error) error {
	switch err {
	case value.ErrTypeClash:
		return storeerr.New(storeerr.KindTypeClash)
	case value.ErrNoSuchKey:
		return storeerr.New(storeerr.KindNoSuchKey)
	default:
		return storeerr.Newf(storeerr.KindBackendFailure, "%v", err)
	}
}
