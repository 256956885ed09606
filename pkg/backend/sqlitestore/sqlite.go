/*
Package sqlitestore implements the persistent Backend variant spec.md
§4.2 calls out by example: SQLite via mattn/go-sqlite3, opened in WAL
mode for crash-safe commits, guarded by a sync.RWMutex the way the
AntoineToussaint-timeoff example's store/sqlite/sqlite.go guards its
*sql.DB.

Schema is a single entries table of (key_blob, value_blob,
expiry_unix NULL) per spec.md §6 "Persisted state layout"; key and value
blobs are the pkg/value JSON codec, which stands in for the out-of-scope
wire serializer just well enough to reconstruct a `data` value
identically across restarts.
*/
package sqlitestore

import (
	"context"
	"database/sql"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cuemby/storebroker/pkg/backend"
	"github.com/cuemby/storebroker/pkg/storeerr"
	"github.com/cuemby/storebroker/pkg/value"
)

// Backend is the SQLite-backed implementation of backend.Backend.
type Backend struct {
	mu sync.RWMutex
	db *sql.DB
}

// Open creates or opens a SQLite-backed store at path. Use ":memory:"
// for an ephemeral database (mainly useful in tests).
func Open(path string) (*Backend, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=FULL")
	if err != nil {
		return nil, storeerr.Newf(storeerr.KindCannotOpenFile, "open sqlite backend: %v", err)
	}
	b := &Backend{db: db}
	if err := b.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backend) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS entries (
		key_blob   TEXT PRIMARY KEY,
		value_blob TEXT NOT NULL,
		expiry_unix INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_entries_expiry ON entries(expiry_unix) WHERE expiry_unix IS NOT NULL;
	`
	if _, err := b.db.Exec(schema); err != nil {
		return storeerr.Newf(storeerr.KindBackendFailure, "migrate sqlite schema: %v", err)
	}
	return nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.db.Close()
}

func (b *Backend) Put(ctx context.Context, key, val value.Value, expiry *time.Time) error {
	keyBlob, err := value.Encode(key)
	if err != nil {
		return storeerr.Newf(storeerr.KindInvalidData, "%v", err)
	}
	valBlob, err := value.Encode(val)
	if err != nil {
		return storeerr.Newf(storeerr.KindInvalidData, "%v", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	_, err = b.db.ExecContext(ctx, `
		INSERT INTO entries(key_blob, value_blob, expiry_unix) VALUES (?, ?, ?)
		ON CONFLICT(key_blob) DO UPDATE SET value_blob = excluded.value_blob, expiry_unix = excluded.expiry_unix
	`, string(keyBlob), string(valBlob), expiryUnix(expiry))
	if err != nil {
		return storeerr.Newf(storeerr.KindBackendFailure, "put: %v", err)
	}
	return nil
}

func (b *Backend) Add(ctx context.Context, key, delta value.Value, initType value.Kind, expiry *time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	current, present, existingExpiry, err := b.lockedGet(ctx, key)
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
	return b.lockedPut(ctx, key, next, eff)
}

func (b *Backend) Subtract(ctx context.Context, key, delta value.Value, expiry *time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	current, present, existingExpiry, err := b.lockedGet(ctx, key)
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
	return b.lockedPut(ctx, key, next, eff)
}

func (b *Backend) Erase(ctx context.Context, key value.Value) error {
	keyBlob, err := value.Encode(key)
	if err != nil {
		return storeerr.Newf(storeerr.KindInvalidData, "%v", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.db.ExecContext(ctx, `DELETE FROM entries WHERE key_blob = ?`, string(keyBlob)); err != nil {
		return storeerr.Newf(storeerr.KindBackendFailure, "erase: %v", err)
	}
	return nil
}

func (b *Backend) Clear(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.db.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return storeerr.Newf(storeerr.KindBackendFailure, "clear: %v", err)
	}
	return nil
}

func (b *Backend) Expire(ctx context.Context, key value.Value, now time.Time) (bool, error) {
	keyBlob, err := value.Encode(key)
	if err != nil {
		return false, storeerr.Newf(storeerr.KindInvalidData, "%v", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	res, err := b.db.ExecContext(ctx, `
		DELETE FROM entries WHERE key_blob = ? AND expiry_unix IS NOT NULL AND expiry_unix <= ?
	`, string(keyBlob), now.UnixNano())
	if err != nil {
		return false, storeerr.Newf(storeerr.KindBackendFailure, "expire: %v", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storeerr.Newf(storeerr.KindBackendFailure, "expire: %v", err)
	}
	return n > 0, nil
}

func (b *Backend) Get(ctx context.Context, key value.Value) (value.Value, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, present, _, err := b.lockedGet(ctx, key)
	if err != nil {
		return value.Value{}, err
	}
	if !present {
		return value.Value{}, storeerr.New(storeerr.KindNoSuchKey)
	}
	return v, nil
}

func (b *Backend) Exists(ctx context.Context, key value.Value) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, present, _, err := b.lockedGet(ctx, key)
	return present, err
}

func (b *Backend) Size(ctx context.Context) (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var n uint64
	if err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, storeerr.Newf(storeerr.KindBackendFailure, "size: %v", err)
	}
	return n, nil
}

func (b *Backend) Keys(ctx context.Context) (value.Value, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rows, err := b.db.QueryContext(ctx, `SELECT key_blob FROM entries`)
	if err != nil {
		return value.Value{}, storeerr.Newf(storeerr.KindBackendFailure, "keys: %v", err)
	}
	defer rows.Close()

	var keys []value.Value
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return value.Value{}, storeerr.Newf(storeerr.KindBackendFailure, "keys: %v", err)
		}
		k, err := value.Decode([]byte(blob))
		if err != nil {
			return value.Value{}, storeerr.Newf(storeerr.KindInvalidData, "%v", err)
		}
		keys = append(keys, k)
	}
	return value.Set(keys...), nil
}

func (b *Backend) Snapshot(ctx context.Context) (backend.Snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rows, err := b.db.QueryContext(ctx, `SELECT key_blob, value_blob, expiry_unix FROM entries`)
	if err != nil {
		return backend.Snapshot{}, storeerr.Newf(storeerr.KindBackendFailure, "snapshot: %v", err)
	}
	defer rows.Close()

	var snap backend.Snapshot
	for rows.Next() {
		var keyBlob, valBlob string
		var expiryUnixVal sql.NullInt64
		if err := rows.Scan(&keyBlob, &valBlob, &expiryUnixVal); err != nil {
			return backend.Snapshot{}, storeerr.Newf(storeerr.KindBackendFailure, "snapshot: %v", err)
		}
		k, err := value.Decode([]byte(keyBlob))
		if err != nil {
			return backend.Snapshot{}, storeerr.Newf(storeerr.KindInvalidData, "%v", err)
		}
		v, err := value.Decode([]byte(valBlob))
		if err != nil {
			return backend.Snapshot{}, storeerr.Newf(storeerr.KindInvalidData, "%v", err)
		}
		var expiry *time.Time
		if expiryUnixVal.Valid {
			t := time.Unix(0, expiryUnixVal.Int64).UTC()
			expiry = &t
		}
		snap.Entries = append(snap.Entries, backend.Entry{Key: k, Value: v, Expiry: expiry})
		if expiry != nil {
			snap.Expiries = append(snap.Expiries, backend.KeyExpiry{Key: k, Expiry: *expiry})
		}
	}
	return snap, nil
}

func (b *Backend) Expiries(ctx context.Context) ([]backend.KeyExpiry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rows, err := b.db.QueryContext(ctx, `SELECT key_blob, expiry_unix FROM entries WHERE expiry_unix IS NOT NULL`)
	if err != nil {
		return nil, storeerr.Newf(storeerr.KindBackendFailure, "expiries: %v", err)
	}
	defer rows.Close()

	var out []backend.KeyExpiry
	for rows.Next() {
		var keyBlob string
		var expiryUnixVal int64
		if err := rows.Scan(&keyBlob, &expiryUnixVal); err != nil {
			return nil, storeerr.Newf(storeerr.KindBackendFailure, "expiries: %v", err)
		}
		k, err := value.Decode([]byte(keyBlob))
		if err != nil {
			return nil, storeerr.Newf(storeerr.KindInvalidData, "%v", err)
		}
		out = append(out, backend.KeyExpiry{Key: k, Expiry: time.Unix(0, expiryUnixVal).UTC()})
	}
	return out, nil
}

// lockedGet and lockedPut must be called with b.mu already held.
func (b *Backend) lockedGet(ctx context.Context, key value.Value) (value.Value, bool, *time.Time, error) {
	keyBlob, err := value.Encode(key)
	if err != nil {
		return value.Value{}, false, nil, storeerr.Newf(storeerr.KindInvalidData, "%v", err)
	}
	var valBlob string
	var expiryUnixVal sql.NullInt64
	err = b.db.QueryRowContext(ctx, `SELECT value_blob, expiry_unix FROM entries WHERE key_blob = ?`, string(keyBlob)).
		Scan(&valBlob, &expiryUnixVal)
	if err == sql.ErrNoRows {
		return value.Value{}, false, nil, nil
	}
	if err != nil {
		return value.Value{}, false, nil, storeerr.Newf(storeerr.KindBackendFailure, "get: %v", err)
	}
	v, err := value.Decode([]byte(valBlob))
	if err != nil {
		return value.Value{}, false, nil, storeerr.Newf(storeerr.KindInvalidData, "%v", err)
	}
	var expiry *time.Time
	if expiryUnixVal.Valid {
		t := time.Unix(0, expiryUnixVal.Int64).UTC()
		expiry = &t
	}
	return v, true, expiry, nil
}

func (b *Backend) lockedPut(ctx context.Context, key, val value.Value, expiry *time.Time) error {
	keyBlob, err := value.Encode(key)
	if err != nil {
		return storeerr.Newf(storeerr.KindInvalidData, "%v", err)
	}
	valBlob, err := value.Encode(val)
	if err != nil {
		return storeerr.Newf(storeerr.KindInvalidData, "%v", err)
	}
	_, err = b.db.ExecContext(ctx, `
		INSERT INTO entries(key_blob, value_blob, expiry_unix) VALUES (?, ?, ?)
		ON CONFLICT(key_blob) DO UPDATE SET value_blob = excluded.value_blob, expiry_unix = excluded.expiry_unix
	`, string(keyBlob), string(valBlob), expiryUnix(expiry))
	if err != nil {
		return storeerr.Newf(storeerr.KindBackendFailure, "put: %v", err)
	}
	return nil
}

func expiryUnix(expiry *time.Time) any {
	if expiry == nil {
		return nil
	}
	return expiry.UnixNano()
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
