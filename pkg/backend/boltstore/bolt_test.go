package boltstore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/storebroker/pkg/backend/boltstore"
	"github.com/cuemby/storebroker/pkg/storeerr"
	"github.com/cuemby/storebroker/pkg/value"
)

func openTest(t *testing.T) *boltstore.Backend {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.db")
	b, err := boltstore.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestPutThenGet(t *testing.T) {
	ctx := context.Background()
	b := openTest(t)
	require.NoError(t, b.Put(ctx, value.String("a"), value.Int(1), nil))

	got, err := b.Get(ctx, value.String("a"))
	require.NoError(t, err)
	assert.Equal(t, value.Int(1), got)
}

func TestGetMissingIsNoSuchKey(t *testing.T) {
	ctx := context.Background()
	b := openTest(t)
	_, err := b.Get(ctx, value.String("missing"))
	var storeErr *storeerr.Error
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, storeerr.KindNoSuchKey, storeErr.Kind)
}

func TestEraseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	b := openTest(t)
	require.NoError(t, b.Erase(ctx, value.String("never-existed")))
	require.NoError(t, b.Put(ctx, value.String("a"), value.Int(1), nil))
	require.NoError(t, b.Erase(ctx, value.String("a")))
	require.NoError(t, b.Erase(ctx, value.String("a")))

	exists, err := b.Exists(ctx, value.String("a"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestExpireRemovesPastEntry(t *testing.T) {
	ctx := context.Background()
	b := openTest(t)
	past := time.Now().Add(-time.Minute)
	require.NoError(t, b.Put(ctx, value.String("t"), value.String("x"), &past))

	removed, err := b.Expire(ctx, value.String("t"), time.Now())
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = b.Get(ctx, value.String("t"))
	assert.Error(t, err)
}

func TestExpireLeavesFutureEntry(t *testing.T) {
	ctx := context.Background()
	b := openTest(t)
	future := time.Now().Add(time.Hour)
	require.NoError(t, b.Put(ctx, value.String("t"), value.String("x"), &future))

	removed, err := b.Expire(ctx, value.String("t"), time.Now())
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestAddInitializesAbsentKey(t *testing.T) {
	ctx := context.Background()
	b := openTest(t)
	require.NoError(t, b.Add(ctx, value.String("counter"), value.Count(5), value.KindCount, nil))

	got, err := b.Get(ctx, value.String("counter"))
	require.NoError(t, err)
	assert.Equal(t, value.Count(5), got)
}

func TestAddPreservesExpiryWhenNotProvided(t *testing.T) {
	ctx := context.Background()
	b := openTest(t)
	future := time.Now().Add(time.Hour)
	require.NoError(t, b.Put(ctx, value.String("counter"), value.Count(1), &future))
	require.NoError(t, b.Add(ctx, value.String("counter"), value.Count(1), value.KindCount, nil))

	expiries, err := b.Expiries(ctx)
	require.NoError(t, err)
	require.Len(t, expiries, 1)
	assert.WithinDuration(t, future, expiries[0].Expiry, time.Second)
}

func TestSubtractMissingKeyFails(t *testing.T) {
	ctx := context.Background()
	b := openTest(t)
	err := b.Subtract(ctx, value.String("missing"), value.Count(1), nil)
	var storeErr *storeerr.Error
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, storeerr.KindNoSuchKey, storeErr.Kind)
}

func TestKeysAndSize(t *testing.T) {
	ctx := context.Background()
	b := openTest(t)
	require.NoError(t, b.Put(ctx, value.String("a"), value.Int(1), nil))
	require.NoError(t, b.Put(ctx, value.String("b"), value.Int(2), nil))

	size, err := b.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), size)

	keys, err := b.Keys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys.Elems(), 2)
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := openTest(t)
	future := time.Now().Add(time.Hour)
	require.NoError(t, b.Put(ctx, value.String("a"), value.Int(1), &future))
	require.NoError(t, b.Put(ctx, value.String("b"), value.String("x"), nil))

	snap, err := b.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Entries, 2)
	assert.Len(t, snap.Expiries, 1)
}

func TestClearRemovesEverything(t *testing.T) {
	ctx := context.Background()
	b := openTest(t)
	require.NoError(t, b.Put(ctx, value.String("a"), value.Int(1), nil))
	require.NoError(t, b.Clear(ctx))

	size, err := b.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), size)
}
