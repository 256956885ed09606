package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/storebroker/pkg/backend/memory"
	"github.com/cuemby/storebroker/pkg/storeerr"
	"github.com/cuemby/storebroker/pkg/value"
)

func TestPutThenGet(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	require.NoError(t, b.Put(ctx, value.String("a"), value.Int(1), nil))

	got, err := b.Get(ctx, value.String("a"))
	require.NoError(t, err)
	assert.Equal(t, value.Int(1), got)
}

func TestGetMissingIsNoSuchKey(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	_, err := b.Get(ctx, value.String("missing"))
	var storeErr *storeerr.Error
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, storeerr.KindNoSuchKey, storeErr.Kind)
}

func TestEraseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
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
	b := memory.New()
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
	b := memory.New()
	future := time.Now().Add(time.Hour)
	require.NoError(t, b.Put(ctx, value.String("t"), value.String("x"), &future))

	removed, err := b.Expire(ctx, value.String("t"), time.Now())
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestAddInitializesAbsentKey(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	require.NoError(t, b.Add(ctx, value.String("counter"), value.Count(5), value.KindCount, nil))

	got, err := b.Get(ctx, value.String("counter"))
	require.NoError(t, err)
	assert.Equal(t, value.Count(5), got)
}

func TestAddPreservesExpiryWhenNotProvided(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
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
	b := memory.New()
	err := b.Subtract(ctx, value.String("missing"), value.Count(1), nil)
	var storeErr *storeerr.Error
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, storeerr.KindNoSuchKey, storeErr.Kind)
}

func TestKeysAndSize(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	require.NoError(t, b.Put(ctx, value.String("a"), value.Int(1), nil))
	require.NoError(t, b.Put(ctx, value.String("b"), value.Int(2), nil))

	size, err := b.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), size)

	keys, err := b.Keys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys.Elems(), 2)
}

func TestRealValuedKeysDoNotCollide(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	require.NoError(t, b.Put(ctx, value.Real(1.1), value.String("low"), nil))
	require.NoError(t, b.Put(ctx, value.Real(1.9), value.String("high"), nil))

	low, err := b.Get(ctx, value.Real(1.1))
	require.NoError(t, err)
	assert.Equal(t, value.String("low"), low)

	high, err := b.Get(ctx, value.Real(1.9))
	require.NoError(t, err)
	assert.Equal(t, value.String("high"), high)

	size, err := b.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), size)
}

func TestSnapshotAndRestore(t *testing.T) {
	ctx := context.Background()
	src := memory.New()
	future := time.Now().Add(time.Hour)
	require.NoError(t, src.Put(ctx, value.String("a"), value.Int(1), &future))

	snap, err := src.Snapshot(ctx)
	require.NoError(t, err)

	dst := memory.New()
	dst.Restore(snap.Entries)

	got, err := dst.Get(ctx, value.String("a"))
	require.NoError(t, err)
	assert.Equal(t, value.Int(1), got)
}
