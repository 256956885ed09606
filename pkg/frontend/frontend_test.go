package frontend_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/storebroker/pkg/backend/memory"
	"github.com/cuemby/storebroker/pkg/bus"
	"github.com/cuemby/storebroker/pkg/command"
	"github.com/cuemby/storebroker/pkg/frontend"
	"github.com/cuemby/storebroker/pkg/storeactor"
	"github.com/cuemby/storebroker/pkg/storeerr"
	"github.com/cuemby/storebroker/pkg/value"
)

func newMasterFrontend(t *testing.T, name string) *frontend.Frontend {
	t.Helper()
	b := bus.New()
	a := storeactor.New(storeactor.Config{
		StoreName:    name,
		Role:         storeactor.RoleMaster,
		Backend:      memory.New(),
		Bus:          b,
		TickInterval: time.Hour,
		Self:         command.EntityID{Endpoint: "ep-master", Object: "master"},
	})
	ctx, cancel := context.WithCancel(context.Background())
	go a.Run(ctx)
	t.Cleanup(cancel)
	return frontend.New(a, name, command.EntityID{Endpoint: "ep-caller", Object: "caller"}, 0)
}

func TestFrontendPutThenGet(t *testing.T) {
	f := newMasterFrontend(t, "S")
	ctx := context.Background()

	f.Put(value.String("a"), value.Int(1), nil)

	require.Eventually(t, func() bool {
		v, err := f.Get(ctx, value.String("a"))
		return err == nil && value.Equal(v, value.Int(1))
	}, time.Second, 10*time.Millisecond)
}

func TestFrontendGetMissingKeyIsNoSuchKey(t *testing.T) {
	f := newMasterFrontend(t, "S")
	_, err := f.Get(context.Background(), value.String("missing"))
	var se *storeerr.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, storeerr.KindNoSuchKey, se.Kind)
}

func TestFrontendPutUnique(t *testing.T) {
	f := newMasterFrontend(t, "S")
	ctx := context.Background()

	inserted, err := f.PutUnique(ctx, value.String("k"), value.String("A"), nil)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = f.PutUnique(ctx, value.String("k"), value.String("B"), nil)
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestFrontendAppendAndGetIndexFromValue(t *testing.T) {
	f := newMasterFrontend(t, "S")
	ctx := context.Background()

	f.Append(value.String("v"), value.Int(1), nil)
	f.Append(value.String("v"), value.Int(2), nil)

	require.Eventually(t, func() bool {
		got, err := f.Get(ctx, value.String("v"))
		return err == nil && len(got.Elems()) == 2
	}, time.Second, 10*time.Millisecond)

	idx, err := f.GetIndexFromValue(ctx, value.String("v"), value.Count(0))
	require.NoError(t, err)
	assert.True(t, value.Equal(idx, value.Int(1)))
}

func TestFrontendExistsAndErase(t *testing.T) {
	f := newMasterFrontend(t, "S")
	ctx := context.Background()

	f.Put(value.String("a"), value.Int(1), nil)
	require.Eventually(t, func() bool {
		ok, err := f.Exists(ctx, value.String("a"))
		return err == nil && ok
	}, time.Second, 10*time.Millisecond)

	f.Erase(value.String("a"))
	require.Eventually(t, func() bool {
		ok, err := f.Exists(ctx, value.String("a"))
		return err == nil && !ok
	}, time.Second, 10*time.Millisecond)
}

func TestFrontendKeys(t *testing.T) {
	f := newMasterFrontend(t, "S")
	ctx := context.Background()

	f.Put(value.String("a"), value.Int(1), nil)
	f.Put(value.String("b"), value.Int(2), nil)

	require.Eventually(t, func() bool {
		keys, err := f.Keys(ctx)
		return err == nil && len(keys.Elems()) == 2
	}, time.Second, 10*time.Millisecond)
}
