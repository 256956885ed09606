package events_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cuemby/storebroker/pkg/command"
	"github.com/cuemby/storebroker/pkg/events"
	"github.com/cuemby/storebroker/pkg/value"
)

func TestInsertVectorLayoutNilPublisher(t *testing.T) {
	now := time.Now()
	v := events.Insert("S", value.String("a"), value.Int(1), nil, command.NilEntity, now)
	require := v.Elems()
	assert.Equal(t, value.String("insert"), require[0])
	assert.Equal(t, value.String("S"), require[1])
	assert.Equal(t, value.String("a"), require[2])
	assert.Equal(t, value.Int(1), require[3])
	assert.Equal(t, value.None(), require[4])
	assert.Equal(t, value.None(), require[5])
	assert.Equal(t, value.None(), require[6])
}

func TestInsertVectorWithExpiryAndPublisher(t *testing.T) {
	now := time.Now()
	expiry := now.Add(50 * time.Millisecond)
	pub := command.EntityID{Endpoint: "ep-1", Object: "obj-1"}
	v := events.Insert("S", value.String("t"), value.String("x"), &expiry, pub, now)
	elems := v.Elems()
	assert.Equal(t, value.KindTimespan, elems[4].Kind())
	assert.InDelta(t, 50*time.Millisecond, elems[4].AsTimespan(), float64(time.Millisecond))
	assert.Equal(t, value.String("ep-1"), elems[5])
	assert.Equal(t, value.String("obj-1"), elems[6])
}

func TestUpdateVectorLayout(t *testing.T) {
	now := time.Now()
	v := events.Update("S", value.String("a"), value.Int(1), value.Int(2), nil, command.NilEntity, now)
	elems := v.Elems()
	assert.Equal(t, value.String("update"), elems[0])
	assert.Equal(t, value.Int(1), elems[3])
	assert.Equal(t, value.Int(2), elems[4])
}

func TestEraseVectorLayout(t *testing.T) {
	v := events.Erase("S", value.String("a"), command.NilEntity)
	elems := v.Elems()
	assert.Equal(t, value.String("erase"), elems[0])
	assert.Equal(t, value.String("S"), elems[1])
	assert.Equal(t, value.String("a"), elems[2])
	assert.Equal(t, value.None(), elems[3])
	assert.Equal(t, value.None(), elems[4])
}

func TestExpireVectorLayout(t *testing.T) {
	v := events.Expire("S", value.String("a"), command.NilEntity)
	elems := v.Elems()
	assert.Equal(t, value.String("expire"), elems[0])
	assert.Len(t, elems, 5)
}

func TestWarningVectorLayout(t *testing.T) {
	v := events.Warning("S", "stale_data", value.String("a"))
	elems := v.Elems()
	assert.Equal(t, value.String("warning"), elems[0])
	assert.Equal(t, value.String("S"), elems[1])
	assert.Equal(t, value.KindEnum, elems[2].Kind())
	assert.Equal(t, "stale_data", elems[2].AsEnum())
	assert.Equal(t, value.String("a"), elems[3])
}

func TestTopicDefaultSeparator(t *testing.T) {
	assert.Equal(t, "store_events/S", events.Topic("S", ""))
}

func TestTopicCustomSeparator(t *testing.T) {
	assert.Equal(t, "store_events.S", events.Topic("S", "."))
}
