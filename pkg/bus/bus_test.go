package bus_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/storebroker/pkg/bus"
)

func TestPublishSubscribe(t *testing.T) {
	b := bus.New()
	sub := b.Subscribe("topic-a", 4)
	defer sub.Unsubscribe()

	b.Publish("topic-a", "hello")

	select {
	case msg := <-sub.C():
		assert.Equal(t, "topic-a", msg.Topic)
		assert.Equal(t, "hello", msg.Payload)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestPublishOnlyReachesItsTopic(t *testing.T) {
	b := bus.New()
	subA := b.Subscribe("a", 4)
	subB := b.Subscribe("b", 4)
	defer subA.Unsubscribe()
	defer subB.Unsubscribe()

	b.Publish("a", 1)

	select {
	case <-subB.C():
		t.Fatal("subscriber on topic b should not receive topic a traffic")
	case <-time.After(50 * time.Millisecond):
	}

	require.Equal(t, 1, b.SubscriberCount("a"))
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := bus.New()
	sub := b.Subscribe("t", 1)
	sub.Unsubscribe()

	_, ok := <-sub.C()
	assert.False(t, ok)
	assert.Equal(t, 0, b.SubscriberCount("t"))
}

func TestPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	b := bus.New()
	sub := b.Subscribe("t", 1)
	defer sub.Unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Publish("t", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber buffer")
	}
}
