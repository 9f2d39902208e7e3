package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusDeliversInSubscriptionOrder(t *testing.T) {
	t.Parallel()

	var bus Bus[int]
	var got []string

	bus.Subscribe(func(v int) { got = append(got, "first") })
	unsubscribe := bus.Subscribe(func(v int) { got = append(got, "second") })
	bus.Subscribe(func(v int) { got = append(got, "third") })

	bus.Publish(1)
	unsubscribe()
	unsubscribe()
	bus.Publish(2)

	assert.Equal(t, []string{"first", "second", "third", "first", "third"}, got)
	assert.Equal(t, 2, bus.Len())
}

func TestBusAllowsSubscribingFromHandler(t *testing.T) {
	t.Parallel()

	var bus Bus[string]
	calls := 0
	bus.Subscribe(func(string) {
		calls++
		bus.Subscribe(func(string) { calls++ })
	})

	bus.Publish("a")
	assert.Equal(t, 1, calls)

	bus.Publish("b")
	assert.Equal(t, 3, calls)
}
