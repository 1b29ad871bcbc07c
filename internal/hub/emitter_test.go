package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmitterFiresInRegistrationOrder(t *testing.T) {
	var e emitter
	var got []int
	e.on("ev", func(any) { got = append(got, 1) })
	e.on("ev", func(any) { got = append(got, 2) })
	e.on("other", func(any) { got = append(got, 99) })

	e.emit("ev", nil)
	assert.Equal(t, []int{1, 2}, got)
}

func TestEmitterUnsubscribe(t *testing.T) {
	var e emitter
	count := 0
	off := e.on("ev", func(any) { count++ })

	e.emit("ev", nil)
	off()
	off() // second call is a no-op
	e.emit("ev", nil)

	assert.Equal(t, 1, count)
}

func TestEmitterPayload(t *testing.T) {
	var e emitter
	var got any
	e.on("ev", func(payload any) { got = payload })
	e.emit("ev", "hello")
	assert.Equal(t, "hello", got)
}

func TestEmitterRemoveAll(t *testing.T) {
	var e emitter
	count := 0
	e.on("a", func(any) { count++ })
	e.on("b", func(any) { count++ })

	e.removeAll()
	e.emit("a", nil)
	e.emit("b", nil)
	assert.Zero(t, count)

	// registry still usable after removeAll
	e.on("a", func(any) { count++ })
	e.emit("a", nil)
	assert.Equal(t, 1, count)
}

func TestEmitterUnsubscribeDuringEmit(t *testing.T) {
	var e emitter
	count := 0
	var off func()
	off = e.on("ev", func(any) {
		count++
		off()
	})

	e.emit("ev", nil)
	e.emit("ev", nil)
	assert.Equal(t, 1, count)
}
