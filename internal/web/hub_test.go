package web

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHub_BroadcastDoesNotBlock(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()
	assert.Equal(t, 1, h.ClientCount())

	h.Broadcast()
	h.Broadcast()
	_, ok := <-ch
	assert.True(t, ok)
	select {
	case <-ch:
		t.Fatal("second notification should have been coalesced")
	default:
	}

	h.Unsubscribe(ch)
	assert.Zero(t, h.ClientCount())
	_, ok = <-ch
	assert.False(t, ok, "unsubscribe closes the channel")
}

func TestHub_Close(t *testing.T) {
	h := NewHub()
	a, b := h.Subscribe(), h.Subscribe()
	h.Close()

	_, okA := <-a
	_, okB := <-b
	assert.False(t, okA)
	assert.False(t, okB)
	assert.Zero(t, h.ClientCount())

	// unsubscribing after close is harmless
	h.Unsubscribe(a)
}
