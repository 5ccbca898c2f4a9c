package view

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCell_LoadStore(t *testing.T) {
	c := NewCell("initial")
	assert.Equal(t, "initial", c.Load())

	c.Store("next")
	assert.Equal(t, "next", c.Load())

	var zero Cell[int]
	assert.Equal(t, 0, zero.Load())
}

func TestCell_NotifiesInSubscriptionOrder(t *testing.T) {
	c := NewCell(0)
	var got []string

	c.Subscribe(func(v int) { got = append(got, "a") })
	c.Subscribe(func(v int) { got = append(got, "b") })

	c.Store(1)
	require.Equal(t, []string{"a", "b"}, got)
}

func TestCell_SubscriberSeesStoredValue(t *testing.T) {
	c := NewCell(0)
	var seen int
	c.Subscribe(func(v int) {
		seen = v
		// The snapshot is already swapped in when observers run.
		assert.Equal(t, v, c.Load())
	})
	c.Store(42)
	assert.Equal(t, 42, seen)
}

func TestCell_Unsubscribe(t *testing.T) {
	c := NewCell(0)
	calls := 0
	cancel := c.Subscribe(func(int) { calls++ })
	c.Store(1)
	cancel()
	cancel()
	c.Store(2)
	assert.Equal(t, 1, calls)
}

func TestCell_ConcurrentLoads(t *testing.T) {
	c := NewCell(0)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				v := c.Load()
				assert.GreaterOrEqual(t, v, 0)
			}
		}()
	}
	for i := 1; i <= 1000; i++ {
		c.Store(i)
	}
	wg.Wait()
	assert.Equal(t, 1000, c.Load())
}
