package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func TestCache_GetExpires(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New()
	c.SetClock(clk.now)

	c.Set("metrics:weekly", 42, 5*time.Minute)

	v, ok := c.Get("metrics:weekly")
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	clk.t = clk.t.Add(4*time.Minute + 59*time.Second)
	_, ok = c.Get("metrics:weekly")
	assert.True(t, ok)

	clk.t = clk.t.Add(time.Second)
	_, ok = c.Get("metrics:weekly")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCache_SetReplaces(t *testing.T) {
	c := New()
	c.Set("k", "old", time.Minute)
	c.Set("k", "new", time.Minute)

	got, ok := Typed[string](c, "k")
	assert.True(t, ok)
	assert.Equal(t, "new", got)
}

func TestCache_ClearPurgesAll(t *testing.T) {
	c := New()
	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Hour)
	c.Clear()

	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestCache_NonPositiveTTLNotStored(t *testing.T) {
	c := New()
	c.Set("a", 1, 0)
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestTyped_WrongType(t *testing.T) {
	c := New()
	c.Set("a", 1, time.Minute)
	_, ok := Typed[string](c, "a")
	assert.False(t, ok)
}

func TestCache_SetIfCurrentDropsValuesComputedBeforeClear(t *testing.T) {
	c := New()
	gen := c.Generation()
	c.Clear()

	assert.False(t, c.SetIfCurrent("metrics|weekly|", "stale", time.Minute, gen))
	_, ok := c.Get("metrics|weekly|")
	assert.False(t, ok)

	assert.True(t, c.SetIfCurrent("metrics|weekly|", "fresh", time.Minute, c.Generation()))
	got, ok := Typed[string](c, "metrics|weekly|")
	assert.True(t, ok)
	assert.Equal(t, "fresh", got)
}
