package obdcan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualClock(t *testing.T) {
	c := NewManualClock()
	start := c.Now()
	c.Sleep(3 * time.Millisecond)
	c.Advance(2 * time.Millisecond)
	assert.Equal(t, 5*time.Millisecond, c.Now().Sub(start))
}

func TestTimer(t *testing.T) {
	c := NewManualClock()
	tm := NewTimer(c)
	tm.Start(200 * time.Millisecond)
	assert.False(t, tm.Expired())

	c.Advance(199 * time.Millisecond)
	assert.False(t, tm.Expired())
	c.Advance(time.Millisecond)
	assert.True(t, tm.Expired())

	tm.Start(10 * time.Millisecond)
	assert.False(t, tm.Expired())
}
