package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClock(t *testing.T) {
	c := RealClock{}
	before := time.Now()
	got := c.Now()
	after := time.Now()

	assert.False(t, got.Before(before))
	assert.False(t, got.After(after))
	assert.GreaterOrEqual(t, c.NowUnixMilli(), before.UnixMilli())
}

func TestMockClock(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	assert.Equal(t, start, c.Now())
	assert.Equal(t, start.UnixMilli(), c.NowUnixMilli())

	c.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), c.Now())

	c.Advance(-30 * time.Second)
	assert.Equal(t, start.Add(time.Minute), c.Now())

	later := time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC)
	c.Set(later)
	assert.Equal(t, later, c.Now())
}

func TestMockClock_Concurrent(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Advance(time.Second)
			_ = c.Now()
		}()
	}
	wg.Wait()

	assert.Equal(t, time.Unix(50, 0), c.Now())
}
