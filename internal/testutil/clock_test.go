package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func TestFixedClock_StartsAtStart(t *testing.T) {
	clock := NewFixedClock(epoch, time.Second)
	assert.Equal(t, epoch, clock.Current())
	assert.Equal(t, epoch, clock.Now())
}

func TestFixedClock_NowAdvancesMonotonically(t *testing.T) {
	clock := NewFixedClock(epoch, time.Second)

	assert.Equal(t, epoch, clock.Now())
	assert.Equal(t, epoch.Add(1*time.Second), clock.Now())
	assert.Equal(t, epoch.Add(2*time.Second), clock.Now())
	assert.Equal(t, epoch.Add(3*time.Second), clock.Current())
}

func TestFixedClock_ZeroStepIsFrozen(t *testing.T) {
	clock := NewFixedClock(epoch, 0)
	for i := 0; i < 5; i++ {
		assert.Equal(t, epoch, clock.Now())
	}
}

func TestFixedClock_Reset(t *testing.T) {
	clock := NewFixedClock(epoch, time.Minute)

	clock.Now()
	clock.Now()
	assert.Equal(t, epoch.Add(2*time.Minute), clock.Current())

	clock.Reset()
	assert.Equal(t, epoch, clock.Now())
}

func TestFixedClock_ThreadSafe(t *testing.T) {
	clock := NewFixedClock(epoch, time.Millisecond)
	const numGoroutines = 50
	const callsPerGoroutine = 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	results := make([][]time.Time, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		results[i] = make([]time.Time, callsPerGoroutine)
		go func(idx int) {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				results[idx][j] = clock.Now()
			}
		}(i)
	}

	wg.Wait()

	seen := make(map[time.Time]bool)
	for _, row := range results {
		for _, ts := range row {
			require.False(t, seen[ts], "duplicate timestamp %v", ts)
			seen[ts] = true
		}
	}

	total := numGoroutines * callsPerGoroutine
	assert.Len(t, seen, total)
	assert.Equal(t, epoch.Add(time.Duration(total)*time.Millisecond), clock.Current())
}
