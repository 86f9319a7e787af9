package replica

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackerMeanEmptyIsZero(t *testing.T) {
	tr := NewTracker(200)
	assert.Equal(t, int64(0), tr.Mean())
	assert.Equal(t, 0, tr.Window())
}

func TestTrackerMeanRoundsToNearest(t *testing.T) {
	tr := NewTracker(200)
	tr.Record(1)
	tr.Record(2)
	assert.Equal(t, int64(2), tr.Mean(), "1.5 rounds up")

	tr = NewTracker(200)
	tr.Record(1)
	tr.Record(1)
	tr.Record(2)
	assert.Equal(t, int64(1), tr.Mean(), "1.33 rounds down")
}

func TestTrackerKeepsNegativeSamples(t *testing.T) {
	tr := NewTracker(200)
	tr.Record(-5)
	tr.Record(5)
	assert.Equal(t, int64(0), tr.Mean())
	assert.Equal(t, 2, tr.Window())
}

func TestTrackerWindowEvictsOldest(t *testing.T) {
	tr := NewTracker(200)
	for i := int64(1); i <= 250; i++ {
		tr.Record(i)
	}
	assert.Equal(t, 200, tr.Window())
	// Samples 51..250 remain; their mean is 150.5.
	assert.Equal(t, int64(151), tr.Mean())
}

func TestTrackerSmallWindow(t *testing.T) {
	tr := NewTracker(3)
	for _, v := range []int64{10, 20, 30, 40} {
		tr.Record(v)
	}
	assert.Equal(t, 3, tr.Window())
	assert.Equal(t, int64(30), tr.Mean())
}

func TestTrackerDropsMonotonic(t *testing.T) {
	tr := NewTracker(10)
	tr.RecordDrop()
	tr.RecordDrops(5)
	tr.RecordDrops(0)
	tr.RecordDrops(-3)
	assert.Equal(t, uint64(6), tr.Drops())
}

func TestTrackerConcurrentDrops(t *testing.T) {
	tr := NewTracker(10)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				tr.RecordDrop()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(8000), tr.Drops())
}
