package progress

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandleReadReflectsCounters(t *testing.T) {
	h := New()
	h.SetTotal(10)
	h.IncProcessed()
	h.IncProcessed()
	h.IncFailed()

	snap := h.Read()
	assert.Equal(t, 10, snap.Total)
	assert.Equal(t, 2, snap.Processed)
	assert.Equal(t, 1, snap.Failed)
	assert.False(t, snap.Done)
}

func TestHandleFinishMarksDone(t *testing.T) {
	h := New()
	h.Finish()
	assert.True(t, h.Read().Done)
}

func TestHandleConcurrentIncrementsAreSafe(t *testing.T) {
	h := New()
	h.SetTotal(1000)

	var wg sync.WaitGroup
	for i := 0; i < 1000; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.IncProcessed()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1000, h.Read().Processed)
}

func TestHandleETAIsZeroWithoutThroughput(t *testing.T) {
	h := New()
	h.SetTotal(10)
	snap := h.Read()
	assert.Equal(t, float64(0), snap.Throughput)
	assert.Equal(t, int64(0), int64(snap.ETA))
}
