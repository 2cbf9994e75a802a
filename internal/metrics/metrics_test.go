package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	c := NewCollector()
	c.IncCounter("cycles")
	c.AddCounter("cycles", 2)
	require.Equal(t, int64(3), c.Counter("cycles"))
	require.Zero(t, c.Counter("unknown"))
}

func TestSnapshot(t *testing.T) {
	c := NewCollector()
	c.IncCounter("sent")
	c.SetGauge("users", 7)
	c.ObserveDuration("cycle", 100*time.Millisecond)
	c.ObserveDuration("cycle", 300*time.Millisecond)

	snapshot := c.Snapshot()
	counters := snapshot["counters"].(map[string]int64)
	require.Equal(t, int64(1), counters["sent"])

	gauges := snapshot["gauges"].(map[string]int64)
	require.Equal(t, int64(7), gauges["users"])

	durations := snapshot["durations"].(map[string]map[string]interface{})
	require.Equal(t, int64(2), durations["cycle"]["count"])
	require.Equal(t, int64(300), durations["cycle"]["max_ms"])
	require.Equal(t, int64(200), durations["cycle"]["avg_ms"])
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.IncCounter("x")
	c.SetGauge("x", 1)
	c.ObserveDuration("x", time.Second)
	require.Zero(t, c.Counter("x"))
	require.Empty(t, c.Snapshot())
}

func TestConcurrentAccess(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.IncCounter("races")
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(1000), c.Counter("races"))
}
