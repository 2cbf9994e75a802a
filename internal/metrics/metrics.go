// Package metrics is a small in-process metrics collector exposed through the
// HTTP API. It keeps counters, gauges and duration aggregates; scraping and
// shipping them anywhere is someone else's job.
package metrics

import (
	"sync"
	"time"
)

// Collector accumulates service metrics. Safe for concurrent use.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	counters  map[string]int64
	gauges    map[string]int64
	durations map[string]*durationStats
}

type durationStats struct {
	count int64
	total time.Duration
	max   time.Duration
}

// NewCollector creates a metrics collector
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		counters:  make(map[string]int64),
		gauges:    make(map[string]int64),
		durations: make(map[string]*durationStats),
	}
}

// IncCounter increments a named counter by one
func (c *Collector) IncCounter(name string) {
	c.AddCounter(name, 1)
}

// AddCounter increments a named counter by delta
func (c *Collector) AddCounter(name string, delta int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.counters[name] += delta
	c.mu.Unlock()
}

// SetGauge sets a named gauge value
func (c *Collector) SetGauge(name string, value int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.gauges[name] = value
	c.mu.Unlock()
}

// ObserveDuration records one observation of a named duration
func (c *Collector) ObserveDuration(name string, d time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	stats, ok := c.durations[name]
	if !ok {
		stats = &durationStats{}
		c.durations[name] = stats
	}
	stats.count++
	stats.total += d
	if d > stats.max {
		stats.max = d
	}
	c.mu.Unlock()
}

// Uptime returns how long the collector has been running
func (c *Collector) Uptime() time.Duration {
	if c == nil {
		return 0
	}
	return time.Since(c.startTime)
}

// Counter returns the current value of a named counter
func (c *Collector) Counter(name string) int64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counters[name]
}

// Snapshot returns a point-in-time view of all metrics for the API
func (c *Collector) Snapshot() map[string]interface{} {
	if c == nil {
		return map[string]interface{}{}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	counters := make(map[string]int64, len(c.counters))
	for name, value := range c.counters {
		counters[name] = value
	}

	gauges := make(map[string]int64, len(c.gauges))
	for name, value := range c.gauges {
		gauges[name] = value
	}

	durations := make(map[string]map[string]interface{}, len(c.durations))
	for name, stats := range c.durations {
		entry := map[string]interface{}{
			"count":  stats.count,
			"max_ms": stats.max.Milliseconds(),
		}
		if stats.count > 0 {
			entry["avg_ms"] = (stats.total / time.Duration(stats.count)).Milliseconds()
		}
		durations[name] = entry
	}

	return map[string]interface{}{
		"uptime_seconds": int64(time.Since(c.startTime).Seconds()),
		"counters":       counters,
		"gauges":         gauges,
		"durations":      durations,
	}
}
