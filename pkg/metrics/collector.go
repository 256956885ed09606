package metrics

import "time"

// StoreSnapshot is the periodic stats sample a store actor reports to the
// collector, mirroring what spec.md §4.3's Stats() exposes.
type StoreSnapshot struct {
	Name    string
	Role    string // "master" or "clone"
	Entries uint64
	Seq     uint64
}

// StatsProvider is implemented by whatever tracks the set of live store
// actors (normally the storeactor registry); the collector depends only
// on this narrow interface, not on pkg/storeactor directly, to avoid a
// metrics→storeactor→metrics import cycle.
type StatsProvider interface {
	StoreStats() []StoreSnapshot
}

// Collector periodically snapshots every attached store's stats into the
// StoresTotal/StoreEntriesTotal/StoreSeq gauges.
type Collector struct {
	provider StatsProvider
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a collector that polls provider every interval.
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{provider: provider, interval: interval, stopCh: make(chan struct{})}
}

// Start begins collecting metrics in the background.
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	snaps := c.provider.StoreStats()

	roleCounts := make(map[string]int)
	for _, s := range snaps {
		roleCounts[s.Role]++
		StoreEntriesTotal.WithLabelValues(s.Name, s.Role).Set(float64(s.Entries))
		StoreSeq.WithLabelValues(s.Name, s.Role).Set(float64(s.Seq))
	}
	for role, count := range roleCounts {
		StoresTotal.WithLabelValues(role).Set(float64(count))
	}
}
