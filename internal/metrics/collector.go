package metrics

import (
	"os"
	"time"

	"glimpse/internal/logging"
)

// StatsProvider supplies the slow-moving gauges refreshed by the Collector.
type StatsProvider interface {
	CollectStats() (Stats, error)
}

// Stats holds the current store and cache statistics
type Stats struct {
	Sessions       int64
	Labels         int64
	CacheSizeBytes int64
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	dbPath        string
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, dbPath string, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		dbPath:        dbPath,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	c.collectDBSize()

	if c.statsProvider == nil {
		return
	}

	stats, err := c.statsProvider.CollectStats()
	if err != nil {
		logging.Warn("Metrics collection failed: %v", err)
		return
	}

	SessionsTotal.Set(float64(stats.Sessions))
	LabelsTotal.Set(float64(stats.Labels))
	ThumbnailCacheSize.Set(float64(stats.CacheSizeBytes))

	logging.Debug("Metrics collected: sessions=%d, labels=%d, cache=%d bytes",
		stats.Sessions, stats.Labels, stats.CacheSizeBytes)
}

func (c *Collector) collectDBSize() {
	if c.dbPath == "" {
		return
	}
	for label, suffix := range map[string]string{"main": "", "wal": "-wal", "shm": "-shm"} {
		info, err := os.Stat(c.dbPath + suffix)
		if err != nil {
			DBSizeBytes.WithLabelValues(label).Set(0)
			continue
		}
		DBSizeBytes.WithLabelValues(label).Set(float64(info.Size()))
	}
}
