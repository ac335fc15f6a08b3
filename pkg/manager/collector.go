package manager

import (
	"sync"
	"time"

	"github.com/cuemby/cibcore/pkg/metrics"
	"github.com/cuemby/cibcore/pkg/schema"
)

// DefaultCollectInterval is how often the collector refreshes gauges
const DefaultCollectInterval = 15 * time.Second

// MetricsCollector periodically refreshes gauges that reflect manager state
type MetricsCollector struct {
	manager  *Manager
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMetricsCollector creates a new metrics collector. A non-positive
// interval uses DefaultCollectInterval.
func NewMetricsCollector(mgr *Manager, interval time.Duration) *MetricsCollector {
	if interval <= 0 {
		interval = DefaultCollectInterval
	}
	return &MetricsCollector{
		manager:  mgr,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *MetricsCollector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
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

// Stop stops the collector
func (c *MetricsCollector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *MetricsCollector) collect() {
	collectCatalogMetrics(c.manager.Catalog())
	c.collectRevisionMetrics()
}

func collectCatalogMetrics(catalog *schema.Catalog) {
	if catalog == nil {
		return
	}
	counts := map[string]int{"primary": 0, "remote": 0, "sentinel": 0}
	for _, v := range catalog.Versions() {
		switch {
		case v.IsSentinel():
			counts["sentinel"]++
		case v.Remote:
			counts["remote"]++
		default:
			counts["primary"]++
		}
	}
	for source, n := range counts {
		metrics.CatalogVersions.WithLabelValues(source).Set(float64(n))
	}
}

func (c *MetricsCollector) collectRevisionMetrics() {
	store := c.manager.Store()
	if store == nil {
		return
	}
	revs, err := store.ListRevisions()
	if err != nil {
		c.manager.logger.Warn().Err(err).Msg("Failed to count revisions")
		return
	}
	metrics.RevisionsStored.Set(float64(len(revs)))
}
