// Package metrics provides a Redis-backed service metrics collector. Counters
// are reported periodically as a JSON document with a TTL, so stale entries
// age out of the store on their own.
package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// MetricsKeyPrefix is the Redis key prefix for service metrics.
	MetricsKeyPrefix = "metrics:"
	// MetricsTTL is how long metrics stay in Redis if not refreshed.
	MetricsTTL = 2 * time.Minute
	// DefaultReportInterval is the default interval for writing metrics.
	DefaultReportInterval = 30 * time.Second
)

// ServiceMetrics is the reported metrics document.
type ServiceMetrics struct {
	ServiceName string    `json:"service_name"`
	StartedAt   time.Time `json:"started_at"`
	LastUpdated time.Time `json:"last_updated"`

	SnapshotsStored   uint64 `json:"snapshots_stored"`
	TriggersEvaluated uint64 `json:"triggers_evaluated"`
	TriggersActivated uint64 `json:"triggers_activated"`
	NotificationsSent uint64 `json:"notifications_sent"`
	ProcessingErrors  uint64 `json:"processing_errors"`
}

// Collector collects and reports metrics for the service. A nil collector is
// valid and counts nothing, so callers never have to check.
type Collector struct {
	serviceName    string
	redis          *redis.Client
	startedAt      time.Time
	reportInterval time.Duration

	snapshotsStored   atomic.Uint64
	triggersEvaluated atomic.Uint64
	triggersActivated atomic.Uint64
	notificationsSent atomic.Uint64
	processingErrors  atomic.Uint64

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewCollector creates a metrics collector for the service.
func NewCollector(serviceName string, redisClient *redis.Client) *Collector {
	return &Collector{
		serviceName:    serviceName,
		redis:          redisClient,
		startedAt:      time.Now().UTC(),
		reportInterval: DefaultReportInterval,
		stopCh:         make(chan struct{}),
	}
}

// SetReportInterval overrides the reporting cadence.
func (c *Collector) SetReportInterval(interval time.Duration) {
	c.reportInterval = interval
}

// Start begins periodic reporting until the context ends or Stop is called.
func (c *Collector) Start(ctx context.Context) {
	if c == nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.writeMetrics(context.Background()) // Final write
				return
			case <-c.stopCh:
				c.writeMetrics(context.Background()) // Final write
				return
			case <-ticker.C:
				c.writeMetrics(ctx)
			}
		}
	}()
}

// Stop stops the reporting loop.
func (c *Collector) Stop() {
	if c == nil {
		return
	}
	close(c.stopCh)
	c.wg.Wait()
}

// IncSnapshotsStored counts one persisted snapshot.
func (c *Collector) IncSnapshotsStored() {
	if c != nil {
		c.snapshotsStored.Add(1)
	}
}

// IncTriggersEvaluated counts one completed trigger evaluation.
func (c *Collector) IncTriggersEvaluated() {
	if c != nil {
		c.triggersEvaluated.Add(1)
	}
}

// IncTriggersActivated counts one trigger activation.
func (c *Collector) IncTriggersActivated() {
	if c != nil {
		c.triggersActivated.Add(1)
	}
}

// IncNotificationsSent counts one completed notify job.
func (c *Collector) IncNotificationsSent() {
	if c != nil {
		c.notificationsSent.Add(1)
	}
}

// IncProcessingErrors counts one failed job.
func (c *Collector) IncProcessingErrors() {
	if c != nil {
		c.processingErrors.Add(1)
	}
}

// GetSnapshot returns current metrics without writing to Redis.
func (c *Collector) GetSnapshot() *ServiceMetrics {
	return &ServiceMetrics{
		ServiceName:       c.serviceName,
		StartedAt:         c.startedAt,
		LastUpdated:       time.Now().UTC(),
		SnapshotsStored:   c.snapshotsStored.Load(),
		TriggersEvaluated: c.triggersEvaluated.Load(),
		TriggersActivated: c.triggersActivated.Load(),
		NotificationsSent: c.notificationsSent.Load(),
		ProcessingErrors:  c.processingErrors.Load(),
	}
}

func (c *Collector) writeMetrics(ctx context.Context) {
	if c.redis == nil {
		return
	}

	data, err := json.Marshal(c.GetSnapshot())
	if err != nil {
		slog.Error("Failed to marshal metrics", "service", c.serviceName, "error", err)
		return
	}

	key := MetricsKeyPrefix + c.serviceName
	if err := c.redis.Set(ctx, key, data, MetricsTTL).Err(); err != nil {
		slog.Error("Failed to write metrics to Redis", "service", c.serviceName, "error", err)
		return
	}

	slog.Debug("Metrics written to Redis", "service", c.serviceName, "key", key)
}
