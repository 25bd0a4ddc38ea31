package metrics

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestCollectorCounters(t *testing.T) {
	c := NewCollector("triggerd", nil)

	c.IncSnapshotsStored()
	c.IncSnapshotsStored()
	c.IncTriggersEvaluated()
	c.IncTriggersActivated()
	c.IncNotificationsSent()
	c.IncProcessingErrors()

	snap := c.GetSnapshot()
	if snap.SnapshotsStored != 2 {
		t.Errorf("SnapshotsStored = %d, want 2", snap.SnapshotsStored)
	}
	if snap.TriggersEvaluated != 1 || snap.TriggersActivated != 1 {
		t.Errorf("evaluated=%d activated=%d, want 1 each", snap.TriggersEvaluated, snap.TriggersActivated)
	}
	if snap.NotificationsSent != 1 || snap.ProcessingErrors != 1 {
		t.Errorf("sent=%d errors=%d, want 1 each", snap.NotificationsSent, snap.ProcessingErrors)
	}
	if snap.ServiceName != "triggerd" {
		t.Errorf("ServiceName = %s, want triggerd", snap.ServiceName)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector

	c.IncSnapshotsStored()
	c.IncTriggersEvaluated()
	c.IncTriggersActivated()
	c.IncNotificationsSent()
	c.IncProcessingErrors()
	c.Start(context.Background())
	c.Stop()
}

func TestCollectorWritesToRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	c := NewCollector("triggerd", client)
	c.SetReportInterval(10 * time.Millisecond)
	c.IncSnapshotsStored()

	ctx := context.Background()
	c.Start(ctx)
	c.Stop() // Final write happens on stop

	raw, err := client.Get(ctx, MetricsKeyPrefix+"triggerd").Result()
	if err != nil {
		t.Fatalf("metrics key missing: %v", err)
	}
	var doc ServiceMetrics
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("metrics document is not JSON: %v", err)
	}
	if doc.SnapshotsStored != 1 {
		t.Errorf("reported SnapshotsStored = %d, want 1", doc.SnapshotsStored)
	}

	ttl := mr.TTL(MetricsKeyPrefix + "triggerd")
	if ttl <= 0 {
		t.Errorf("metrics key TTL = %v, want positive", ttl)
	}
}
