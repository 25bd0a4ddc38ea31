// Package pipeline moves a fact from ingestion to notification through three
// durable queues: store, evaluate, notify. Each queue has one serialized
// consumer so two facts never mutate one trigger's condition state
// concurrently; the three loops run concurrently with each other.
package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kristobalus/sport-triggers-sub000/internal/metrics"
	"github.com/kristobalus/sport-triggers-sub000/internal/retry"
)

// stage pairs one queue consumer with its job handler.
type stage struct {
	name     string
	consumer *Consumer
	handle   func(ctx context.Context, payload []byte) error
}

// Pipeline runs the three stage workers until the context is cancelled.
type Pipeline struct {
	stages  []stage
	retry   retry.Config
	metrics *metrics.Collector
}

// New assembles the pipeline. Transient handler failures are retried with the
// given config; permanent failures are logged and the job is skipped.
func New(
	storeConsumer, evaluateConsumer, notifyConsumer *Consumer,
	store *StoreStage, evaluate *EvaluateStage, notify *NotifyStage,
	retryCfg retry.Config, collector *metrics.Collector,
) *Pipeline {
	return &Pipeline{
		stages: []stage{
			{name: "store", consumer: storeConsumer, handle: store.Handle},
			{name: "evaluate", consumer: evaluateConsumer, handle: evaluate.Handle},
			{name: "notify", consumer: notifyConsumer, handle: notify.Handle},
		},
		retry:   retryCfg,
		metrics: collector,
	}
}

// Run starts one worker per queue and blocks until all workers stop.
func (p *Pipeline) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := range p.stages {
		st := p.stages[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.runStage(ctx, st)
		}()
	}
	wg.Wait()
}

// runStage is one queue's worker loop: strictly one job at a time.
func (p *Pipeline) runStage(ctx context.Context, st stage) {
	slog.Info("Starting queue worker", "queue", st.name)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Queue worker stopped", "queue", st.name)
			return
		default:
			msg, err := st.consumer.Read(ctx)
			if err != nil {
				if ctx.Err() != nil {
					slog.Info("Queue worker stopped", "queue", st.name)
					return
				}
				slog.Error("Failed to read job", "queue", st.name, "error", err)
				continue
			}

			err = retry.Do(ctx, p.retry, func(ctx context.Context) error {
				return st.handle(ctx, msg.Value)
			})
			if err != nil {
				// Skipping keeps a poison job from blocking the queue.
				slog.Error("Job failed, skipping",
					"queue", st.name,
					"error", err,
				)
				p.metrics.IncProcessingErrors()
			}
		}
	}
}
