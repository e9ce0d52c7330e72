// Package queue is the crash-durable FIFO holding area for hits that have not
// been successfully sent yet. A single worker drains it in enqueue order; a
// persistently failing head entity blocks the line rather than being skipped.
package queue

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/telemetry-sdk/edge-delivery/internal/domain/entity"
	"github.com/telemetry-sdk/edge-delivery/internal/domain/repo"
	"github.com/telemetry-sdk/edge-delivery/pkg/pipeline"
)

//go:generate mockgen -source=queue.go -package=mock -destination=./mock/mock_queue.go

// Processor turns one dequeued entity into a delivery attempt. A nil return
// is a terminal success, an error matching pipeline.ErrRetryable keeps the
// entity at the head for a later attempt, any other error drops it.
type Processor interface {
	ProcessHit(ctx context.Context, e entity.DataEntity) error
}

type Queue struct {
	store     repo.HitStore
	processor Processor
	dropped   repo.DroppedHitWriter

	backoff BackoffConfig
	clock   clockwork.Clock
	rng     *rand.Rand
	logger  *logr.Logger

	notify    chan struct{}
	resumed   chan struct{}
	suspended atomic.Bool

	depth        prometheus.Gauge
	retried      prometheus.Counter
	droppedTotal *prometheus.CounterVec
}

func New(store repo.HitStore, processor Processor, backoff BackoffConfig, clock clockwork.Clock) *Queue {
	return &Queue{
		store:     store,
		processor: processor,
		backoff:   backoff,
		clock:     clock,
		notify:    make(chan struct{}, 1),
		resumed:   make(chan struct{}, 1),
	}
}

func (q *Queue) WithLogger(logger logr.Logger) *Queue {
	q.logger = &logger

	return q
}

// WithDroppedHitWriter archives non-retryable drops before they are removed.
func (q *Queue) WithDroppedHitWriter(writer repo.DroppedHitWriter) *Queue {
	q.dropped = writer

	return q
}

// WithJitter randomizes backoff delays. Without it delays are deterministic.
func (q *Queue) WithJitter(rng *rand.Rand) *Queue {
	q.rng = rng

	return q
}

func (q *Queue) WithMetrics(registry prometheus.Registerer, namespace string) (*Queue, error) {
	depth := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Number of entities waiting in the durable queue.",
	})

	retried := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "hit_retried_total",
		Help:      "Retry attempts on the head entity.",
	})

	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "hit_dropped_total",
		Help:      "Entities removed without a successful send, by category.",
	}, []string{"category"})

	for _, collector := range []prometheus.Collector{depth, retried, dropped} {
		err := registry.Register(collector)
		if err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	q.depth = depth
	q.retried = retried
	q.droppedTotal = dropped

	return q, nil
}

// Enqueue persists the entity synchronously and wakes the worker. It never
// blocks on processing.
func (q *Queue) Enqueue(ctx context.Context, e entity.DataEntity) error {
	err := q.store.Append(ctx, e)
	if err != nil {
		return fmt.Errorf("failed to persist entity: %w", err)
	}

	q.updateDepth(ctx)

	select {
	case q.notify <- struct{}{}:
	default:
	}

	return nil
}

// Suspend pauses draining after the in-flight attempt completes. Queued
// entities are kept.
func (q *Queue) Suspend() {
	q.suspended.Store(true)

	q.logInfo(1, "Queue suspended")
}

// Resume continues draining and short-circuits a pending backoff wait.
func (q *Queue) Resume() {
	q.suspended.Store(false)

	select {
	case q.resumed <- struct{}{}:
	default:
	}

	q.logInfo(1, "Queue resumed")
}

// Run drains the queue until ctx is cancelled. At most one entity is being
// processed at any time. A cancellation during a network send surfaces as a
// retryable failure, leaving the head entity intact.
func (q *Queue) Run(ctx context.Context) error {
	// Drain whatever survived a previous run before waiting for work.
	err := q.drain(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.notify:
		case <-q.resumed:
		}

		err := q.drain(ctx)
		if err != nil {
			return err
		}
	}
}

// drain processes entities head-first until the queue is empty, the queue is
// suspended, or ctx is cancelled. Only ctx cancellation is returned as an
// error; everything else is handled in place.
func (q *Queue) drain(ctx context.Context) error {
	attempt := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if q.suspended.Load() {
			return nil
		}

		head, err := q.store.Peek(ctx)
		if err != nil {
			q.logError(err, "Failed to peek queue head")

			attempt++

			err = q.wait(ctx, attempt)
			if err != nil {
				return err
			}

			continue
		}

		if head == nil {
			return nil
		}

		err = q.processor.ProcessHit(ctx, *head)

		switch {
		case err == nil:
			q.removeHead(ctx)

			attempt = 0

		case errors.Is(err, pipeline.ErrRetryable):
			attempt++

			q.logInfo(1, "Hit failed, keeping at head",
				"id", head.ID,
				"attempt", attempt,
				"reason", err.Error(),
			)

			if q.retried != nil {
				q.retried.Inc()
			}

			err = q.wait(ctx, attempt)
			if err != nil {
				return err
			}

		default:
			q.archive(ctx, *head, err)
			q.removeHead(ctx)

			attempt = 0
		}
	}
}

// wait blocks for the backoff delay, a resume signal, or cancellation.
func (q *Queue) wait(ctx context.Context, attempt int) error {
	delay := nextDelay(attempt, q.backoff, q.rng)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-q.clock.After(delay):
	case <-q.resumed:
	}

	return nil
}

func (q *Queue) removeHead(ctx context.Context) {
	err := q.store.RemoveHead(ctx)
	if err != nil {
		// The entity will be re-processed on restart; the processor's
		// outcome for it is already terminal, so this only risks a
		// duplicate attempt, never a loss.
		q.logError(err, "Failed to remove queue head")
	}

	q.updateDepth(ctx)
}

func (q *Queue) archive(ctx context.Context, head entity.DataEntity, cause error) {
	category := pipeline.UnknownCategory

	pErr := pipeline.ProcessingError{}
	if errors.As(cause, &pErr) {
		category = pErr.Category
	}

	q.logError(cause, "Dropping undeliverable hit", "id", head.ID, "category", category)

	if q.droppedTotal != nil {
		q.droppedTotal.WithLabelValues(category).Inc()
	}

	if q.dropped == nil {
		return
	}

	err := q.dropped.WriteDroppedHit(ctx, entity.DroppedHit{
		Entity:   head,
		Category: category,
		Reason:   cause.Error(),
	})
	if err != nil {
		q.logError(err, "Failed to archive dropped hit", "id", head.ID)
	}
}

func (q *Queue) updateDepth(ctx context.Context) {
	if q.depth == nil {
		return
	}

	count, err := q.store.Count(ctx)
	if err != nil {
		return
	}

	q.depth.Set(float64(count))
}

func (q *Queue) logInfo(level int, msg string, keysAndValues ...any) {
	if q.logger == nil {
		return
	}

	q.logger.V(level).Info(msg, keysAndValues...)
}

func (q *Queue) logError(err error, msg string, keysAndValues ...any) {
	if q.logger == nil {
		return
	}

	q.logger.Error(err, msg, keysAndValues...)
}
