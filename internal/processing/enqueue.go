// Package processing bridges the ingest pipeline and the durable hit queue:
// it wraps each consumed event with the configuration and identity snapshots
// captured at enqueue time, registers completion interest, and persists the
// result.
package processing

import (
	"context"
	"errors"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/telemetry-sdk/edge-delivery/internal/codec"
	"github.com/telemetry-sdk/edge-delivery/internal/domain/entity"
	"github.com/telemetry-sdk/edge-delivery/internal/queue"
	"github.com/telemetry-sdk/edge-delivery/internal/registry"
	"github.com/telemetry-sdk/edge-delivery/pkg/pipeline"
)

const (
	defaultEventType   = "com.adobe.eventType.edge"
	defaultEventSource = "com.adobe.eventSource.requestContent"

	SnapshotCategory = "snapshot"
	EncodeCategory   = "encode"
	EnqueueCategory  = "enqueue"
)

var errEncodeFailed = errors.New("failed to encode data entity")

type Main struct {
	queue      *queue.Queue
	completion *registry.Completion

	configuration map[string]any
	clock         clockwork.Clock
	logger        *logr.Logger
}

// NewMain builds the terminal ingest processing. configuration is the edge
// configuration snapshot applied to every entity enqueued by this service.
func NewMain(q *queue.Queue, completion *registry.Completion, configuration map[string]any, clock clockwork.Clock) Main {
	return Main{
		queue:         q,
		completion:    completion,
		configuration: configuration,
		clock:         clock,
	}
}

func (m Main) WithLogger(logger logr.Logger) Main {
	m.logger = &logger

	return m
}

func (m Main) Process(ctx context.Context, ingest IngestEvent) error {
	event := entity.Event{
		UniqueID:  uuid.NewString(),
		Name:      ingest.Name,
		Type:      ingest.Type,
		Source:    ingest.Source,
		Timestamp: m.clock.Now(),
		Data:      ingest.Data,
	}

	if event.Type == "" {
		event.Type = defaultEventType
	}

	if event.Source == "" {
		event.Source = defaultEventSource
	}

	ede, err := entity.NewEdgeDataEntity(event, m.configuration, ingest.IdentityMap)
	if err != nil { // Unsupported value types in a snapshot, not retryable
		return pipeline.NewProcessingError(err, SnapshotCategory, nil)
	}

	payload, ok := codec.Encode(&ede)
	if !ok {
		return pipeline.NewProcessingError(errEncodeFailed, EncodeCategory, nil)
	}

	m.completion.Register(event.UniqueID, m.completionLogger(event.UniqueID))

	err = m.queue.Enqueue(ctx, entity.DataEntity{
		ID:        event.UniqueID,
		CreatedAt: m.clock.Now(),
		Payload:   payload,
	})
	if err != nil {
		m.completion.Unregister(event.UniqueID)

		// Storage unavailability is transient; keep the message for replay.
		return pipeline.NewRetryableProcessingError(err, EnqueueCategory, nil)
	}

	m.logInfo(3, "Event enqueued", "id", event.UniqueID, "name", event.Name)

	return nil
}

// completionLogger is the production completion callback: it reports how many
// response fragments the ingestion endpoint returned for the event.
func (m Main) completionLogger(eventID string) registry.CompletionCallback {
	return func(handles []entity.EventHandle) {
		m.logInfo(2, "Event completed", "id", eventID, "handles", len(handles))
	}
}

func (m Main) logInfo(level int, msg string, keysAndValues ...any) {
	if m.logger == nil {
		return
	}

	m.logger.V(level).Info(msg, keysAndValues...)
}
