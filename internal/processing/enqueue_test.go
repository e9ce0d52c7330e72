package processing_test

import (
	"context"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telemetry-sdk/edge-delivery/internal/codec"
	"github.com/telemetry-sdk/edge-delivery/internal/domain/entity"
	"github.com/telemetry-sdk/edge-delivery/internal/processing"
	"github.com/telemetry-sdk/edge-delivery/internal/queue"
	"github.com/telemetry-sdk/edge-delivery/internal/registry"
	"github.com/telemetry-sdk/edge-delivery/pkg/pipeline"
)

type memStore struct {
	mu    sync.Mutex
	items []entity.DataEntity

	appendErr error
}

func (s *memStore) Append(_ context.Context, e entity.DataEntity) error {
	if s.appendErr != nil {
		return s.appendErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = append(s.items, e)

	return nil
}

func (s *memStore) Peek(_ context.Context) (*entity.DataEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) == 0 {
		return nil, nil
	}

	head := s.items[0]

	return &head, nil
}

func (s *memStore) RemoveHead(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) > 0 {
		s.items = s.items[1:]
	}

	return nil
}

func (s *memStore) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return int64(len(s.items)), nil
}

type nopProcessor struct{}

func (nopProcessor) ProcessHit(context.Context, entity.DataEntity) error { return nil }

func TestProcessEnqueuesSnapshotedEntity(t *testing.T) {
	t.Parallel()

	store := &memStore{}
	completion := registry.NewCompletion()
	clock := clockwork.NewFakeClock()

	q := queue.New(store, nopProcessor{}, queue.DefaultBackoff(), clock)

	configuration := map[string]any{"edge.configId": "cfg-123"}

	main := processing.NewMain(q, completion, configuration, clock)

	err := main.Process(context.Background(), processing.IngestEvent{
		Name: "purchase",
		Data: map[string]any{"xdm": map[string]any{"eventType": "commerce.purchases"}},
	})
	require.NoError(t, err)

	require.Len(t, store.items, 1)
	persisted := store.items[0]

	assert.NotEmpty(t, persisted.ID)
	assert.Equal(t, clock.Now(), persisted.CreatedAt)

	decoded, ok := codec.Decode(persisted.Payload)
	require.True(t, ok)

	assert.Equal(t, persisted.ID, decoded.Event.UniqueID)
	assert.Equal(t, "purchase", decoded.Event.Name)
	assert.Equal(t, "com.adobe.eventType.edge", decoded.Event.Type)
	assert.Equal(t, "com.adobe.eventSource.requestContent", decoded.Event.Source)
	assert.Equal(t, "cfg-123", decoded.Configuration["edge.configId"])

	assert.Equal(t, 1, completion.Pending())
}

func TestProcessKeepsExplicitTypeAndSource(t *testing.T) {
	t.Parallel()

	store := &memStore{}
	clock := clockwork.NewFakeClock()
	q := queue.New(store, nopProcessor{}, queue.DefaultBackoff(), clock)

	main := processing.NewMain(q, registry.NewCompletion(), nil, clock)

	err := main.Process(context.Background(), processing.IngestEvent{
		Type:   "custom.type",
		Source: "custom.source",
	})
	require.NoError(t, err)

	require.Len(t, store.items, 1)

	decoded, ok := codec.Decode(store.items[0].Payload)
	require.True(t, ok)

	assert.Equal(t, "custom.type", decoded.Event.Type)
	assert.Equal(t, "custom.source", decoded.Event.Source)
}

func TestProcessRejectsUnsupportedSnapshot(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	q := queue.New(&memStore{}, nopProcessor{}, queue.DefaultBackoff(), clock)

	main := processing.NewMain(q, registry.NewCompletion(), map[string]any{"bad": make(chan int)}, clock)

	err := main.Process(context.Background(), processing.IngestEvent{Name: "purchase"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, pipeline.ErrRetryable)

	pErr := pipeline.ProcessingError{}
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, processing.SnapshotCategory, pErr.Category)
}

func TestProcessStorageFailureIsRetryable(t *testing.T) {
	t.Parallel()

	store := &memStore{appendErr: assert.AnError}
	completion := registry.NewCompletion()
	clock := clockwork.NewFakeClock()

	q := queue.New(store, nopProcessor{}, queue.DefaultBackoff(), clock)

	main := processing.NewMain(q, completion, nil, clock)

	err := main.Process(context.Background(), processing.IngestEvent{Name: "purchase"})
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrRetryable)

	pErr := pipeline.ProcessingError{}
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, processing.EnqueueCategory, pErr.Category)

	// The failed registration was rolled back.
	assert.Equal(t, 0, completion.Pending())
}
