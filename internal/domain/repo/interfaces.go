package repo

import (
	"context"

	"github.com/telemetry-sdk/edge-delivery/internal/domain/entity"
)

//go:generate mockgen -source=interfaces.go -package=mock -destination=./mock/mock_repo.go

// PropertyStore is a persistent key-value store scoped to the extension's
// namespace. Absent keys are reported through the boolean, not an error.
type PropertyStore interface {
	GetString(ctx context.Context, key string) (string, bool, error)
	SetString(ctx context.Context, key, value string) error
	GetInt64(ctx context.Context, key string) (int64, bool, error)
	SetInt64(ctx context.Context, key string, value int64) error
	Contains(ctx context.Context, key string) (bool, error)
	Remove(ctx context.Context, key string) error
}

// HitStore is the crash-durable FIFO backing the work queue. Entities are
// never reordered or deduplicated.
type HitStore interface {
	Append(ctx context.Context, e entity.DataEntity) error
	Peek(ctx context.Context) (*entity.DataEntity, error)
	RemoveHead(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
}

// DroppedHitWriter archives hits removed from the queue on a terminal,
// non-retryable outcome.
type DroppedHitWriter interface {
	WriteDroppedHit(ctx context.Context, hit entity.DroppedHit) error
}

// SharedStatePublisher publishes this extension's own shared state, once per
// meaningful change.
type SharedStatePublisher interface {
	CreateSharedState(ctx context.Context, data map[string]any) error
}
