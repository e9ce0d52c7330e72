package state

import (
	"context"

	"github.com/telemetry-sdk/edge-delivery/internal/domain/entity"
)

//go:generate mockgen -source=interfaces.go -package=mock -destination=./mock/mock_state.go

// SharedStateHub reads state published by other components. The extension
// never writes through this interface; its own state goes through a
// repo.SharedStatePublisher.
type SharedStateHub interface {
	GetSharedState(ctx context.Context, owner string) (entity.SharedState, error)
}
