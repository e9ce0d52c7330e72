package state

import (
	"context"

	"github.com/telemetry-sdk/edge-delivery/internal/domain/entity"
)

// HubConfig describes the host SDK hub for deployments where it is not a live
// dependency but a piece of deployment configuration.
type HubConfig struct {
	SDKVersion        string
	WrapperType       string
	ConsentRegistered bool
	Pending           bool
}

// StaticHub serves the hub shared state from configuration. Owners other than
// the hub report NONE.
type StaticHub struct {
	state entity.SharedState
}

func NewStaticHub(conf HubConfig) StaticHub {
	if conf.Pending {
		return StaticHub{
			state: entity.SharedState{Status: entity.SharedStatePending},
		}
	}

	data := map[string]any{
		"version":    conf.SDKVersion,
		"extensions": map[string]any{},
	}

	if conf.WrapperType != "" {
		data["wrapper"] = map[string]any{"type": conf.WrapperType}
	}

	if conf.ConsentRegistered {
		data["extensions"] = map[string]any{
			consentExtensionName: map[string]any{},
		}
	}

	return StaticHub{
		state: entity.SharedState{
			Status: entity.SharedStateSet,
			Data:   data,
		},
	}
}

func (h StaticHub) GetSharedState(ctx context.Context, owner string) (entity.SharedState, error) {
	if owner != hubStateOwner {
		return entity.SharedState{Status: entity.SharedStateNone}, nil
	}

	return h.state, nil
}
