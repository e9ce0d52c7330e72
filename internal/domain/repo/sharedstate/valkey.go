// Package sharedstate publishes the extension's own shared state snapshot.
package sharedstate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/valkey-io/valkey-go"
)

const stateKey = "edge:sharedstate:own"

type ValkeyPublisher struct {
	client valkey.Client
}

func NewValkeyPublisher(client valkey.Client) ValkeyPublisher {
	return ValkeyPublisher{client: client}
}

func (p ValkeyPublisher) CreateSharedState(ctx context.Context, data map[string]any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal shared state: %w", err)
	}

	command := p.client.B().Set().Key(stateKey).Value(string(payload)).Build()

	err = p.client.Do(ctx, command).Error()
	if err != nil {
		return fmt.Errorf("failed to publish shared state: %w", err)
	}

	return nil
}
