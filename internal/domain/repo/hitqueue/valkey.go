// Package hitqueue persists the durable work queue in a valkey list. Order is
// the enqueue order; the head is only removed after the processor reports a
// terminal outcome.
package hitqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"syscall"

	"github.com/valkey-io/valkey-go"

	"github.com/telemetry-sdk/edge-delivery/internal/domain/entity"
	"github.com/telemetry-sdk/edge-delivery/pkg/pipeline"
)

const defaultListKey = "edge:hits"

type ValkeyRepo struct {
	client valkey.Client
	key    string
}

func NewValkeyRepo(client valkey.Client) ValkeyRepo {
	return ValkeyRepo{
		client: client,
		key:    defaultListKey,
	}
}

func (r ValkeyRepo) Append(ctx context.Context, e entity.DataEntity) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal data entity: %w", err)
	}

	command := r.client.B().Rpush().Key(r.key).Element(string(data)).Build()

	err = r.client.Do(ctx, command).Error()
	if err != nil {
		return r.wrap(err, "failed to append entity")
	}

	return nil
}

func (r ValkeyRepo) Peek(ctx context.Context) (*entity.DataEntity, error) {
	command := r.client.B().Lrange().Key(r.key).Start(0).Stop(0).Build()

	resp := r.client.Do(ctx, command)

	err := resp.Error()
	if err != nil {
		return nil, r.wrap(err, "failed to peek head")
	}

	elements, err := resp.AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("unexpected lrange response type: %w", err)
	}

	if len(elements) == 0 {
		return nil, nil
	}

	ret := entity.DataEntity{}

	err = json.Unmarshal([]byte(elements[0]), &ret)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal head entity: %w", err)
	}

	return &ret, nil
}

func (r ValkeyRepo) RemoveHead(ctx context.Context) error {
	command := r.client.B().Lpop().Key(r.key).Build()

	err := r.client.Do(ctx, command).Error()
	if err != nil && !valkey.IsValkeyNil(err) {
		return r.wrap(err, "failed to remove head")
	}

	return nil
}

func (r ValkeyRepo) Count(ctx context.Context) (int64, error) {
	command := r.client.B().Llen().Key(r.key).Build()

	resp := r.client.Do(ctx, command)

	err := resp.Error()
	if err != nil {
		return 0, r.wrap(err, "failed to count entities")
	}

	ret, err := resp.AsInt64()
	if err != nil {
		return 0, fmt.Errorf("unexpected llen response type: %w", err)
	}

	return ret, nil
}

func (r ValkeyRepo) wrap(err error, reason string) error {
	if r.isRetryable(err) {
		return fmt.Errorf("%s: %w", reason, pipeline.NewRetryable(err))
	}

	return fmt.Errorf("%s: %w", reason, err)
}

func (r ValkeyRepo) isRetryable(err error) bool {
	// Network error
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	// Valkey specific error
	vErr, isValkeyError := valkey.IsValkeyErr(err)
	if !isValkeyError {
		return false
	}

	return vErr.IsTryAgain()
}
