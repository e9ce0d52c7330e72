// Package properties is the extension-scoped persistent key-value store.
package properties

import (
	"context"
	"fmt"
	"strconv"

	"github.com/valkey-io/valkey-go"
)

const keyPrefix = "edge:props:"

type ValkeyRepo struct {
	client valkey.Client
}

func NewValkeyRepo(client valkey.Client) ValkeyRepo {
	return ValkeyRepo{client: client}
}

func (r ValkeyRepo) GetString(ctx context.Context, key string) (string, bool, error) {
	command := r.client.B().Get().Key(keyPrefix + key).Build()

	resp := r.client.Do(ctx, command)

	err := resp.Error()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return "", false, nil
		}

		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}

	ret, err := resp.ToString()
	if err != nil {
		return "", false, fmt.Errorf("unexpected get response type for %s: %w", key, err)
	}

	return ret, true, nil
}

func (r ValkeyRepo) SetString(ctx context.Context, key, value string) error {
	command := r.client.B().Set().Key(keyPrefix + key).Value(value).Build()

	err := r.client.Do(ctx, command).Error()
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	return nil
}

func (r ValkeyRepo) GetInt64(ctx context.Context, key string) (int64, bool, error) {
	raw, found, err := r.GetString(ctx, key)
	if err != nil || !found {
		return 0, found, err
	}

	ret, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("non numeric value for %s: %w", key, err)
	}

	return ret, true, nil
}

func (r ValkeyRepo) SetInt64(ctx context.Context, key string, value int64) error {
	return r.SetString(ctx, key, strconv.FormatInt(value, 10))
}

func (r ValkeyRepo) Contains(ctx context.Context, key string) (bool, error) {
	command := r.client.B().Exists().Key(keyPrefix + key).Build()

	resp := r.client.Do(ctx, command)

	err := resp.Error()
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", key, err)
	}

	count, err := resp.AsInt64()
	if err != nil {
		return false, fmt.Errorf("unexpected exists response type for %s: %w", key, err)
	}

	return count > 0, nil
}

func (r ValkeyRepo) Remove(ctx context.Context, key string) error {
	command := r.client.B().Del().Key(keyPrefix + key).Build()

	err := r.client.Do(ctx, command).Error()
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}

	return nil
}
