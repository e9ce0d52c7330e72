package properties_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valkey-io/valkey-go"

	"github.com/telemetry-sdk/edge-delivery/internal/domain/repo/properties"
)

func newTestRepo(t *testing.T) (properties.ValkeyRepo, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:  []string{server.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)

	t.Cleanup(client.Close)

	return properties.NewValkeyRepo(client), server
}

func TestStringRoundTrip(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	_, found, err := repo.GetString(ctx, "locationHint")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.SetString(ctx, "locationHint", "or2"))

	ret, found, err := repo.GetString(ctx, "locationHint")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "or2", ret)
}

func TestInt64RoundTrip(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	_, found, err := repo.GetInt64(ctx, "expiry")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.SetInt64(ctx, "expiry", 1709294400))

	ret, found, err := repo.GetInt64(ctx, "expiry")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(1709294400), ret)
}

func TestGetInt64NonNumeric(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SetString(ctx, "expiry", "not a number"))

	_, _, err := repo.GetInt64(ctx, "expiry")
	assert.Error(t, err)
}

func TestContainsAndRemove(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	found, err := repo.Contains(ctx, "locationHint")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.SetString(ctx, "locationHint", "or2"))

	found, err = repo.Contains(ctx, "locationHint")
	require.NoError(t, err)
	assert.True(t, found)

	require.NoError(t, repo.Remove(ctx, "locationHint"))
	require.NoError(t, repo.Remove(ctx, "locationHint"))

	found, err = repo.Contains(ctx, "locationHint")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestKeysAreNamespaced(t *testing.T) {
	repo, server := newTestRepo(t)

	require.NoError(t, repo.SetString(context.Background(), "locationHint", "or2"))

	assert.True(t, server.Exists("edge:props:locationHint"))
}
