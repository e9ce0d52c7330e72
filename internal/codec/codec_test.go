package codec_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telemetry-sdk/edge-delivery/internal/codec"
	"github.com/telemetry-sdk/edge-delivery/internal/domain/entity"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	event := entity.Event{
		UniqueID:  "11111111-2222-3333-4444-555555555555",
		Name:      "purchase",
		Type:      "com.adobe.eventType.edge",
		Source:    "com.adobe.eventSource.requestContent",
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Data: map[string]any{
			"xdm": map[string]any{"commerce": map[string]any{"order": true}},
		},
	}

	input, err := entity.NewEdgeDataEntity(event,
		map[string]any{"edge.configId": "abc"},
		map[string]any{"ECID": []any{"1234"}},
	)
	require.NoError(t, err)

	data, ok := codec.Encode(&input)
	require.True(t, ok)
	require.NotEmpty(t, data)

	ret, ok := codec.Decode(data)
	require.True(t, ok)

	assert.Equal(t, input.Event.UniqueID, ret.Event.UniqueID)
	assert.True(t, input.Event.Timestamp.Equal(ret.Event.Timestamp))
	assert.Equal(t, "abc", ret.Configuration["edge.configId"])
	assert.Equal(t, []any{"1234"}, ret.IdentityMap["ECID"])
}

func TestEncodeAbsent(t *testing.T) {
	t.Parallel()

	_, ok := codec.Encode(nil)
	assert.False(t, ok)

	bad := entity.EdgeDataEntity{
		Event:         entity.Event{UniqueID: "id"},
		Configuration: map[string]any{"ch": make(chan int)},
	}

	_, ok = codec.Encode(&bad)
	assert.False(t, ok)
}

func TestDecodeAbsent(t *testing.T) {
	type testCase struct {
		name string
		data []byte
	}

	cases := []testCase{
		{name: "nil"},
		{name: "empty", data: []byte{}},
		{name: "garbage", data: []byte("not json at all")},
		{name: "missing event", data: []byte(`{"configuration":{}}`)},
	}

	for i := range cases {
		c := cases[i]

		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			ret, ok := codec.Decode(c.data)
			assert.False(t, ok)
			assert.Nil(t, ret)
		})
	}
}

func TestDecodeNormalizesNilSnapshots(t *testing.T) {
	t.Parallel()

	ret, ok := codec.Decode([]byte(`{"event":{"uniqueId":"id-1"}}`))
	require.True(t, ok)

	assert.NotNil(t, ret.Configuration)
	assert.NotNil(t, ret.IdentityMap)
}
