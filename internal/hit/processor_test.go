package hit_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telemetry-sdk/edge-delivery/internal/codec"
	"github.com/telemetry-sdk/edge-delivery/internal/domain/entity"
	"github.com/telemetry-sdk/edge-delivery/internal/hit"
	"github.com/telemetry-sdk/edge-delivery/internal/registry"
	"github.com/telemetry-sdk/edge-delivery/internal/state"
	"github.com/telemetry-sdk/edge-delivery/pkg/pipeline"
)

// Fakes

type fakeTransport struct {
	requests []hit.Request

	response *hit.Response
	err      error
}

func (t *fakeTransport) Send(_ context.Context, req hit.Request) (*hit.Response, error) {
	t.requests = append(t.requests, req)

	if t.err != nil {
		return nil, t.err
	}

	return t.response, nil
}

type nopPublisher struct{}

func (nopPublisher) CreateSharedState(context.Context, map[string]any) error { return nil }

type nopProps struct{}

func (nopProps) GetString(context.Context, string) (string, bool, error) { return "", false, nil }
func (nopProps) SetString(context.Context, string, string) error         { return nil }
func (nopProps) GetInt64(context.Context, string) (int64, bool, error)   { return 0, false, nil }
func (nopProps) SetInt64(context.Context, string, int64) error           { return nil }
func (nopProps) Contains(context.Context, string) (bool, error)          { return false, nil }
func (nopProps) Remove(context.Context, string) error                    { return nil }

type fixture struct {
	state      *state.Extension
	completion *registry.Completion
	transport  *fakeTransport
	processor  *hit.Processor
}

func newFixture(t *testing.T, consent entity.ConsentStatus) *fixture {
	t.Helper()

	ext := state.NewExtension(
		state.NewStaticHub(state.HubConfig{SDKVersion: "5.0.1"}),
		nopPublisher{}, nopProps{}, clockwork.NewFakeClock(),
	)

	booted, err := ext.BootupIfNeeded(context.Background())
	require.NoError(t, err)
	require.True(t, booted)

	ext.SetCollectConsent(consent)

	completion := registry.NewCompletion()
	transport := &fakeTransport{response: &hit.Response{StatusCode: 200}}

	processor := hit.NewProcessor(ext, completion, transport, hit.Config{})

	return &fixture{
		state:      ext,
		completion: completion,
		transport:  transport,
		processor:  processor,
	}
}

func encodedEntity(t *testing.T, eventID string, configuration map[string]any) entity.DataEntity {
	t.Helper()

	event := entity.Event{
		UniqueID:  eventID,
		Type:      "com.adobe.eventType.edge",
		Source:    "com.adobe.eventSource.requestContent",
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Data:      map[string]any{"xdm": map[string]any{"eventType": "commerce.purchases"}},
	}

	if configuration == nil {
		configuration = map[string]any{"edge.configId": "cfg-123"}
	}

	e, err := entity.NewEdgeDataEntity(event, configuration, nil)
	require.NoError(t, err)

	payload, ok := codec.Encode(&e)
	require.True(t, ok)

	return entity.DataEntity{ID: "hit-1", CreatedAt: event.Timestamp, Payload: payload}
}

// Consent gate

func TestConsentNoDropsWithoutSend(t *testing.T) {
	t.Parallel()

	f := newFixture(t, entity.ConsentNo)

	var delivered []entity.EventHandle

	notified := false

	f.completion.Register("event-1", func(handles []entity.EventHandle) {
		notified = true
		delivered = handles
	})

	err := f.processor.ProcessHit(context.Background(), encodedEntity(t, "event-1", nil))
	require.NoError(t, err)

	assert.Empty(t, f.transport.requests)
	assert.True(t, notified)
	assert.Empty(t, delivered)
}

func TestConsentPendingKeepsHitQueued(t *testing.T) {
	t.Parallel()

	f := newFixture(t, entity.ConsentPending)

	f.completion.Register("event-1", func([]entity.EventHandle) {})

	err := f.processor.ProcessHit(context.Background(), encodedEntity(t, "event-1", nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrRetryable)

	assert.Empty(t, f.transport.requests)
	assert.Equal(t, 1, f.completion.Pending())
}

// Request shape

func TestSuccessfulSend(t *testing.T) {
	t.Parallel()

	f := newFixture(t, entity.ConsentYes)

	err := f.processor.ProcessHit(context.Background(), encodedEntity(t, "event-1", nil))
	require.NoError(t, err)

	require.Len(t, f.transport.requests, 1)
	req := f.transport.requests[0]

	assert.Contains(t, req.URL, "https://edge.adobedc.net/ee/v1/interact?configId=cfg-123&requestId=")
	assert.Equal(t, "application/json", req.Headers["Content-Type"])

	body := map[string]any{}
	require.NoError(t, json.Unmarshal(req.Body, &body))

	events, ok := body["events"].([]any)
	require.True(t, ok)
	require.Len(t, events, 1)

	xdm := events[0].(map[string]any)["xdm"].(map[string]any)
	assert.Equal(t, "event-1", xdm["_id"])
	assert.Equal(t, "2024-03-01T12:00:00Z", xdm["timestamp"])
	assert.NotEmpty(t, xdm["implementationDetails"])

	meta := body["meta"].(map[string]any)["konductorConfig"].(map[string]any)["streaming"].(map[string]any)
	assert.Equal(t, true, meta["enabled"])
	assert.Equal(t, "\n", meta["lineFeed"])
	assert.Equal(t, "\u0000", meta["recordSeparator"])
}

func TestDomainOverrideFromConfigurationSnapshot(t *testing.T) {
	t.Parallel()

	f := newFixture(t, entity.ConsentYes)

	e := encodedEntity(t, "event-1", map[string]any{
		"edge.configId": "cfg-123",
		"edge.domain":   "company.data.net",
	})

	require.NoError(t, f.processor.ProcessHit(context.Background(), e))

	require.Len(t, f.transport.requests, 1)
	assert.Contains(t, f.transport.requests[0].URL, "https://company.data.net/ee/v1/interact")
}

func TestMissingConfigIDDropsHit(t *testing.T) {
	t.Parallel()

	f := newFixture(t, entity.ConsentYes)

	notified := false

	f.completion.Register("event-1", func([]entity.EventHandle) { notified = true })

	err := f.processor.ProcessHit(context.Background(), encodedEntity(t, "event-1", map[string]any{"other": "value"}))
	require.Error(t, err)
	assert.NotErrorIs(t, err, pipeline.ErrRetryable)

	pErr := pipeline.ProcessingError{}
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, hit.MalformedConfigCategory, pErr.Category)

	assert.Empty(t, f.transport.requests)
	assert.True(t, notified)
}

func TestMalformedEntityDropsHit(t *testing.T) {
	t.Parallel()

	f := newFixture(t, entity.ConsentYes)

	err := f.processor.ProcessHit(context.Background(), entity.DataEntity{ID: "hit-1", Payload: []byte("garbage")})
	require.Error(t, err)
	assert.NotErrorIs(t, err, pipeline.ErrRetryable)

	pErr := pipeline.ProcessingError{}
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, hit.MalformedEntityCategory, pErr.Category)
}

// Outcome classification

func TestTransportFailureIsRetryable(t *testing.T) {
	t.Parallel()

	f := newFixture(t, entity.ConsentYes)
	f.transport.err = errors.New("connection refused")

	f.completion.Register("event-1", func([]entity.EventHandle) {})

	err := f.processor.ProcessHit(context.Background(), encodedEntity(t, "event-1", nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrRetryable)

	pErr := pipeline.ProcessingError{}
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, hit.NetworkCategory, pErr.Category)

	assert.Equal(t, 1, f.completion.Pending())
}

func TestStatusClassification(t *testing.T) {
	type testCase struct {
		name       string
		statusCode int
		retryable  bool
		category   string
	}

	cases := []testCase{
		{name: "request timeout", statusCode: 408, retryable: true, category: hit.ServerErrorCategory},
		{name: "too many requests", statusCode: 429, retryable: true, category: hit.ServerErrorCategory},
		{name: "internal server error", statusCode: 500, retryable: true, category: hit.ServerErrorCategory},
		{name: "service unavailable", statusCode: 503, retryable: true, category: hit.ServerErrorCategory},
		{name: "bad request", statusCode: 400, category: hit.ClientErrorCategory},
		{name: "payload too large", statusCode: 413, category: hit.ClientErrorCategory},
	}

	for i := range cases {
		c := cases[i]

		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, entity.ConsentYes)
			f.transport.response = &hit.Response{StatusCode: c.statusCode}

			f.completion.Register("event-1", func([]entity.EventHandle) {})

			err := f.processor.ProcessHit(context.Background(), encodedEntity(t, "event-1", nil))
			require.Error(t, err)

			pErr := pipeline.ProcessingError{}
			require.ErrorAs(t, err, &pErr)
			assert.Equal(t, c.category, pErr.Category)

			if c.retryable {
				assert.ErrorIs(t, err, pipeline.ErrRetryable)
				assert.Equal(t, 1, f.completion.Pending())
			} else {
				assert.NotErrorIs(t, err, pipeline.ErrRetryable)
				assert.Equal(t, 0, f.completion.Pending())
			}
		})
	}
}

// Response handling

func TestResponseHandlesFanOutToCompletion(t *testing.T) {
	t.Parallel()

	f := newFixture(t, entity.ConsentYes)

	body := `{"handle":[{"type":"identity:result","payload":[{"id":"ecid-1"}]}]}` + "\n" +
		`not json` + "\n" +
		`{"handle":[{"type":"personalization:decisions","payload":[{"scope":"home"}]}]}`
	f.transport.response = &hit.Response{StatusCode: 200, Body: []byte(body)}

	var delivered []entity.EventHandle

	f.completion.Register("event-1", func(handles []entity.EventHandle) { delivered = handles })

	err := f.processor.ProcessHit(context.Background(), encodedEntity(t, "event-1", nil))
	require.NoError(t, err)

	require.Len(t, delivered, 2)
	assert.Equal(t, "identity:result", delivered[0].Type)
	assert.Equal(t, "personalization:decisions", delivered[1].Type)
	assert.Equal(t, 0, f.completion.Pending())
}

func TestStoreHandleUpdatesLocationHint(t *testing.T) {
	t.Parallel()

	f := newFixture(t, entity.ConsentYes)

	body := `{"handle":[{"type":"state:store","payload":[{"key":"locationHint","value":"or2","maxAge":1800}]}]}`
	f.transport.response = &hit.Response{StatusCode: 200, Body: []byte(body)}

	var delivered []entity.EventHandle

	f.completion.Register("event-1", func(handles []entity.EventHandle) { delivered = handles })

	err := f.processor.ProcessHit(context.Background(), encodedEntity(t, "event-1", nil))
	require.NoError(t, err)

	// The store handle is consumed internally, not surfaced to the caller.
	assert.Empty(t, delivered)

	hint, found := f.state.LocationHint()
	assert.True(t, found)
	assert.Equal(t, "or2", hint)

	// The next request is pinned to the hinted region.
	f.transport.response = &hit.Response{StatusCode: 200}

	require.NoError(t, f.processor.ProcessHit(context.Background(), encodedEntity(t, "event-2", nil)))
	require.Len(t, f.transport.requests, 2)
	assert.Contains(t, f.transport.requests[1].URL, "/ee/or2/v1/interact")
}
