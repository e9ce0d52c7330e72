// Package hit turns one dequeued entity into a network call, honoring the
// consent gate, and classifies the outcome as success, retryable or drop.
package hit

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/telemetry-sdk/edge-delivery/internal/codec"
	"github.com/telemetry-sdk/edge-delivery/internal/common"
	"github.com/telemetry-sdk/edge-delivery/internal/domain/entity"
	"github.com/telemetry-sdk/edge-delivery/internal/registry"
	"github.com/telemetry-sdk/edge-delivery/internal/state"
)

const (
	MalformedEntityCategory = "malformed_entity"
	MalformedConfigCategory = "malformed_config"
	ConsentPendingCategory  = "consent_pending"
	NetworkCategory         = "network"
	ServerErrorCategory     = "server_error"
	ClientErrorCategory     = "client_error"
)

var (
	errMalformedEntity = errors.New("unparseable data entity")
	errConsentPending  = errors.New("collect consent pending")
)

type Config struct {
	Domain string
}

type Processor struct {
	state      *state.Extension
	completion *registry.Completion
	transport  Transport

	domain string
	logger *logr.Logger

	sent prometheus.Counter
}

func NewProcessor(st *state.Extension, completion *registry.Completion, transport Transport, conf Config) *Processor {
	domain := conf.Domain
	if domain == "" {
		domain = defaultDomain
	}

	return &Processor{
		state:      st,
		completion: completion,
		transport:  transport,
		domain:     domain,
	}
}

func (p *Processor) WithLogger(logger logr.Logger) *Processor {
	p.logger = &logger

	return p
}

func (p *Processor) WithMetrics(registry prometheus.Registerer, namespace string) (*Processor, error) {
	sent := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "hit_sent_total",
		Help:      "Hits delivered to the ingestion endpoint.",
	})

	err := registry.Register(sent)
	if err != nil {
		return nil, fmt.Errorf("failed to register metric: %w", err)
	}

	p.sent = sent

	return p, nil
}

// ProcessHit attempts delivery of one entity. A nil return is terminal: the
// queue removes the entity. A retryable error keeps it at the head. Any other
// error drops it. Consent is read once per attempt; changes never affect work
// already dispatched.
func (p *Processor) ProcessHit(ctx context.Context, e entity.DataEntity) error {
	decoded, ok := codec.Decode(e.Payload)
	if !ok {
		return common.NewProcessingError(errMalformedEntity, MalformedEntityCategory, nil, "dropping hit %s", e.ID)
	}

	eventID := decoded.Event.UniqueID

	switch p.state.CollectConsent() {
	case entity.ConsentNo:
		p.logInfo(1, "Collect consent is no, dropping hit without send", "id", e.ID)
		p.completion.Unregister(eventID)

		return nil

	case entity.ConsentPending:
		// Neither dropped nor sent while consent is undetermined.
		return common.NewRetryableProcessingError(errConsentPending, ConsentPendingCategory, nil, "hit %s stays queued", e.ID)
	}

	req, err := p.buildRequest(decoded)
	if err != nil {
		p.completion.Unregister(eventID)

		return common.NewProcessingError(err, MalformedConfigCategory, nil, "cannot build request for hit %s", e.ID)
	}

	resp, err := p.transport.Send(ctx, req)
	if err != nil {
		return common.NewRetryableProcessingError(err, NetworkCategory, nil, "failed to send hit %s", e.ID)
	}

	return p.classify(ctx, e, eventID, resp)
}

func (p *Processor) classify(ctx context.Context, e entity.DataEntity, eventID string, resp *Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		p.handleResponseBody(ctx, eventID, resp.Body)
		p.completion.Unregister(eventID)

		if p.sent != nil {
			p.sent.Inc()
		}

		p.logInfo(2, "Hit delivered", "id", e.ID, "status", resp.StatusCode)

		return nil

	case isRecoverable(resp.StatusCode):
		return common.NewRetryableProcessingError(
			fmt.Errorf("status %d", resp.StatusCode),
			ServerErrorCategory, nil,
			"retryable failure for hit %s", e.ID,
		)

	default:
		// Retrying a rejected request would never succeed.
		p.completion.Unregister(eventID)

		return common.NewProcessingError(
			fmt.Errorf("status %d", resp.StatusCode),
			ClientErrorCategory, nil,
			"dropping rejected hit %s", e.ID,
		)
	}
}

func isRecoverable(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}

	return statusCode >= 500
}

func (p *Processor) logInfo(level int, msg string, keysAndValues ...any) {
	if p.logger == nil {
		return
	}

	p.logger.V(level).Info(msg, keysAndValues...)
}

func (p *Processor) logError(err error, msg string, keysAndValues ...any) {
	if p.logger == nil {
		return
	}

	p.logger.Error(err, msg, keysAndValues...)
}
