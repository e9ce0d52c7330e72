package hit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/telemetry-sdk/edge-delivery/internal/domain/entity"
)

const (
	defaultDomain = "edge.adobedc.net"

	configIDKey = "edge.configId"
	domainKey   = "edge.domain"
)

// The request body signals newline-delimited streaming so response handles
// can be parsed record by record.
type requestBody struct {
	Query       map[string]any   `json:"query"`
	IdentityMap map[string]any   `json:"identityMap"`
	Events      []map[string]any `json:"events"`
	Meta        requestMeta      `json:"meta"`
}

type requestMeta struct {
	KonductorConfig konductorConfig `json:"konductorConfig"`
}

type konductorConfig struct {
	Streaming streamingMeta `json:"streaming"`
}

type streamingMeta struct {
	Enabled         bool   `json:"enabled"`
	LineFeed        string `json:"lineFeed"`
	RecordSeparator string `json:"recordSeparator"`
}

// buildRequest turns a decoded entity into one interact call carrying a batch
// of exactly one event. The current location hint, when present, pins the
// request to a region through an extra path segment.
func (p *Processor) buildRequest(decoded *entity.EdgeDataEntity) (Request, error) {
	configID, ok := decoded.Configuration[configIDKey].(string)
	if !ok || configID == "" {
		return Request{}, fmt.Errorf("missing %s in configuration snapshot", configIDKey)
	}

	domain := p.domain
	if d, ok := decoded.Configuration[domainKey].(string); ok && d != "" {
		domain = d
	}

	path := "/ee/v1/interact"
	if hint, found := p.state.LocationHint(); found {
		path = fmt.Sprintf("/ee/%s/v1/interact", hint)
	}

	url := fmt.Sprintf("https://%s%s?configId=%s&requestId=%s", domain, path, configID, uuid.NewString())

	body := requestBody{
		Query:       map[string]any{"operation": "automatic"},
		IdentityMap: decoded.IdentityMap,
		Events:      []map[string]any{p.buildEvent(decoded.Event)},
		Meta: requestMeta{
			KonductorConfig: konductorConfig{
				Streaming: streamingMeta{
					Enabled:         true,
					LineFeed:        lineFeed,
					RecordSeparator: recordSeparator,
				},
			},
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return Request{}, fmt.Errorf("failed to marshal request body: %w", err)
	}

	ret := Request{
		URL: url,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: data,
	}

	return ret, nil
}

func (p *Processor) buildEvent(event entity.Event) map[string]any {
	xdm := map[string]any{
		"_id":       event.UniqueID,
		"timestamp": event.Timestamp.UTC().Format(time.RFC3339),
	}

	details := p.state.ImplementationDetails()
	if len(details) > 0 {
		xdm["implementationDetails"] = details
	}

	ret := map[string]any{"xdm": xdm}

	if len(event.Data) > 0 {
		ret["data"] = event.Data
	}

	return ret
}
