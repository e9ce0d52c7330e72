package hit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/telemetry-sdk/edge-delivery/internal/domain/entity"
	"github.com/telemetry-sdk/edge-delivery/internal/state"
)

const (
	lineFeed        = "\n"
	recordSeparator = "\u0000"

	storeHandleType = "state:store"
)

type responseRecord struct {
	Handle []responseHandle `json:"handle"`
}

type responseHandle struct {
	Type    string           `json:"type"`
	Payload []map[string]any `json:"payload"`
}

// handleResponseBody parses the streamed records of a successful response,
// fanning handles out to the completion registry and applying at most one
// location hint update. Malformed records are skipped; a response that parses
// to nothing is still a successful send.
func (p *Processor) handleResponseBody(ctx context.Context, eventID string, body []byte) {
	for _, raw := range splitRecords(body) {
		record := responseRecord{}

		err := json.Unmarshal([]byte(raw), &record)
		if err != nil {
			p.logInfo(2, "Skipping unparseable response record", "eventId", eventID)

			continue
		}

		for _, handle := range record.Handle {
			if handle.Type == storeHandleType {
				p.applyStoreHandle(ctx, handle)

				continue
			}

			p.completion.AddFragment(eventID, entity.EventHandle{
				Type:    handle.Type,
				Payload: handle.Payload,
			})
		}
	}
}

func (p *Processor) applyStoreHandle(ctx context.Context, handle responseHandle) {
	for _, item := range handle.Payload {
		key, _ := item["key"].(string)
		if key != state.SharedLocationHintKey {
			continue
		}

		value, _ := item["value"].(string)

		maxAge, ok := item["maxAge"].(float64)
		if !ok {
			continue
		}

		ttl := time.Duration(maxAge) * time.Second

		err := p.state.SetLocationHint(ctx, value, ttl)
		if err != nil {
			p.logError(err, "Failed to update location hint")
		}
	}
}

func splitRecords(body []byte) []string {
	raw := strings.ReplaceAll(string(body), recordSeparator, lineFeed)

	records := strings.Split(raw, lineFeed)

	ret := make([]string, 0, len(records))

	for _, record := range records {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}

		ret = append(ret, record)
	}

	return ret
}
