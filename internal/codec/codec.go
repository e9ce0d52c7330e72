// Package codec (de)serializes the composite hit payload stored in the
// durable queue: the event plus the configuration and identity snapshots
// captured at enqueue time.
package codec

import (
	"encoding/json"

	"github.com/telemetry-sdk/edge-delivery/internal/domain/entity"
)

// edgeDataEntity is the storage shape. The event is a pointer so a record
// missing it entirely is distinguishable from an empty event.
type edgeDataEntity struct {
	Event         *entity.Event  `json:"event"`
	Configuration map[string]any `json:"configuration"`
	IdentityMap   map[string]any `json:"identityMap"`
}

// Encode serializes the entity for the durable queue. A nil entity or an
// entity whose snapshots hold unsupported value types yields no payload;
// encoding never panics or errors out to the caller.
func Encode(e *entity.EdgeDataEntity) ([]byte, bool) {
	if e == nil {
		return nil, false
	}

	configuration, err := entity.CloneMap(e.Configuration)
	if err != nil {
		return nil, false
	}

	identityMap, err := entity.CloneMap(e.IdentityMap)
	if err != nil {
		return nil, false
	}

	event := e.Event

	record := edgeDataEntity{
		Event:         &event,
		Configuration: configuration,
		IdentityMap:   identityMap,
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, false
	}

	return data, true
}

// Decode parses a stored payload back into an entity. Nil, empty or
// syntactically invalid input, or a record without an event, yields absent.
// Nil snapshot maps are normalized to empty ones.
func Decode(data []byte) (*entity.EdgeDataEntity, bool) {
	if len(data) == 0 {
		return nil, false
	}

	record := edgeDataEntity{}

	err := json.Unmarshal(data, &record)
	if err != nil {
		return nil, false
	}

	if record.Event == nil {
		return nil, false
	}

	if record.Configuration == nil {
		record.Configuration = map[string]any{}
	}

	if record.IdentityMap == nil {
		record.IdentityMap = map[string]any{}
	}

	ret := entity.EdgeDataEntity{
		Event:         *record.Event,
		Configuration: record.Configuration,
		IdentityMap:   record.IdentityMap,
	}

	return &ret, true
}
