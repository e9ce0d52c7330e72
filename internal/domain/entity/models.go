package entity

import "time"

// ConsentStatus is the current collect-consent decision gating hit transmission.
type ConsentStatus string

const (
	ConsentYes     ConsentStatus = "yes"
	ConsentNo      ConsentStatus = "no"
	ConsentPending ConsentStatus = "pending"
)

// Event is one application-generated event. It is never mutated after construction.
type Event struct {
	UniqueID  string         `json:"uniqueId"`
	Name      string         `json:"name"`
	Type      string         `json:"type"`
	Source    string         `json:"source"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// EdgeDataEntity wraps an event together with the configuration and identity
// snapshots captured at enqueue time. Snapshots are deep copies owned by the
// entity; nil maps are normalized to empty ones.
type EdgeDataEntity struct {
	Event         Event
	Configuration map[string]any
	IdentityMap   map[string]any
}

// NewEdgeDataEntity clones both snapshots so later mutation of the caller's
// maps cannot alter the entity.
func NewEdgeDataEntity(event Event, configuration, identityMap map[string]any) (EdgeDataEntity, error) {
	conf, err := CloneMap(configuration)
	if err != nil {
		return EdgeDataEntity{}, err
	}

	identity, err := CloneMap(identityMap)
	if err != nil {
		return EdgeDataEntity{}, err
	}

	ret := EdgeDataEntity{
		Event:         event,
		Configuration: conf,
		IdentityMap:   identity,
	}

	return ret, nil
}

// DataEntity is one persisted unit of work in the durable queue. The payload
// is opaque to the queue; only the hit processor interprets it.
type DataEntity struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Payload   []byte    `json:"payload"`
}

// EventHandle is one parsed response fragment correlated back to the
// originating event.
type EventHandle struct {
	Type    string           `json:"type"`
	Payload []map[string]any `json:"payload,omitempty"`
}

// DroppedHit describes a hit removed from the queue without a successful send.
type DroppedHit struct {
	Entity   DataEntity
	Category string
	Reason   string
}

// SharedStateStatus reports whether a dependency has published its state yet.
type SharedStateStatus string

const (
	SharedStateSet     SharedStateStatus = "set"
	SharedStatePending SharedStateStatus = "pending"
	SharedStateNone    SharedStateStatus = "none"
)

type SharedState struct {
	Status SharedStateStatus
	Data   map[string]any
}

// ExtensionProperties is the persisted, mutable extension state. An expired
// location hint reads as absent even though the stored bytes are only erased
// on the next write.
type ExtensionProperties struct {
	LocationHint       string
	LocationHintExpiry time.Time
}
