package droppedhit

import "time"

type DroppedHit struct {
	ProcessingContext ProcessingContext
	Hit               Hit
	Reason            Reason
}

type ProcessingContext struct {
	Component Component
	Time      time.Time
	Host      string
}

type Component struct {
	Branch   string
	Revision string
}

type Hit struct {
	ID        string
	CreatedAt time.Time
	Payload   []byte
}

type Reason struct {
	Category string
	Error    string
}
