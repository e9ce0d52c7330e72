package processing

// IngestEvent is the wire shape of one application event consumed from the
// ingest topic. The identity map travels with the event; the configuration
// snapshot is the service's own edge configuration at enqueue time.
type IngestEvent struct {
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Source      string         `json:"source"`
	Data        map[string]any `json:"data"`
	IdentityMap map[string]any `json:"identityMap"`
}
