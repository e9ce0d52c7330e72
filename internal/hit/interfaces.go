package hit

import "context"

//go:generate mockgen -source=interfaces.go -package=mock -destination=./mock/mock_hit.go

// Request is one outbound network call, ready to send.
type Request struct {
	URL     string
	Headers map[string]string
	Body    []byte
}

// Response is the transport-level outcome of a sent request. A transport
// failure (connectivity, timeout) is reported as an error instead.
type Response struct {
	StatusCode int
	Body       []byte
}

type Transport interface {
	Send(ctx context.Context, req Request) (*Response, error)
}
