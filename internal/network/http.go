// Package network is the production transport behind the hit processor.
package network

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/telemetry-sdk/edge-delivery/internal/hit"
)

// Responses are small streamed records; cap the read as a safety net.
const maxResponseBytes = 1 << 20

type HTTPTransport struct {
	client *http.Client
}

func NewHTTPTransport(timeout time.Duration) HTTPTransport {
	return HTTPTransport{
		client: &http.Client{Timeout: timeout},
	}
}

// Send performs the call and returns the transport-level outcome. Any error
// (connectivity, timeout, cancellation) is a retryable failure for the
// caller; status classification is the caller's concern.
func (t HTTPTransport) Send(ctx context.Context, req hit.Request) (*hit.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	ret := hit.Response{
		StatusCode: httpResp.StatusCode,
		Body:       body,
	}

	return &ret, nil
}
