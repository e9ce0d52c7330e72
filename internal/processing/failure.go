package processing

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/telemetry-sdk/edge-delivery/internal/domain/repo/droppedhit"
	"github.com/telemetry-sdk/edge-delivery/pkg/pipeline"
)

// MainError archives ingest failures in the dead letter bucket.
type MainError struct {
	writer droppedhit.S3Writer
}

func NewMainError(writer droppedhit.S3Writer) MainError {
	return MainError{
		writer: writer,
	}
}

func (m MainError) Process(ctx context.Context, pErr pipeline.ProcessingError) error {
	err := m.writer.WriteIngestError(ctx, pErr)
	if err != nil {
		return pipeline.NewRetryable(err)
	}

	return nil
}

// LogError is the fallback error processing for deployments without a dead
// letter bucket: failures are logged and acknowledged.
type LogError struct {
	logger logr.Logger
}

func NewLogError(logger logr.Logger) LogError {
	return LogError{
		logger: logger,
	}
}

func (l LogError) Process(ctx context.Context, pErr pipeline.ProcessingError) error {
	l.logger.Error(pErr, "Discarding failed event", "category", pErr.Category)

	return nil
}
