package common

import (
	"context"
	"fmt"

	"github.com/telemetry-sdk/edge-delivery/pkg/pipeline"
)

type CloseFunc func(context.Context) error

func NewProcessingError(err error, category string, inputs []pipeline.Input, reason string, args ...interface{}) pipeline.ProcessingError {
	cause := fmt.Sprintf(reason, args...)
	dErr := fmt.Errorf("%s: %w", cause, err)

	return pipeline.NewProcessingError(dErr, category, inputs)
}

func NewRetryableProcessingError(err error, category string, inputs []pipeline.Input, reason string, args ...interface{}) pipeline.ProcessingError {
	return NewProcessingError(pipeline.NewRetryable(err), category, inputs, reason, args...)
}
