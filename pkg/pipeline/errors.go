package pipeline

import (
	"errors"
	"fmt"

	"github.com/IBM/sarama"
)

// ProcessingError

// ProcessingError decorates a failure with the category used for error
// accounting and the inputs needed to replay it from the dead letter archive.
type ProcessingError struct {
	error
	Category string
	Message  *sarama.ConsumerMessage
	Inputs   []Input
}

type Input struct {
	Source string
	Key    string
	Value  []byte
}

const (
	UnknownCategory   = "unknown"
	UnmarshalCategory = "unmarshal"
	PanicCategory     = "panic"
)

func NewProcessingError(err error, category string, inputs []Input) ProcessingError {
	return ProcessingError{
		error:    err,
		Category: category,
		Inputs:   inputs,
	}
}

func (e ProcessingError) Unwrap() error {
	return e.error
}

// ErrRetryable

// ErrRetryable marks failures worth re-attempting: the input is kept and the
// operation is retried later instead of being dropped.
var ErrRetryable = errors.New("retryable error")

func NewRetryable(err error) error {
	return fmt.Errorf("%w: %w", ErrRetryable, err)
}

func NewRetryableProcessingError(err error, category string, inputs []Input) ProcessingError {
	return NewProcessingError(NewRetryable(err), category, inputs)
}
