package pipeline

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/go-logr/logr"
)

// Runner drains hit submissions from the ingest topics. Every claimed
// message is decoded and handed to the processing function; rebalances
// restart the claim loop until the context is cancelled.
type Runner[Payload any] struct {
	consumer sarama.ConsumerGroup
	topics   []string

	handler JSONHandler[Payload]

	logger *logr.Logger
}

func NewRunner[Payload any](consumer sarama.ConsumerGroup, topics []string, processing Processing[Payload], errorProcessing ErrorProcessing) Runner[Payload] {
	handler := NewJSONHandler(processing, errorProcessing)

	return Runner[Payload]{
		consumer: consumer,
		topics:   topics,
		handler:  handler,
	}
}

func (r Runner[Payload]) WithLogger(logger logr.Logger) Runner[Payload] {
	r.logger = &logger
	r.handler = r.handler.WithLogger(logger)

	return r
}

// Start blocks until the ingest consumer fails or the context is cancelled.
func (r Runner[Payload]) Start(ctx context.Context) error {
	go func() {
		for err := range r.consumer.Errors() {
			r.logError(err, "ingest consumer error")
		}
	}()

	for {
		// Consume returns on every rebalance; claims are re-acquired on the
		// next iteration.
		err := r.consumer.Consume(ctx, r.topics, r.handler)
		if err != nil {
			r.logError(err, "Ingest consumer failed")

			return fmt.Errorf("ingest consumer failed: %w", err)
		}

		err = ctx.Err()
		if err != nil {
			r.logInfo(0, "Context expired, stopping ingest")

			return err
		}
	}
}

func (r Runner[Payload]) logInfo(level int, msg string, keysAndValues ...any) {
	if r.logger == nil {
		return
	}

	r.logger.V(level).Info(msg, keysAndValues...)
}

func (r Runner[Payload]) logError(err error, msg string, keysAndValues ...any) {
	if r.logger == nil {
		return
	}

	r.logger.Error(err, msg, keysAndValues...)
}
