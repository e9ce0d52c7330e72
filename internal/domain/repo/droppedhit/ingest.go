package droppedhit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/telemetry-sdk/edge-delivery/internal/version"
	"github.com/telemetry-sdk/edge-delivery/pkg/pipeline"
)

// Ingest failures are archived next to dropped hits, keyed by their source
// coordinates instead of an entity id.

const ingestKeyTemplate = "<prefix>/<year>/<month>/<day>/<topic>/<partition>-<offset>.json"

var ErrNilMessage = errors.New("nil message")

type IngestError struct {
	ProcessingContext ProcessingContext
	Source            Source
	Inputs            []KeyValue
	Reason            Reason
}

type Source struct {
	Topic     string
	Partition int32
	Offset    int64
	Payload   []byte
}

type KeyValue struct {
	Key   string
	Value []byte
}

func (r S3Writer) WriteIngestError(ctx context.Context, pErr pipeline.ProcessingError) error {
	obj, err := r.createIngestError(pErr)
	if err != nil {
		return fmt.Errorf("failed to create local model: %w", err)
	}

	b, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("failed to marshal local model: %w", err)
	}

	key, err := r.computeIngestObjectKey(pErr)
	if err != nil {
		return fmt.Errorf("failed to compute object key: %w", err)
	}

	params := &s3.PutObjectInput{
		Bucket: &r.bucket,
		Key:    &key,
		Body:   bytes.NewReader(b),
	}

	_, err = r.s3client.PutObject(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to write in s3: %w", err)
	}

	return nil
}

func (r S3Writer) createIngestError(pErr pipeline.ProcessingError) (IngestError, error) {
	if pErr.Message == nil {
		return IngestError{}, ErrNilMessage
	}

	ret := IngestError{
		ProcessingContext: ProcessingContext{
			Component: Component{
				Branch:   version.Branch,
				Revision: version.Revision,
			},
			Time: r.clock.Now(),
			Host: r.hostname,
		},
		Source: Source{
			Topic:     pErr.Message.Topic,
			Partition: pErr.Message.Partition,
			Offset:    pErr.Message.Offset,
			Payload:   pErr.Message.Value,
		},
		Inputs: make([]KeyValue, 0, len(pErr.Inputs)),
		Reason: Reason{
			Category: pErr.Category,
			Error:    pErr.Error(),
		},
	}

	for _, kv := range pErr.Inputs {
		ret.Inputs = append(ret.Inputs, KeyValue{
			Key:   kv.Key,
			Value: kv.Value,
		})
	}

	return ret, nil
}

func (r S3Writer) computeIngestObjectKey(pErr pipeline.ProcessingError) (string, error) {
	if pErr.Message == nil {
		return "", ErrNilMessage
	}

	timestamp := pErr.Message.Timestamp
	if timestamp.IsZero() {
		timestamp = r.clock.Now()
	}

	template := strings.NewReplacer(
		"<prefix>", r.prefix,
		"<year>", fmt.Sprintf("%04d", timestamp.Year()),
		"<month>", fmt.Sprintf("%02d", timestamp.Month()),
		"<day>", fmt.Sprintf("%02d", timestamp.Day()),
		"<topic>", pErr.Message.Topic,
		"<partition>", fmt.Sprintf("%d", pErr.Message.Partition),
		"<offset>", fmt.Sprintf("%d", pErr.Message.Offset),
	)

	return template.Replace(ingestKeyTemplate), nil
}
