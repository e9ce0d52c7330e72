// Package droppedhit archives undeliverable hits as dated objects so a
// non-retryable drop is inspectable after the fact.
package droppedhit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jonboulle/clockwork"

	"github.com/telemetry-sdk/edge-delivery/internal/domain/entity"
	"github.com/telemetry-sdk/edge-delivery/internal/log"
	"github.com/telemetry-sdk/edge-delivery/internal/version"
)

const (
	unknownHostname = "<unknown>"

	keyTemplate = "<prefix>/<year>/<month>/<day>/<id>.json"
)

var ErrEmptyID = errors.New("empty entity id")

type S3Writer struct {
	s3client *s3.Client
	clock    clockwork.Clock

	bucket string
	prefix string

	hostname string
}

func NewS3Writer(s3client *s3.Client, clock clockwork.Clock, bucket string, prefix string) S3Writer {
	hostname, err := os.Hostname()
	if err != nil {
		log.Logger().Error(err, "failed to get hostname, falling back to "+unknownHostname)

		hostname = unknownHostname
	}

	return S3Writer{
		s3client: s3client,
		clock:    clock,
		bucket:   bucket,
		prefix:   prefix,
		hostname: hostname,
	}
}

func (r S3Writer) WriteDroppedHit(ctx context.Context, hit entity.DroppedHit) error {
	obj, err := r.createDroppedHit(hit)
	if err != nil {
		return fmt.Errorf("failed to create local model: %w", err)
	}

	b, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("failed to marshal local model: %w", err)
	}

	key, err := r.computeObjectKey(hit)
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

func (r S3Writer) createDroppedHit(hit entity.DroppedHit) (DroppedHit, error) {
	if hit.Entity.ID == "" {
		return DroppedHit{}, ErrEmptyID
	}

	ret := DroppedHit{
		ProcessingContext: ProcessingContext{
			Component: Component{
				Branch:   version.Branch,
				Revision: version.Revision,
			},
			Time: r.clock.Now(),
			Host: r.hostname,
		},
		Hit: Hit{
			ID:        hit.Entity.ID,
			CreatedAt: hit.Entity.CreatedAt,
			Payload:   hit.Entity.Payload,
		},
		Reason: Reason{
			Category: hit.Category,
			Error:    hit.Reason,
		},
	}

	return ret, nil
}

func (r S3Writer) computeObjectKey(hit entity.DroppedHit) (string, error) {
	if hit.Entity.ID == "" {
		return "", ErrEmptyID
	}

	template := strings.NewReplacer(
		"<prefix>", r.prefix,
		"<year>", fmt.Sprintf("%04d", hit.Entity.CreatedAt.Year()),
		"<month>", fmt.Sprintf("%02d", hit.Entity.CreatedAt.Month()),
		"<day>", fmt.Sprintf("%02d", hit.Entity.CreatedAt.Day()),
		"<id>", hit.Entity.ID,
	)

	return template.Replace(keyTemplate), nil
}
