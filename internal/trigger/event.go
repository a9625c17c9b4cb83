// Package trigger turns storage notifications from Lambda or a queue into
// the objects the cleaner has to process.
package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/aws/aws-lambda-go/events"
)

// ObjectRef points at one uploaded object.
type ObjectRef struct {
	Bucket string
	Key    string
	Size   int64
}

// StorageEvent is a notification listing one or more uploaded objects.
type StorageEvent struct {
	Objects []ObjectRef
}

// Handler processes every object of a notification.
type Handler interface {
	HandleEvent(ctx context.Context, event StorageEvent) error
}

// FromS3Event converts an S3 notification. Object keys arrive URL encoded
// ("+" for spaces) and are decoded here; a key that does not decode is kept as is.
func FromS3Event(e events.S3Event) StorageEvent {
	event := StorageEvent{Objects: make([]ObjectRef, 0, len(e.Records))}
	for _, record := range e.Records {
		event.Objects = append(event.Objects, ObjectRef{
			Bucket: record.S3.Bucket.Name,
			Key:    decodeKey(record.S3.Object.Key),
			Size:   record.S3.Object.Size,
		})
	}
	return event
}

// ParseStorageEvent decodes an S3 notification document, as delivered on a queue.
func ParseStorageEvent(body []byte) (StorageEvent, error) {
	var e events.S3Event
	if err := json.Unmarshal(body, &e); err != nil {
		return StorageEvent{}, fmt.Errorf("invalid storage notification: %w", err)
	}
	return FromS3Event(e), nil
}

func decodeKey(key string) string {
	decoded, err := url.QueryUnescape(key)
	if err != nil {
		return key
	}
	return decoded
}

// LambdaResponse is returned to the Lambda runtime.
type LambdaResponse struct {
	Status string `json:"status"`
}

// LambdaHandler adapts h to the Lambda runtime's S3 event signature.
func LambdaHandler(h Handler) func(context.Context, events.S3Event) (LambdaResponse, error) {
	return func(ctx context.Context, e events.S3Event) (LambdaResponse, error) {
		if err := h.HandleEvent(ctx, FromS3Event(e)); err != nil {
			return LambdaResponse{Status: "error"}, err
		}
		return LambdaResponse{Status: "success"}, nil
	}
}
