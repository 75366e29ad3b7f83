package services

import "context"

// ImageStore persists an object and returns the URL it is served from.
type ImageStore interface {
	Save(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// PredictionEngine turns a prompt into generated text.
type PredictionEngine interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// EventPublisher publishes domain events. Publishing is best effort: a failure
// is logged and never fails the request that produced the event.
type EventPublisher interface {
	Publish(routingKey string, payload any) error
}

// Event routing keys.
const (
	EventImportCreated = "import.created"
	EventUserDeleted   = "user.deleted"
)
