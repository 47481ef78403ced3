package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const defaultStreamMaxLen = 100000

// StreamLogger publishes events to a Redis stream so other services can follow the
// audit trail. The stream is trimmed to roughly maxLen entries.
type StreamLogger struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

// NewStreamLogger creates a stream sink. The client stays owned by the caller.
func NewStreamLogger(client redis.Cmdable, stream string, maxLen int64) *StreamLogger {
	if maxLen <= 0 {
		maxLen = defaultStreamMaxLen
	}
	return &StreamLogger{client: client, stream: stream, maxLen: maxLen}
}

// Log appends the event as one stream entry keyed by action
func (l *StreamLogger) Log(ctx context.Context, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}
	err = l.client.XAdd(ctx, &redis.XAddArgs{
		Stream: l.stream,
		MaxLen: l.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"id":     event.ID,
			"action": string(event.Action),
			"event":  payload,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish audit event: %w", err)
	}
	return nil
}

// Close is a no-op; the Redis client is closed by its owner
func (l *StreamLogger) Close() error {
	return nil
}
