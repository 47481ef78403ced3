package audit

import "context"

// Logger is a sink that receives every recorded event
type Logger interface {
	Log(ctx context.Context, event *Event) error
	Close() error
}
