package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/integrationhub/pkg/actor"
	"github.com/platinummonkey/integrationhub/pkg/contextkeys"
	"github.com/platinummonkey/integrationhub/pkg/observability"
)

// Entry describes a mutation to record
type Entry struct {
	Action     Action
	TargetType TargetType
	TargetID   string
	CompanyID  string
	Metadata   map[string]interface{}
}

// Recorder turns mutations into audit events
type Recorder struct {
	store    Store
	sink     Logger
	logger   *observability.Logger
	onRecord func(action string)
	now      func() time.Time
}

// RecorderOption configures a Recorder
type RecorderOption func(*Recorder)

// WithSink adds a secondary sink that receives every stored event
func WithSink(sink Logger) RecorderOption {
	return func(r *Recorder) {
		r.sink = sink
	}
}

// WithRecordHook registers a callback invoked for each stored event
func WithRecordHook(fn func(action string)) RecorderOption {
	return func(r *Recorder) {
		r.onRecord = fn
	}
}

// WithClock overrides the event timestamp source
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.now = now
	}
}

// NewRecorder creates a recorder backed by store
func NewRecorder(store Store, logger *observability.Logger, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record stores an event for the actor in ctx. Failures are logged, never returned.
func (r *Recorder) Record(ctx context.Context, entry Entry) *Event {
	event := &Event{
		ID:         uuid.New().String(),
		Action:     entry.Action,
		TargetType: entry.TargetType,
		TargetID:   entry.TargetID,
		CompanyID:  entry.CompanyID,
		RequestID:  contextkeys.GetRequestID(ctx),
		Metadata:   entry.Metadata,
		CreatedAt:  r.now().UTC(),
	}
	if a, ok := actor.FromContext(ctx); ok {
		event.ActorUserID = a.ID
		event.ActorRole = string(a.Role)
	} else {
		event.ActorUserID = actor.SystemID
	}

	log := r.logger.WithFields(map[string]interface{}{
		"action":    string(event.Action),
		"target_id": event.TargetID,
		"actor_id":  event.ActorUserID,
	})

	if err := r.store.Append(ctx, event); err != nil {
		log.WithError(err).Error("failed to store audit event")
		return nil
	}
	if r.sink != nil {
		if err := r.sink.Log(ctx, event); err != nil {
			log.WithError(err).Warn("failed to write audit event to sink")
		}
	}
	if r.onRecord != nil {
		r.onRecord(string(event.Action))
	}
	log.Debug("audit event recorded")
	return event
}

// Search queries the underlying store
func (r *Recorder) Search(ctx context.Context, filter SearchFilter) ([]*Event, error) {
	return r.store.Search(ctx, filter)
}
