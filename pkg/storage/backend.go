package storage

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/platinummonkey/integrationhub/pkg/apperr"
	"github.com/platinummonkey/integrationhub/pkg/observability"
)

// Backend is the call boundary between an entity service and its store. Each call
// is traced, timed and passed through the simulator.
type Backend struct {
	entity  string
	sim     *Simulator
	metrics *observability.Metrics
}

// NewBackend creates the call boundary for entity. sim and metrics may be nil.
func NewBackend(entity string, sim *Simulator, metrics *observability.Metrics) *Backend {
	return &Backend{entity: entity, sim: sim, metrics: metrics}
}

// Run executes fn as the named backend operation
func (b *Backend) Run(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	ctx, span := observability.Tracer().Start(ctx, b.entity+"."+operation)
	defer span.End()
	span.SetAttributes(
		attribute.String("hub.entity", b.entity),
		attribute.String("hub.operation", operation),
	)

	start := time.Now()
	err := b.sim.Call(ctx, operation)
	if err == nil {
		err = fn(ctx)
	}
	b.metrics.RecordBackendOperation(b.entity, operation, time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("hub.error_kind", apperr.KindOf(err).String()))
		if apperr.IsLastAdmin(err) {
			b.metrics.RecordInvariantViolation(apperr.CodeLastAdmin)
		}
	}
	return err
}
