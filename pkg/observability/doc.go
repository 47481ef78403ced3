// Package observability provides structured logging, Prometheus metrics, OpenTelemetry tracing
// and health checks for the hub server.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("role", role).Info("role switched")
//
// Context-aware logging picks up request and user ids:
//
//	observability.FromContext(ctx).WithError(err).Error("failed to deactivate user")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordPolicyDecision(rbac.CapAccessUsers, false)
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	router.HandleFunc("/health/ready", checker.Readiness)
//
// # Tracing
//
// InitOTel installs global tracer and meter providers exporting over OTLP gRPC.
// Services create spans through otel.Tracer, so tracing is a no-op until it is enabled.
package observability
