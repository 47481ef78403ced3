// Package config provides application configuration management.
//
// # Overview
//
// Configuration starts from Default(), is overlaid by the YAML file named in
// HUB_CONFIG_FILE (if any) and then by environment variables. Environment wins.
//
// # Configuration Structure
//
// Server settings:
//
//	HUB_HOST="0.0.0.0"
//	HUB_PORT="8080"
//	HUB_HEALTH_PORT="9090"
//	HUB_READ_TIMEOUT="15s"
//	HUB_CORS_ORIGINS="https://console.example.com"
//
// Storage settings:
//
//	HUB_STORAGE_TYPE="postgres"  # memory, postgres
//	HUB_POSTGRES_URL="postgres://localhost/hub"
//	HUB_POSTGRES_REPLICA_URLS="postgres://replica1/hub,postgres://replica2/hub"
//	HUB_REDIS_URL="redis://localhost:6379"
//	HUB_MOCK_LATENCY="150ms"
//	HUB_MOCK_FAILURE_RATE="0.05"
//
// Session and identity settings:
//
//	HUB_AUTH_MODE="oidc"  # dev, oidc
//	HUB_OIDC_ISSUER_URL="https://login.example.com"
//	HUB_OIDC_CLIENT_ID="integration-hub"
//	HUB_DEFAULT_ROLE="business-viewer"
//	HUB_ROUTE_TABLE="/etc/hub/routes.yaml"
//	HUB_WATCH_ROUTES="true"
//	HUB_SEED_FILE="/etc/hub/seed.yaml"
//
// Jobs:
//
//	HUB_INVITATION_SWEEP="@every 1h"
//	HUB_SESSION_GAUGE="@every 30s"
//	HUB_INVITATION_TTL="168h"
//
// Observability settings:
//
//	HUB_LOG_LEVEL="info"  # debug, info, warn, error
//	HUB_METRICS_ENABLED="true"
//	HUB_OTEL_ENABLED="true"
//	HUB_OTEL_ENDPOINT="otel-collector:4317"
//
// The same settings in YAML:
//
//	server:
//	  port: "8080"
//	storage:
//	  type: postgres
//	  postgres_url: postgres://localhost/hub
//	session:
//	  route_table: /etc/hub/routes.yaml
//	  watch_routes: true
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	go config.Watch(ctx, cfg.Session.RouteTable, logger, reload)
//
// # Related Packages
//
//   - pkg/storage: Uses storage configuration
//   - pkg/observability: Uses observability configuration
//   - pkg/viewgate: Route table reloaded by Watch
package config
