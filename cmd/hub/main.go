package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/integrationhub/pkg/api"
	"github.com/platinummonkey/integrationhub/pkg/audit"
	"github.com/platinummonkey/integrationhub/pkg/companies"
	"github.com/platinummonkey/integrationhub/pkg/config"
	"github.com/platinummonkey/integrationhub/pkg/jobs"
	"github.com/platinummonkey/integrationhub/pkg/middleware"
	"github.com/platinummonkey/integrationhub/pkg/observability"
	"github.com/platinummonkey/integrationhub/pkg/registrations"
	"github.com/platinummonkey/integrationhub/pkg/scope"
	"github.com/platinummonkey/integrationhub/pkg/seed"
	"github.com/platinummonkey/integrationhub/pkg/session"
	"github.com/platinummonkey/integrationhub/pkg/storage"
	"github.com/platinummonkey/integrationhub/pkg/users"
	"github.com/platinummonkey/integrationhub/pkg/viewgate"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "integration hub: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout).
		WithField("version", version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		observability.ShutdownOTel(shutdownCtx, providers, logger)
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	store, err := openBackend(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer store.close()

	var redisClient *redis.Client
	if cfg.Storage.RedisURL != "" {
		redisClient, err = storage.OpenRedis(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()
	}

	sinks, err := auditSinks(cfg.Audit, redisClient, logger)
	if err != nil {
		return err
	}
	recorderOpts := []audit.RecorderOption{audit.WithRecordHook(metrics.RecordAuditEvent)}
	if sinks != nil {
		defer sinks.Close()
		recorderOpts = append(recorderOpts, audit.WithSink(sinks))
	}
	recorder := audit.NewRecorder(store.audit, logger, recorderOpts...)

	// The resolver reads company names through the company service, which in turn
	// invalidates the resolver on change.
	var resolver *scope.Resolver
	companyService := companies.NewService(store.companies, recorder,
		storage.NewBackend("companies", store.sim, metrics), logger,
		companies.WithChangeHook(func(companyID string) {
			resolver.Invalidate(companyID)
		}))
	resolver = scope.NewResolver(companyService, 1024, cfg.Session.ScopeCacheTTL)

	userService := users.NewService(store.users, companyService, recorder,
		storage.NewBackend("users", store.sim, metrics), logger,
		users.WithInviteTTL(cfg.Jobs.InvitationTTL))
	registrationService := registrations.NewService(store.registrations, companyService, userService, recorder,
		storage.NewBackend("registrations", store.sim, metrics), logger)

	if cfg.Session.Seed {
		if err := applySeed(ctx, cfg.Session.SeedFile, store, logger); err != nil {
			return err
		}
	}

	identity, err := identitySource(ctx, cfg.Auth)
	if err != nil {
		return err
	}

	table := viewgate.DefaultRouteTable()
	if cfg.Session.RouteTable != "" {
		table, err = viewgate.LoadRouteTable(cfg.Session.RouteTable)
		if err != nil {
			return fmt.Errorf("failed to load route table: %w", err)
		}
	}
	routes := viewgate.NewRoutes(table)

	var rateLimit func(http.Handler) http.Handler
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.Distributed && redisClient != nil {
			rateLimit = middleware.NewDistributedRateLimitMiddleware(redisClient, logger).Handler
		} else {
			rateLimit = middleware.NewRateLimitMiddleware().Handler
		}
	}

	server := api.NewServer(api.Deps{
		Users:         userService,
		Companies:     companyService,
		Registrations: registrationService,
		Audit:         store.audit,
		Identity:      identity,
		Resolver:      resolver,
		Routes:        routes,
		Metrics:       metrics,
		Logger:        logger,
	}, api.Options{
		MaxSessions:  cfg.Session.MaxSessions,
		IdleTimeout:  cfg.Session.IdleTimeout,
		DefaultRole:  cfg.Session.DefaultRole,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		CORSOrigins:  cfg.Server.CORSOrigins,
		RateLimit:    rateLimit,
		Tracing:      cfg.Observability.OTelEnabled,

		AssignedRolesOnly: !cfg.Auth.TotalRoleSwitch(),
	})

	health := observability.NewHealthChecker(store.db(), redisClient)
	health.SetVersion(version)
	health.Register("sessions", false, func(ctx context.Context) error {
		if n := server.Sessions(); n >= cfg.Session.MaxSessions {
			return fmt.Errorf("%d console sessions open, oldest are being evicted: %w", n, observability.ErrDegraded)
		}
		return nil
	})
	healthRouter := mux.NewRouter()
	healthRouter.HandleFunc("/health/live", health.Liveness).Methods("GET")
	healthRouter.HandleFunc("/health/ready", health.Readiness).Methods("GET")
	healthRouter.Handle("/metrics", observability.MetricsHandler(registry)).Methods("GET")

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:        net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:     healthRouter,
		ReadTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("starting API server")
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("starting health server")
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	if cfg.Jobs.Enabled {
		scheduler := jobs.NewScheduler(logger, time.Minute)
		if err := scheduler.Add(cfg.Jobs.InvitationSweep, jobs.NewInvitationSweep(userService, logger)); err != nil {
			return err
		}
		if err := scheduler.Add(cfg.Jobs.SessionGauge, jobs.NewSessionGauge(server.Sessions, metrics)); err != nil {
			return err
		}
		g.Go(func() error { return scheduler.Run(gctx) })
	}

	if store.conns != nil {
		g.Go(func() error {
			store.conns.RunHealthChecks(gctx, 30*time.Second)
			return nil
		})
	}

	if cfg.Session.WatchRoutes && cfg.Session.RouteTable != "" {
		g.Go(func() error {
			err := config.Watch(gctx, cfg.Session.RouteTable, logger, func(path string) {
				reloadRoutes(routes, path, logger, server.Reroute)
			})
			if err != nil {
				logger.WithError(err).Warn("route table watch stopped")
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return errors.Join(apiServer.Shutdown(shutdownCtx), healthServer.Shutdown(shutdownCtx))
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("integration hub stopped")
	return nil
}

func identitySource(ctx context.Context, cfg config.AuthConfig) (session.IdentitySource, error) {
	switch cfg.Mode {
	case config.AuthModeOIDC:
		source, err := session.NewOIDCSource(ctx, cfg.OIDCIssuerURL, cfg.OIDCClientID)
		if err != nil {
			return nil, fmt.Errorf("failed to set up OIDC identity: %w", err)
		}
		return source, nil
	default:
		return session.NewDevSource(session.Identity{}), nil
	}
}

// auditSinks opens the configured audit sinks. It returns nil when none is configured
// and fans out only when there is more than one.
func auditSinks(cfg config.AuditConfig, redisClient *redis.Client, logger *observability.Logger) (audit.Logger, error) {
	var sinks []audit.Logger
	if cfg.FileDir != "" {
		fileSink, err := audit.NewFileLogger(audit.FileLoggerConfig{
			Dir:      cfg.FileDir,
			MaxSize:  cfg.MaxFileSize,
			MaxFiles: cfg.MaxFiles,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open audit file sink: %w", err)
		}
		sinks = append(sinks, fileSink)
		logger.WithField("dir", cfg.FileDir).Info("audit file sink enabled")
	}
	if cfg.RedisStream != "" && redisClient != nil {
		sinks = append(sinks, audit.NewStreamLogger(redisClient, cfg.RedisStream, cfg.RedisStreamMaxLen))
		logger.WithField("stream", cfg.RedisStream).Info("audit stream sink enabled")
	}

	switch len(sinks) {
	case 0:
		return nil, nil
	case 1:
		return sinks[0], nil
	default:
		return audit.NewMultiLogger(sinks...), nil
	}
}

func applySeed(ctx context.Context, file string, store *backend, logger *observability.Logger) error {
	fixture := seed.Default()
	if file != "" {
		var err error
		fixture, err = seed.Load(file)
		if err != nil {
			return fmt.Errorf("failed to load seed fixture: %w", err)
		}
	}
	_, err := seed.Apply(ctx, fixture, seed.Stores{
		Companies:     store.companies,
		Users:         store.users,
		Registrations: store.registrations,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to seed stores: %w", err)
	}
	return nil
}

// reloadRoutes swaps in the route table at path, keeping the current one when it is
// invalid. reroute moves open consoles off routes the new table denies.
func reloadRoutes(routes *viewgate.Routes, path string, logger *observability.Logger, reroute func() int) {
	table, err := viewgate.LoadRouteTable(path)
	if err != nil {
		logger.WithError(err).Warn("keeping current route table")
		return
	}
	routes.Store(table)
	moved := reroute()
	logger.WithFields(map[string]interface{}{
		"routes":   len(table.Routes),
		"rerouted": moved,
	}).Info("route table reloaded")
}
