// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

// Package twin assembles the cement plant digital twin service.
//
// The service owns one sensor store, one conversation store and one LLM
// client, and exposes them over gin:
//
//	┌──────────┐   ┌──────────────┐   ┌──────────────────────┐
//	│ gin      │──▶│ handlers     │──▶│ sensors / alerts /   │
//	│ +otelgin │   │ (routes pkg) │   │ dashboard / agents   │
//	└──────────┘   └──────────────┘   └──────────┬───────────┘
//	                                             │
//	          ┌──────────────────────────────────┼──────────────┐
//	          ▼                                  ▼              ▼
//	   llm (gemini/openai/              conversation      knowledge
//	   anthropic/disabled)              (memory/badger)   (memory/weaviate)
//
// Background workers: the ttl scheduler evicts idle conversations and the
// history recorder refreshes readings and writes them to InfluxDB.
//
// # Usage
//
//	cfg, _ := twin.LoadConfig("")
//	svc, err := twin.New(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run(ctx))
package twin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/xrvnd/cement-ai/services/llm"
	"github.com/xrvnd/cement-ai/services/twin/agents"
	"github.com/xrvnd/cement-ai/services/twin/alerts"
	"github.com/xrvnd/cement-ai/services/twin/catalog"
	"github.com/xrvnd/cement-ai/services/twin/conversation"
	"github.com/xrvnd/cement-ai/services/twin/dashboard"
	"github.com/xrvnd/cement-ai/services/twin/guard"
	"github.com/xrvnd/cement-ai/services/twin/handlers"
	"github.com/xrvnd/cement-ai/services/twin/history"
	"github.com/xrvnd/cement-ai/services/twin/knowledge"
	"github.com/xrvnd/cement-ai/services/twin/middleware"
	"github.com/xrvnd/cement-ai/services/twin/observability"
	"github.com/xrvnd/cement-ai/services/twin/prompts"
	"github.com/xrvnd/cement-ai/services/twin/routes"
	"github.com/xrvnd/cement-ai/services/twin/sensors"
	"github.com/xrvnd/cement-ai/services/twin/services"
	"github.com/xrvnd/cement-ai/services/twin/ttl"
)

// ServiceName identifies the twin in traces.
const ServiceName = "cement-twin"

// Version is overridden at build time with -ldflags.
var Version = "0.1.0"

const shutdownTimeout = 10 * time.Second

// =============================================================================
// Interface Definition
// =============================================================================

// Service is the digital twin lifecycle.
//
// # Thread Safety
//
// Run blocks and should be called once. Close is idempotent and safe to
// call after Run returns.
type Service interface {
	// Run starts the background workers and the HTTP server and blocks
	// until ctx is cancelled or the server fails. It always releases the
	// service's resources before returning.
	Run(ctx context.Context) error

	// Router returns the configured engine, for tests.
	Router() *gin.Engine

	// Close releases resources without running the server.
	Close()
}

// Options injects dependencies that would otherwise be built from Config.
// Every field is optional.
type Options struct {
	LLM           llm.LLMClient
	Registry      *prometheus.Registry
	Conversations conversation.Store
	Retriever     knowledge.Retriever
	HistorySink   history.Sink
}

// =============================================================================
// Implementation
// =============================================================================

type service struct {
	config Config

	router    *gin.Engine
	registry  *prometheus.Registry
	metrics   *observability.TwinMetrics
	catalog   *catalog.Catalog
	store     *sensors.Store
	llmClient llm.LLMClient
	convs     conversation.Store
	retriever knowledge.Retriever
	runner    *agents.Runner

	ttlScheduler ttl.Scheduler
	recorder     *history.Recorder
	historySink  history.Sink

	aiOn     bool
	visionOn bool

	tracerCleanup func(context.Context)
	meterCleanup  func(context.Context)

	closeOnce sync.Once
}

// New builds the service.
//
// # Description
//
// New validates the configuration, installs tracing and the otel meter,
// loads the sensor catalog, builds the LLM client (degrading to the
// disabled sentinel without an API key), opens the conversation and
// knowledge stores and registers every route. Nothing is started until
// Run.
//
// # Inputs
//
//   - cfg: Configuration. Zero values use defaults.
//   - opts: Injected dependencies. May be nil.
//
// # Outputs
//
//   - Service: Ready to Run.
//   - error: Invalid config, unreadable catalog, or store failure.
func New(cfg Config, opts *Options) (Service, error) {
	if opts == nil {
		opts = &Options{}
	}
	s := &service{config: applyConfigDefaults(cfg)}
	if err := s.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if s.config.Environment == EnvironmentProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	if s.config.DatabaseURL != "" {
		slog.Info("DATABASE_URL is set but not used by this service")
	}

	ctx := context.Background()
	cleanup, err := s.initTracer(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	s.registry = opts.Registry
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	s.metrics = observability.NewTwinMetrics(s.registry)
	if err := s.initMeter(ctx); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize meter: %w", err)
	}

	if err := s.initCatalog(); err != nil {
		s.cleanup()
		return nil, err
	}
	s.store = sensors.NewStore(s.catalog, sensors.NewGenerator(nil))

	if err := s.initLLMClient(ctx, opts.LLM); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	if err := s.initConversations(opts.Conversations); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to open conversation store: %w", err)
	}
	s.initRetriever(ctx, opts.Retriever)

	builder, err := prompts.NewBuilder(prompts.Config{
		PlantName:     s.config.PlantName,
		PlantLocation: s.config.PlantLocation,
	})
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to build prompts: %w", err)
	}
	gpt, err := services.NewPlantGPT(s.convs, s.retriever, builder, s.llmClient)
	if err != nil {
		s.cleanup()
		return nil, err
	}
	if s.config.AgentsEnabled {
		s.runner = agents.NewRunner(agents.DefaultRegistry(), builder, s.llmClient)
	}

	contentGuard, err := guard.New()
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to load content guard: %w", err)
	}

	s.initBackground(opts.HistorySink)
	s.initRouter(builder, gpt, contentGuard)
	return s, nil
}

// Run implements Service.
func (s *service) Run(ctx context.Context) error {
	defer s.cleanup()

	if s.ttlScheduler != nil {
		if err := s.ttlScheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start TTL scheduler: %w", err)
		}
		slog.Info("Conversation TTL scheduler started",
			"interval", s.config.ConversationSweep.String(),
			"idle_ttl", s.config.ConversationIdleTTL.String())
	}
	if s.recorder != nil {
		if err := s.recorder.Start(ctx); err != nil {
			return fmt.Errorf("failed to start history recorder: %w", err)
		}
		slog.Info("Background sensor refresh started", "interval", s.config.HistoryInterval.String())
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting cement twin server", "port", s.config.Port, "environment", s.config.Environment)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		slog.Info("Shutting down cement twin server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// Router implements Service.
func (s *service) Router() *gin.Engine { return s.router }

// Close implements Service.
func (s *service) Close() { s.cleanup() }

// =============================================================================
// Private Initialization Methods
// =============================================================================

// initTracer installs the configured span exporter.
//
// # Limitations
//
//   - The OTLP exporter uses an insecure gRPC connection.
func (s *service) initTracer(ctx context.Context) (func(context.Context), error) {
	var exporter sdktrace.SpanExporter
	switch s.config.TracingExporter {
	case ExporterNone:
		return func(context.Context) {}, nil
	case ExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		exporter = exp
	default:
		conn, err := grpc.NewClient(s.config.OTelEndpoint,
			grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
		}
		exp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		exporter = exp
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown tracer provider", "error", err)
		}
	}, nil
}

// initMeter installs the otel meter provider carrying the LLM token
// counter. The prometheus exporter registers into the service registry so
// /metrics serves both families.
func (s *service) initMeter(ctx context.Context) error {
	var reader sdkmetric.Reader
	switch s.config.MetricExporter {
	case ExporterNone:
		s.meterCleanup = func(context.Context) {}
		return nil
	case ExporterStdout:
		exp, err := stdoutmetric.New(stdoutmetric.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("create stdout metric exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exp)
	default:
		exp, err := promexporter.New(promexporter.WithRegisterer(s.registry))
		if err != nil {
			return fmt.Errorf("create prometheus exporter: %w", err)
		}
		reader = exp
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(ServiceName)))
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)
	s.meterCleanup = func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := mp.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown meter provider", "error", err)
		}
	}
	return nil
}

func (s *service) initCatalog() error {
	if s.config.CatalogPath == "" {
		s.catalog = catalog.Default()
		return nil
	}
	cat, err := catalog.Load(s.config.CatalogPath)
	if err != nil {
		return fmt.Errorf("failed to load sensor catalog: %w", err)
	}
	slog.Info("Loaded sensor catalog", "path", s.config.CatalogPath, "sensors", cat.Len())
	s.catalog = cat
	return nil
}

// initLLMClient builds the backend. An injected client wins; AIEnabled
// false forces the disabled sentinel.
func (s *service) initLLMClient(ctx context.Context, injected llm.LLMClient) error {
	if injected != nil {
		s.llmClient = injected
		_, disabled := injected.(llm.Disabled)
		_, vision := injected.(llm.VisionClient)
		s.aiOn = !disabled
		s.visionOn = s.aiOn && vision
		return nil
	}
	backend, err := llm.ParseBackend(s.config.LLMBackend)
	if err != nil {
		return err
	}
	if !s.config.AIEnabled || s.config.LLMAPIKey == "" {
		backend = llm.BackendDisabled
	}
	s.aiOn = backend != llm.BackendDisabled
	s.visionOn = backend == llm.BackendGemini || backend == llm.BackendOpenAI
	s.llmClient, err = llm.New(ctx, llm.Config{
		Backend:       backend,
		APIKey:        s.config.LLMAPIKey,
		Model:         s.config.AgentModel,
		VisionModel:   s.config.VisionModel,
		Timeout:       s.config.LLMTimeout,
		RatePerSecond: s.config.LLMRateLimit,
		Burst:         s.config.LLMRateBurst,
	}, s.metrics)
	if err != nil {
		return err
	}
	slog.Info("LLM client initialized", "backend", backend, "ai_enabled", s.aiOn)
	return nil
}

func (s *service) initConversations(injected conversation.Store) error {
	if injected != nil {
		s.convs = injected
		return nil
	}
	if s.config.ConversationBackend == ConversationBadger {
		store, err := conversation.OpenBadgerStore(conversation.BadgerConfig{
			Path:        s.config.ConversationDBPath,
			MaxMessages: s.config.ConversationMaxMessages,
			Logger:      slog.Default(),
		})
		if err != nil {
			return err
		}
		slog.Info("Conversation store opened", "backend", "badger", "path", s.config.ConversationDBPath)
		s.convs = store
		return nil
	}
	s.convs = conversation.NewMemoryStore(s.config.ConversationMaxMessages)
	return nil
}

// initRetriever prefers Weaviate when configured and an embedding key is
// available, falling back to the in-memory built-in knowledge.
func (s *service) initRetriever(ctx context.Context, injected knowledge.Retriever) {
	if injected != nil {
		s.retriever = injected
		return
	}
	s.retriever = knowledge.NewMemoryRetriever(knowledge.Builtin())
	if s.config.WeaviateURL == "" {
		return
	}
	apiKey := s.config.LLMAPIKey
	if llm.Backend(s.config.LLMBackend) != llm.BackendGemini {
		apiKey = ""
	}
	if apiKey == "" {
		slog.Warn("Weaviate configured but no Gemini key for embeddings, using built-in knowledge")
		return
	}
	client, err := knowledge.NewWeaviateClient(s.config.WeaviateURL)
	if err != nil {
		slog.Warn("Weaviate initialization failed, using built-in knowledge", "error", err)
		return
	}
	embedder, err := knowledge.NewGenAIEmbedder(ctx, apiKey, s.config.EmbeddingModel)
	if err != nil {
		slog.Warn("Embedder initialization failed, using built-in knowledge", "error", err)
		return
	}
	wr, err := knowledge.NewWeaviateRetriever(client, embedder)
	if err != nil {
		slog.Warn("Weaviate retriever initialization failed", "error", err)
		return
	}
	if err := wr.EnsureSchema(ctx, knowledge.Builtin()); err != nil {
		slog.Warn("Weaviate schema check failed, using built-in knowledge", "error", err)
		return
	}
	slog.Info("Weaviate knowledge base initialized", "url", s.config.WeaviateURL)
	s.retriever = wr
}

// initBackground builds, but does not start, the ttl scheduler and the
// history recorder.
func (s *service) initBackground(injected history.Sink) {
	ttlCfg := ttl.DefaultSchedulerConfig()
	if s.config.ConversationSweep > 0 {
		ttlCfg.Interval = s.config.ConversationSweep
	}
	if s.config.ConversationIdleTTL > 0 {
		ttlCfg.IdleTTL = s.config.ConversationIdleTTL
	}
	s.config.ConversationSweep, s.config.ConversationIdleTTL = ttlCfg.Interval, ttlCfg.IdleTTL
	s.ttlScheduler = ttl.NewScheduler(s.convs, s.metrics, ttlCfg)

	if !s.config.BackgroundRefresh {
		return
	}
	s.historySink = injected
	if s.historySink == nil && s.config.Influx.URL != "" {
		sink, err := history.NewInfluxSink(s.config.Influx)
		if err != nil {
			slog.Warn("InfluxDB sink unavailable, refreshing without history", "error", err)
		} else {
			s.historySink = sink
		}
	}
	s.recorder = history.NewRecorder(s.store, s.historySink, s.metrics, s.config.HistoryInterval)
}

func (s *service) initRouter(builder *prompts.Builder, gpt *services.PlantGPT, contentGuard *guard.Engine) {
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware(ServiceName))
	s.router.Use(middleware.CORS(s.config.CORSOrigins))
	s.router.Use(middleware.RequestMetrics(s.metrics))

	evaluator := alerts.NewEvaluator(s.catalog, nil)
	deps := routes.Dependencies{
		Info: handlers.ServiceInfo{
			Version:       Version,
			AIEnabled:     s.aiOn,
			VisionEnabled: s.visionOn,
			Catalog:       s.catalog,
			Conversations: s.convs,
			Runner:        s.runner,
		},
		Store:      s.store,
		Simulator:  sensors.NewSimulator(nil),
		Evaluator:  evaluator,
		Aggregator: dashboard.NewAggregator(dashboard.DefaultStaticConfig(), dashboard.DefaultPlants(), nil),
		Builder:    builder,
		LLM:        s.llmClient,
		PlantGPT:   gpt,
		Runner:     s.runner,
		Guard:      contentGuard,
		Observer:   s.metrics,
		Origins:    s.config.CORSOrigins,
		Gatherer:   s.registry,
	}
	if s.config.StreamEnabled {
		deps.StreamInterval = s.config.StreamInterval
		deps.StreamGauge = s.metrics.StreamConnectionsActive
	}
	routes.SetupRoutes(s.router, deps)
}

// cleanup releases all resources held by the service. Safe to call more
// than once.
func (s *service) cleanup() {
	s.closeOnce.Do(func() {
		if s.ttlScheduler != nil {
			if err := s.ttlScheduler.Stop(); err != nil {
				slog.Warn("TTL scheduler stop error", "error", err)
			}
		}
		if s.recorder != nil {
			if err := s.recorder.Stop(); err != nil {
				slog.Warn("History recorder stop error", "error", err)
			}
		}
		if s.historySink != nil {
			s.historySink.Close()
		}
		if s.convs != nil {
			if err := s.convs.Close(); err != nil {
				slog.Warn("Conversation store close error", "error", err)
			}
		}
		if s.meterCleanup != nil {
			s.meterCleanup(context.Background())
		}
		if s.tracerCleanup != nil {
			s.tracerCleanup(context.Background())
		}
	})
}

var _ Service = (*service)(nil)
