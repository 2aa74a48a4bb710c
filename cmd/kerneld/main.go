// Command kerneld is the kernel runtime's process entrypoint: it loads
// configuration, opens the storage backend, applies migrations, wires the
// hook/workflow/session/vector/debug/daemon components together, and runs
// until an interrupt or terminate signal triggers a graceful shutdown.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/flowforge/kernel/internal/config"
	"github.com/flowforge/kernel/internal/platform/migrations"
	kerrors "github.com/flowforge/kernel/infrastructure/errors"
	"github.com/flowforge/kernel/infrastructure/logging"
	"github.com/flowforge/kernel/infrastructure/metrics"
	"github.com/flowforge/kernel/infrastructure/resilience"
	"github.com/flowforge/kernel/kernel/ctx"
	"github.com/flowforge/kernel/kernel/daemon"
	"github.com/flowforge/kernel/kernel/debug"
	"github.com/flowforge/kernel/kernel/hooks"
	"github.com/flowforge/kernel/kernel/session"
	"github.com/flowforge/kernel/kernel/storage"
	"github.com/flowforge/kernel/kernel/vector"
	"github.com/flowforge/kernel/kernel/workflow"
	"github.com/flowforge/kernel/pkg/tracing"
	"github.com/flowforge/kernel/pkg/version"
)

// bootstrapTenant is the tenant id kerneld operates under for its own
// self-check session and vector namespace. kerneld provisions no other
// tenants; the C17 debug surface has no tenant endpoint.
const bootstrapTenant = "system"

func main() {
	addr := flag.String("addr", "", "override the debug/health listener address")
	dsn := flag.String("dsn", "", "override the storage backend DSN")
	driver := flag.String("driver", "", "override the storage backend driver (postgres|sqlite3)")
	configFile := flag.String("config", "", "path to a kerneld.yaml config file")
	skipMigrate := flag.Bool("skip-migrate", false, "skip applying migrations on start")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.FullVersion())
		return
	}

	if *configFile != "" {
		os.Setenv("CONFIG_FILE", *configFile)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "kerneld: load config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		host, port, ok := splitHostPort(*addr)
		if ok {
			cfg.Server.Host, cfg.Server.Port = host, port
		}
	}
	if *dsn != "" {
		cfg.Database.DSN = *dsn
	}
	if *driver != "" {
		cfg.Database.Driver = *driver
	}

	log := logging.New("kerneld", cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg, *skipMigrate, log); err != nil {
		log.Error(context.Background(), "kerneld exited with error", err, nil)
		os.Exit(1)
	}
}

func run(cfg *config.Config, skipMigrate bool, log *logging.Logger) error {
	ctxBg, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := openBackend(ctxBg, cfg.Database)
	if err != nil {
		return fmt.Errorf("open storage backend: %w", err)
	}

	if !skipMigrate && cfg.Database.MigrateOnStart {
		if err := migrations.Apply(ctxBg, backend.DB().DB); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		log.Info(ctxBg, "migrations applied", nil)
	}

	eventLog := storage.NewEventLog(backend)
	hookHistory := storage.NewHookHistory(backend)
	sessionStore := storage.NewSessionStore(backend)

	svcMetrics := metrics.New("kerneld")

	registry := hooks.NewRegistry(true)
	executor := hooks.NewExecutor(registry, log, resilience.DefaultConfig())

	metricsRetention := time.Duration(cfg.Session.MetricsRetentionHours) * time.Hour
	metricsCollector := session.NewCollector(prometheus.DefaultRegisterer, session.NewMemoryMetricsStorage(), cfg.Session.PrivacyMode, metricsRetention, svcMetrics)

	lifecycle := session.NewLifecycle()
	instrumented := session.Lifecycle{
		Start:      metricsCollector.Wrap("kerneld", lifecycle.Start),
		End:        metricsCollector.Wrap("kerneld", lifecycle.End),
		Checkpoint: metricsCollector.Wrap("kerneld", lifecycle.Checkpoint),
		Restore:    metricsCollector.Wrap("kerneld", lifecycle.Restore),
		Save:       metricsCollector.Wrap("kerneld", lifecycle.Save),
	}
	if err := registerSessionHooks(registry, instrumented); err != nil {
		return fmt.Errorf("register session hooks: %w", err)
	}

	tracerProvider, err := tracing.NewTracerProvider(ctxBg, "kerneld")
	if err != nil {
		return fmt.Errorf("build tracer provider: %w", err)
	}
	defer tracerProvider.Shutdown(ctxBg)

	state := storage.NewStateBridge(backend)
	engine := workflow.NewEngine(bootstrapRunner{}, state)
	engine.Tracer = tracing.NewTracer(tracerProvider, "kerneld-workflow")

	scheduler := workflow.NewScheduler(engine, log)
	scheduler.Start()
	defer scheduler.Stop()

	vectorStore := vector.NewStore(vector.Config{Dimensions: 1536, Metric: vector.Cosine})
	tenantManager := vector.NewManager(vectorStore, noopEventBus{})

	debugCache := debug.NewCache(cfg.Debug.MaxCachedVariables)
	debugCache.SetDebugMode(debug.ModeFull)

	if err := bootstrapSelfCheck(ctxBg, log, bootstrapComponents{
		eventLog:      eventLog,
		hookHistory:   hookHistory,
		sessionStore:  sessionStore,
		executor:      executor,
		engine:        engine,
		tenantManager: tenantManager,
		debugCache:    debugCache,
	}); err != nil {
		return fmt.Errorf("bootstrap self-check: %w", err)
	}

	rotator := daemon.NewLogRotator(daemon.LogRotationConfig{
		BasePath: cfg.Logging.RotatePath,
		MaxSize:  int64(cfg.Logging.MaxSizeMB) * 1024 * 1024,
		MaxFiles: cfg.Logging.MaxFiles,
		Compress: cfg.Logging.Compress,
	})
	if err := rotator.Open(); err != nil {
		return fmt.Errorf("open log rotator: %w", err)
	}
	defer rotator.Close()
	writer, err := daemon.NewPrefixedWriter(rotator, cfg.Logging.FilePrefix)
	if err != nil {
		return fmt.Errorf("open prefixed log writer: %w", err)
	}

	zapLog := daemon.NewZapSink(writer)
	defer zapLog.Sync()
	hookTrace := daemon.NewZerologSink(writer)
	hookTrace.Info().Msg("hook execution trace sink ready")

	monitor, err := daemon.NewHealthMonitor()
	if err != nil {
		return fmt.Errorf("start health monitor: %w", err)
	}
	debugMux := http.NewServeMux()
	debugMux.Handle("/healthz", monitor.Router())
	debugMux.Handle("/debug/", debug.Router(debugCache))
	healthSrv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: debugMux,
	}
	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctxBg, "health listener stopped", err, nil)
		}
	}()

	root := ctx.New()
	log.Info(ctxBg, "kerneld started", map[string]interface{}{"version": version.Version, "git_commit": version.GitCommit})
	log.Info(ctxBg, fmt.Sprintf("root execution context %s ready", root.ID), nil)
	zapLog.Info("kerneld started", zap.String("execution_context_id", root.ID))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Info(ctxBg, "kerneld shutting down", nil)
	zapLog.Info("kerneld shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = healthSrv.Shutdown(shutdownCtx)
	return shutdown(shutdownCtx, backend)
}

func shutdown(ctx context.Context, backend *storage.SQLBackend) error {
	done := make(chan error, 1)
	go func() { done <- backend.DB().Close() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func openBackend(ctx context.Context, dbCfg config.DatabaseConfig) (*storage.SQLBackend, error) {
	switch dbCfg.Driver {
	case "postgres":
		return storage.OpenPostgres(ctx, dbCfg.DSN)
	case "sqlite3", "":
		return storage.OpenSQLite(ctx, dbCfg.DSN)
	default:
		return nil, kerrors.Validation("database.driver", fmt.Sprintf("unsupported driver %q", dbCfg.Driver))
	}
}

func registerSessionHooks(registry *hooks.Registry, lc session.Lifecycle) error {
	pairs := []struct {
		Point hooks.HookPoint
		Hook  hooks.Hook
	}{
		{hooks.SessionStart, lc.Start},
		{hooks.SessionEnd, lc.End},
		{hooks.SessionCheckpoint, lc.Checkpoint},
		{hooks.SessionRestore, lc.Restore},
		{hooks.SessionSave, lc.Save},
	}
	return registry.RegisterBulk(pairs)
}

func splitHostPort(addr string) (string, int, bool) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return "", 0, false
	}
	host := addr[:idx]
	var port int
	if _, err := fmt.Sscanf(addr[idx+1:], "%d", &port); err != nil {
		return "", 0, false
	}
	return host, port, true
}

// bootstrapRunner executes the single "kerneld.selfcheck" custom step the
// daemon drives through the engine at startup; any other step means no
// language host has been wired for it yet.
type bootstrapRunner struct{}

func (bootstrapRunner) Run(parent context.Context, step workflow.Step, execCtx *ctx.ExecutionContext) (interface{}, error) {
	if step.Kind == workflow.StepCustom && step.FunctionName == "kerneld.selfcheck" {
		return map[string]interface{}{"ok": true, "execution_context_id": execCtx.ID}, nil
	}
	return nil, kerrors.Fatal(fmt.Sprintf("no step runner configured for step %q", step.Name), nil)
}

type noopEventBus struct{}

func (noopEventBus) Publish(ctx context.Context, eventType string, payload map[string]interface{}) {}

// bootstrapComponents bundles the pieces bootstrapSelfCheck drives through
// one real, end-to-end pass at startup: a session created and run through
// the hook executor, a workflow run through the engine, a tenant created and
// a probe vector inserted for it, and a debug-cache entry recorded.
type bootstrapComponents struct {
	eventLog      *storage.EventLog
	hookHistory   *storage.HookHistory
	sessionStore  *storage.SessionStore
	executor      *hooks.Executor
	engine        *workflow.Engine
	tenantManager *vector.Manager
	debugCache    *debug.Cache
}

// bootstrapSelfCheck exercises the full hook/session/workflow/vector/debug
// path once at startup: it opens a session, runs it through the registered
// SessionStart hooks, persists the resulting event and hook-history rows,
// drives a trivial workflow through the engine, provisions the bootstrap
// tenant's vector namespace, and records the outcome in the debug cache.
// A failure here means the daemon's own wiring is broken, so it is fatal.
func bootstrapSelfCheck(parent context.Context, log *logging.Logger, c bootstrapComponents) error {
	tctx := storage.WithTenant(parent, bootstrapTenant)
	sessionID := session.ID()
	now := time.Now()

	if err := c.sessionStore.CreateSession(tctx, storage.SessionRecord{
		SessionID:      sessionID,
		SessionData:    []byte("{}"),
		Status:         string(session.StatusActive),
		CreatedAt:      now,
		LastAccessedAt: now,
	}); err != nil {
		return fmt.Errorf("create bootstrap session: %w", err)
	}

	hctx := &hooks.Context{
		Point: hooks.SessionStart,
		Data:  map[string]interface{}{"session_id": sessionID},
	}
	outcome, err := c.executor.Execute(parent, hctx)
	if err != nil {
		return fmt.Errorf("execute session start hooks: %w", err)
	}

	payload, err := json.Marshal(outcome.Context.Data)
	if err != nil {
		return fmt.Errorf("marshal session start payload: %w", err)
	}
	if _, err := c.eventLog.StoreEvent(tctx, storage.EventRecord{
		EventID:   sessionID + ":start",
		EventType: "session.start",
		Timestamp: now,
		Language:  "native",
		Payload:   payload,
	}); err != nil {
		return fmt.Errorf("append session start event: %w", err)
	}

	compressed, err := storage.CompressContext(payload)
	if err != nil {
		return fmt.Errorf("compress session start context: %w", err)
	}
	if err := c.hookHistory.RecordExecution(tctx, storage.HookExecutionRecord{
		ExecutionID:         sessionID + ":session.start",
		HookID:              "session.start",
		HookType:            string(hooks.LanguageNative),
		HookContext:         compressed,
		Timestamp:           now,
		TriggeringComponent: "kerneld.bootstrap",
		RetentionPriority:   1,
		ContextSize:         len(payload),
	}); err != nil {
		return fmt.Errorf("record session start history: %w", err)
	}

	root := ctx.New()
	execCtx := root.CreateChild(ctx.Session(sessionID), ctx.Inherit)
	steps := []workflow.Step{{
		ID:           "selfcheck",
		Name:         "kerneld self-check",
		Kind:         workflow.StepCustom,
		FunctionName: "kerneld.selfcheck",
	}}
	if _, _, err := c.engine.Execute(parent, execCtx, "kerneld-bootstrap", steps); err != nil {
		return fmt.Errorf("run bootstrap workflow: %w", err)
	}

	if err := c.tenantManager.CreateTenant(parent, vector.TenantConfig{
		TenantID: bootstrapTenant,
		Name:     "kerneld system tenant",
		Active:   true,
	}); err != nil {
		return fmt.Errorf("create bootstrap tenant: %w", err)
	}
	probe := make([]float32, 1536)
	probe[0] = 1
	if _, err := c.tenantManager.InsertVectors(parent, bootstrapTenant, []vector.Entry{{
		ID:        vector.NewID(),
		Embedding: probe,
		Metadata:  map[string]interface{}{"purpose": "bootstrap-probe"},
	}}); err != nil {
		return fmt.Errorf("insert bootstrap probe vector: %w", err)
	}

	c.debugCache.CacheVariable("bootstrap.session_id", sessionID)

	log.Info(parent, "bootstrap self-check complete", map[string]interface{}{"session_id": sessionID})
	return nil
}
