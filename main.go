package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"glimpse/internal/config"
	"glimpse/internal/database"
	"glimpse/internal/handlers"
	"glimpse/internal/library"
	"glimpse/internal/logging"
	"glimpse/internal/media"
	"glimpse/internal/memory"
	"glimpse/internal/metrics"
	"glimpse/internal/middleware"
	"glimpse/internal/startup"
	"glimpse/internal/workers"

	"github.com/gorilla/mux"
)

// collectorInterval is how often store and cache gauges are refreshed.
const collectorInterval = time.Minute

func main() {
	startTime := time.Now()

	memResult := memory.ConfigureFromEnv()

	cfg, err := startup.LoadConfig()
	if err != nil {
		logging.Fatal("Configuration error: %v", err)
	}
	startup.LogMemoryConfig(memResult)

	lock, err := startup.AcquireInstanceLock(cfg.LockPath)
	if err != nil {
		logging.Fatal("Cannot start: %v", err)
	}
	defer releaseLock(lock)

	dbStart := time.Now()
	db, err := database.New(context.Background(), cfg.DatabasePath)
	if err != nil {
		logging.Fatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	prefs, err := config.Load(cfg.PreferencesPath)
	if err != nil {
		logging.Fatal("Failed to load preferences: %v", err)
	}

	if err := media.InitVips(); err != nil {
		logging.Warn("libvips unavailable, RAW files use the built-in decoder only: %v", err)
	}
	defer media.ShutdownVips()
	startup.LogImagingInit(media.IsVipsAvailable(), workers.Resolve(cfg.ThumbnailWorkers, prefs.ThumbnailThreads()))

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	lib, err := library.New(library.Options{
		DB:             db,
		CacheDir:       cfg.CacheDir,
		Preferences:    prefs,
		Monitor:        monitor,
		MaxStackBytes:  cfg.RawWorkerMaxStack,
		ThreadOverride: cfg.ThumbnailWorkers,
	})
	if err != nil {
		logging.Fatal("Failed to initialize library: %v", err)
	}

	var collector *metrics.Collector
	if cfg.MetricsEnabled {
		metrics.InitializeMetrics()
		metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
		collector = metrics.NewCollector(lib, cfg.DatabasePath, collectorInterval)
		collector.Start()
	}

	h := handlers.New(lib)
	router := setupRouter(h, cfg.MetricsEnabled)
	startup.LogHTTPRoutes(router)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = cfg.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(
		middleware.Compression(middleware.DefaultCompressionConfig())(router),
	)

	// Request contexts derive from baseCtx so that shutdown ends open
	// event streams.
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Event streams stay open for the length of a batch.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		handleShutdown(srv, cancelRequests, lib, collector, monitor)
		close(done)
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            cfg.Port,
		MetricsEnabled:  cfg.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logging.Error("Server error: %v", err)
		return
	}
	<-done
}

func setupRouter(h *handlers.Handlers, metricsEnabled bool) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)
	if metricsEnabled {
		r.Handle("/metrics", h.MetricsHandler()).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()

	// Folders and thumbnail batches
	api.HandleFunc("/folders/open", h.OpenFolder).Methods(http.MethodPost)
	api.HandleFunc("/batches/{id}", h.GetBatch).Methods(http.MethodGet)
	api.HandleFunc("/batches/{id}/events", h.StreamBatch).Methods(http.MethodGet)

	// Sessions; {session} may be "current"
	api.HandleFunc("/sessions", h.ListSessions).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{session}", h.GetSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{session}/labels", h.GetLabels).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{session}/labels", h.SetLabel).Methods(http.MethodPut)
	api.HandleFunc("/sessions/{session}/labels/{filename}", h.GetLabel).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{session}/selection", h.SaveSelection).Methods(http.MethodPut)
	api.HandleFunc("/sessions/{session}/thumbnails/{filename}", h.GetThumbnail).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{session}/previews/{filename}", h.GetPreview).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{session}/cache/{filename}", h.GetCacheStatus).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{session}/exif/{filename}", h.GetExif).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{session}/cache", h.ClearSessionCache).Methods(http.MethodDelete)

	// Export and maintenance
	api.HandleFunc("/export", h.Export).Methods(http.MethodPost)
	api.HandleFunc("/cache", h.ClearAllCache).Methods(http.MethodDelete)
	api.HandleFunc("/labels", h.ClearAllLabels).Methods(http.MethodDelete)
	api.HandleFunc("/storage", h.GetStorage).Methods(http.MethodGet)
	api.HandleFunc("/system", h.GetSystem).Methods(http.MethodGet)
	api.HandleFunc("/system/threads", h.SetThreads).Methods(http.MethodPut)

	return r
}

func handleShutdown(srv *http.Server, cancelRequests context.CancelFunc, lib *library.Library, collector *metrics.Collector, monitor *memory.Monitor) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	cancelRequests()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Cancelling thumbnail batches")
	lib.Close()
	startup.LogShutdownStepComplete("Thumbnail batches finished")

	if collector != nil {
		collector.Stop()
	}
	monitor.Stop()

	startup.LogShutdownComplete()
}

func releaseLock(lock *startup.InstanceLock) {
	if err := lock.Release(); err != nil {
		logging.Warn("Failed to release instance lock: %v", err)
	}
}
