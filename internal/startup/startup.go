package startup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/gorilla/mux"

	"glimpse/internal/logging"
	"glimpse/internal/memory"
	"glimpse/internal/workers"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// DefaultRawWorkerMaxStack leaves the runtime's goroutine stack ceiling
// (1 GiB on 64-bit platforms) untouched. A positive RAW_WORKER_MAX_STACK
// only has an effect when it is above the current ceiling.
const DefaultRawWorkerMaxStack = 0

// ErrAlreadyRunning is returned by AcquireInstanceLock when another glimpse
// process holds the data directory.
var ErrAlreadyRunning = errors.New("another glimpse instance is using this data directory")

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	DataDir         string
	Port            string
	MetricsEnabled  bool
	LogHealthChecks bool

	// RawWorkerMaxStack is the goroutine stack ceiling in bytes for RAW
	// batches; 0 keeps the runtime default.
	RawWorkerMaxStack int
	// ThumbnailWorkers is the THUMBNAIL_WORKERS override; 0 means automatic.
	ThumbnailWorkers int

	// Derived paths
	DatabasePath    string
	CacheDir        string
	LockPath        string
	PreferencesPath string
}

// DefaultDataDir returns the per-user data directory, honoring XDG_DATA_HOME.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "Glimpse")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "Glimpse")
	}
	return "Glimpse"
}

// ResolveConfig reads the environment and derives all paths without touching
// the filesystem.
func ResolveConfig() (*Config, error) {
	dataDir, err := filepath.Abs(getEnv("GLIMPSE_DATA_DIR", DefaultDataDir()))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	maxStack := getEnvInt("RAW_WORKER_MAX_STACK", DefaultRawWorkerMaxStack)
	if maxStack < 0 {
		logging.Warn("RAW_WORKER_MAX_STACK must not be negative, keeping the runtime default")
		maxStack = DefaultRawWorkerMaxStack
	}

	rawThreads := os.Getenv(workers.EnvOverride)
	threads, ok := workers.ParseOverride(rawThreads)
	if !ok && rawThreads != "" {
		logging.Warn("%s must be a positive integer, ignoring %q", workers.EnvOverride, rawThreads)
	}

	prefsPath := os.Getenv("GLIMPSE_CONFIG")
	if prefsPath == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			prefsPath = filepath.Join(dir, "Glimpse", "config.toml")
		}
	}

	config := &Config{
		Port:              getEnv("PORT", "8080"),
		MetricsEnabled:    getEnvBool("METRICS_ENABLED", true),
		LogHealthChecks:   getEnvBool("LOG_HEALTH_CHECKS", false),
		RawWorkerMaxStack: maxStack,
		ThumbnailWorkers:  threads,
		PreferencesPath:   prefsPath,
	}
	config.SetDataDir(dataDir)
	return config, nil
}

func stackSetting(n int) string {
	if n == 0 {
		return "runtime default"
	}
	return humanize.IBytes(uint64(n))
}

func workerSetting(n int) string {
	if n == 0 {
		return "auto"
	}
	return strconv.Itoa(n)
}

// SetDataDir moves the data directory and every path derived from it.
func (c *Config) SetDataDir(dir string) {
	c.DataDir = dir
	c.DatabasePath = filepath.Join(dir, "glimpse.db")
	c.CacheDir = filepath.Join(dir, "cache")
	c.LockPath = filepath.Join(dir, "glimpse.lock")
}

// LoadConfig prints the banner, resolves configuration and prepares the data
// and cache directories.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	config, err := ResolveConfig()
	if err != nil {
		return nil, err
	}

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  GLIMPSE_DATA_DIR:      %s", config.DataDir)
	logging.Info("  PORT:                  %s", config.Port)
	logging.Info("  METRICS_ENABLED:       %v", config.MetricsEnabled)
	logging.Info("  LOG_HEALTH_CHECKS:     %v", config.LogHealthChecks)
	logging.Info("  RAW_WORKER_MAX_STACK:  %s", stackSetting(config.RawWorkerMaxStack))
	logging.Info("  THUMBNAIL_WORKERS:     %s", workerSetting(config.ThumbnailWorkers))
	logging.Info("  LOG_LEVEL:             %s", logging.GetLevel())
	logging.Info("  Preferences file:      %s", config.PreferencesPath)

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	if err := PrepareDirectories(config); err != nil {
		return nil, err
	}

	return config, nil
}

// PrepareDirectories creates the data and cache directories and checks that
// the data directory is writable.
func PrepareDirectories(config *Config) error {
	if err := ensureDirectory(config.DataDir, "data"); err != nil {
		return fmt.Errorf("data directory error: %w", err)
	}
	if err := testWriteAccess(config.DataDir); err != nil {
		return fmt.Errorf("data directory is not writable: %w", err)
	}
	logging.Info("  [OK] Data directory is writable")

	if err := ensureDirectory(config.CacheDir, "cache"); err != nil {
		return fmt.Errorf("cache directory error: %w", err)
	}
	logging.Info("  [OK] Cache directory ready: %s", config.CacheDir)
	return nil
}

// InstanceLock is an advisory lock on the data directory.
type InstanceLock struct {
	lock *flock.Flock
}

// AcquireInstanceLock takes the lock file at path without blocking. It
// returns ErrAlreadyRunning when another process holds it.
func AcquireInstanceLock(path string) (*InstanceLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}

	logging.Debug("  Instance lock acquired: %s", path)
	return &InstanceLock{lock: lock}, nil
}

// Release unlocks the data directory.
func (l *InstanceLock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}

// LogMemoryConfig logs the outcome of memory.ConfigureFromEnv
func LogMemoryConfig(result memory.ConfigResult) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("MEMORY CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	switch result.Source {
	case "GOMEMLIMIT":
		logging.Info("  GOMEMLIMIT (from env): %d bytes", result.GoMemLimit)
	case "MEMORY_LIMIT":
		logging.Info("  Container limit:       %d bytes", result.ContainerLimit)
		logging.Info("  GOMEMLIMIT:            %d bytes (%.0f%%)", result.GoMemLimit, result.Ratio*100)
	default:
		logging.Info("  No memory limit configured, RAW backpressure disabled")
	}
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogImagingInit logs which decoders are available for thumbnail generation
func LogImagingInit(vipsAvailable bool, threads int) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("IMAGING INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Thumbnail workers:  %d", threads)
	if vipsAvailable {
		logging.Info("  [OK] libvips available for RAW fallback decoding")
	} else {
		logging.Info("  libvips not initialized, RAW decoding uses the built-in decoder only")
	}
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes at debug level
func LogHTTPRoutes(router *mux.Router) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if !logging.IsDebugEnabled() {
		return
	}

	routes, err := GetRoutes(router)
	if err != nil {
		logging.Warn("error walking routes: %v", err)
	}

	logging.Debug("  Registered routes (%d total):", len(routes))

	groups := make(map[string][]RouteInfo)
	for _, route := range routes {
		prefix := getRouteGroup(route.Path)
		groups[prefix] = append(groups[prefix], route)
	}

	groupKeys := make([]string, 0, len(groups))
	for k := range groups {
		groupKeys = append(groupKeys, k)
	}
	sort.Strings(groupKeys)

	for _, group := range groupKeys {
		if group == "" {
			logging.Debug("  [root]")
		} else {
			logging.Debug("  [%s]", group)
		}
		for _, route := range groups[group] {
			logging.Debug("    %-6s %s", route.Method, route.Path)
		}
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("  Application:     http://localhost:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("  Metrics:         http://localhost:%s/metrics", config.Port)
	} else {
		logging.Info("  Metrics:         DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

func printBanner() {
	banner := `
------------------------------------------------------------
          ___ _ _
         / __| (_)_ __  _ __  ___ ___
        | (_ | | | '  \| '_ \(_-</ -_)
         \___|_|_|_|_|_| .__//__/\___|
                       |_|
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))
	logging.Info("  Default workers: %d", workers.Recommended())

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
