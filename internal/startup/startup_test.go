package startup

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
	if info.OS == "" || info.Arch == "" {
		t.Error("Expected OS and Arch to be set")
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("GLIMPSE_TEST_SET", "custom")
	t.Setenv("GLIMPSE_TEST_EMPTY", "")

	if got := getEnv("GLIMPSE_TEST_SET", "default"); got != "custom" {
		t.Errorf("getEnv(set) = %q, want custom", got)
	}
	if got := getEnv("GLIMPSE_TEST_EMPTY", "default"); got != "default" {
		t.Errorf("getEnv(empty) = %q, want default", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		want         bool
	}{
		{name: "unset uses default true", envValue: "", defaultValue: true, want: true},
		{name: "unset uses default false", envValue: "", defaultValue: false, want: false},
		{name: "true", envValue: "true", defaultValue: false, want: true},
		{name: "false", envValue: "false", defaultValue: true, want: false},
		{name: "one", envValue: "1", defaultValue: false, want: true},
		{name: "zero", envValue: "0", defaultValue: true, want: false},
		{name: "invalid uses default", envValue: "maybe", defaultValue: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GLIMPSE_TEST_BOOL", tt.envValue)
			if got := getEnvBool("GLIMPSE_TEST_BOOL", tt.defaultValue); got != tt.want {
				t.Errorf("getEnvBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("GLIMPSE_TEST_INT", "42")
	if got := getEnvInt("GLIMPSE_TEST_INT", 7); got != 42 {
		t.Errorf("getEnvInt() = %d, want 42", got)
	}

	t.Setenv("GLIMPSE_TEST_INT", "lots")
	if got := getEnvInt("GLIMPSE_TEST_INT", 7); got != 7 {
		t.Errorf("getEnvInt(invalid) = %d, want 7", got)
	}
}

func TestResolveConfig(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("GLIMPSE_DATA_DIR", dataDir)
	t.Setenv("GLIMPSE_CONFIG", filepath.Join(dataDir, "prefs.toml"))
	t.Setenv("PORT", "9999")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("RAW_WORKER_MAX_STACK", "")
	t.Setenv("THUMBNAIL_WORKERS", "6")

	cfg, err := ResolveConfig()
	if err != nil {
		t.Fatalf("ResolveConfig() error = %v", err)
	}

	if cfg.DataDir != dataDir {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, dataDir)
	}
	if cfg.DatabasePath != filepath.Join(dataDir, "glimpse.db") {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.CacheDir != filepath.Join(dataDir, "cache") {
		t.Errorf("CacheDir = %q", cfg.CacheDir)
	}
	if cfg.LockPath != filepath.Join(dataDir, "glimpse.lock") {
		t.Errorf("LockPath = %q", cfg.LockPath)
	}
	if cfg.PreferencesPath != filepath.Join(dataDir, "prefs.toml") {
		t.Errorf("PreferencesPath = %q", cfg.PreferencesPath)
	}
	if cfg.Port != "9999" || cfg.MetricsEnabled {
		t.Errorf("Port = %q, MetricsEnabled = %v", cfg.Port, cfg.MetricsEnabled)
	}
	if cfg.RawWorkerMaxStack != 0 {
		t.Errorf("RawWorkerMaxStack = %d, want 0 (runtime default)", cfg.RawWorkerMaxStack)
	}
	if cfg.ThumbnailWorkers != 6 {
		t.Errorf("ThumbnailWorkers = %d, want 6", cfg.ThumbnailWorkers)
	}
}

func TestResolveConfig_StackAndWorkerOverrides(t *testing.T) {
	tests := []struct {
		name        string
		stack       string
		workers     string
		wantStack   int
		wantWorkers int
	}{
		{name: "unset", wantStack: 0, wantWorkers: 0},
		{name: "raised stack", stack: "2147483648", wantStack: 2 << 30},
		{name: "negative stack ignored", stack: "-1", wantStack: 0},
		{name: "invalid workers ignored", workers: "lots", wantWorkers: 0},
		{name: "zero workers ignored", workers: "0", wantWorkers: 0},
		{name: "workers", workers: "3", wantWorkers: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GLIMPSE_DATA_DIR", t.TempDir())
			t.Setenv("RAW_WORKER_MAX_STACK", tt.stack)
			t.Setenv("THUMBNAIL_WORKERS", tt.workers)

			cfg, err := ResolveConfig()
			if err != nil {
				t.Fatal(err)
			}
			if cfg.RawWorkerMaxStack != tt.wantStack {
				t.Errorf("RawWorkerMaxStack = %d, want %d", cfg.RawWorkerMaxStack, tt.wantStack)
			}
			if cfg.ThumbnailWorkers != tt.wantWorkers {
				t.Errorf("ThumbnailWorkers = %d, want %d", cfg.ThumbnailWorkers, tt.wantWorkers)
			}
		})
	}
}

func TestDefaultDataDirHonorsXDG(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/srv/data")
	if got := DefaultDataDir(); got != filepath.Join("/srv/data", "Glimpse") {
		t.Errorf("DefaultDataDir() = %q", got)
	}
}

func TestPrepareDirectories(t *testing.T) {
	root := t.TempDir()
	cfg := &Config{
		DataDir:  filepath.Join(root, "data"),
		CacheDir: filepath.Join(root, "data", "cache"),
	}

	if err := PrepareDirectories(cfg); err != nil {
		t.Fatalf("PrepareDirectories() error = %v", err)
	}
	if info, err := os.Stat(cfg.CacheDir); err != nil || !info.IsDir() {
		t.Errorf("cache directory not created: %v", err)
	}
}

func TestPrepareDirectories_DataDirIsFile(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "data")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := PrepareDirectories(&Config{DataDir: file, CacheDir: filepath.Join(file, "cache")}); err == nil {
		t.Error("PrepareDirectories() error = nil for a file path")
	}
}

func TestAcquireInstanceLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glimpse.lock")

	first, err := AcquireInstanceLock(path)
	if err != nil {
		t.Fatalf("first AcquireInstanceLock() error = %v", err)
	}

	if _, err := AcquireInstanceLock(path); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second AcquireInstanceLock() error = %v, want ErrAlreadyRunning", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	again, err := AcquireInstanceLock(path)
	if err != nil {
		t.Fatalf("AcquireInstanceLock() after release error = %v", err)
	}
	_ = again.Release()
}

func TestGetRoutes(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/api/sessions", nil).Methods("GET").Name("listSessions")
	router.HandleFunc("/api/labels", nil).Methods("PUT", "DELETE")

	routes, err := GetRoutes(router)
	if err != nil {
		t.Fatalf("GetRoutes() error = %v", err)
	}
	if len(routes) != 3 {
		t.Fatalf("GetRoutes() returned %d routes, want 3", len(routes))
	}
	if routes[0].Name != "listSessions" || routes[0].Method != "GET" {
		t.Errorf("routes[0] = %+v", routes[0])
	}
}

func TestGetRouteGroup(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/sessions/{id}", "api/sessions"},
		{"/api/health", "api/health"},
		{"/metrics", "metrics"},
		{"/", ""},
	}

	for _, tt := range tests {
		if got := getRouteGroup(tt.path); got != tt.want {
			t.Errorf("getRouteGroup(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestConfigSetDataDir(t *testing.T) {
	config := &Config{PreferencesPath: "/etc/glimpse.toml"}
	config.SetDataDir("/srv/glimpse")

	if config.DatabasePath != filepath.Join("/srv/glimpse", "glimpse.db") ||
		config.CacheDir != filepath.Join("/srv/glimpse", "cache") ||
		config.LockPath != filepath.Join("/srv/glimpse", "glimpse.lock") {
		t.Errorf("derived paths not moved: %+v", config)
	}
	if config.PreferencesPath != "/etc/glimpse.toml" {
		t.Error("SetDataDir changed the preferences path")
	}
}
