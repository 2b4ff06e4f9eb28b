package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"glimpse/internal/config"
	"glimpse/internal/database"
	"glimpse/internal/library"
	"glimpse/internal/logging"
	"glimpse/internal/media"
	"glimpse/internal/startup"
)

type globalFlags struct {
	dataDir    string
	configPath string
	jsonOutput bool
	verbose    bool
	debug      bool
}

type commandContext struct {
	flags *globalFlags
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

// resolveConfig applies the flag overrides to the environment config.
func (c *commandContext) resolveConfig() (*startup.Config, error) {
	cfg, err := startup.ResolveConfig()
	if err != nil {
		return nil, err
	}
	if dir := strings.TrimSpace(c.flags.dataDir); dir != "" {
		cfg.SetDataDir(dir)
	}
	if path := strings.TrimSpace(c.flags.configPath); path != "" {
		cfg.PreferencesPath = path
	}
	return cfg, nil
}

type libraryOptions struct {
	vips bool
}

// withLibrary opens the data directory for the duration of fn.
func (c *commandContext) withLibrary(ctx context.Context, opts libraryOptions, fn func(*library.Library) error) error {
	cfg, err := c.resolveConfig()
	if err != nil {
		return err
	}
	if err := startup.PrepareDirectories(cfg); err != nil {
		return err
	}

	lock, err := startup.AcquireInstanceLock(cfg.LockPath)
	if errors.Is(err, startup.ErrAlreadyRunning) {
		return fmt.Errorf("%w (%s); stop the glimpse server or use its HTTP API", err, cfg.DataDir)
	}
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logging.Warn("Failed to release instance lock: %v", err)
		}
	}()

	db, err := database.New(ctx, cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	prefs, err := config.Load(cfg.PreferencesPath)
	if err != nil {
		return err
	}

	if opts.vips {
		if err := media.InitVips(); err != nil {
			logging.Warn("libvips unavailable: %v", err)
		}
		defer media.ShutdownVips()
	}

	lib, err := library.New(library.Options{
		DB:             db,
		CacheDir:       cfg.CacheDir,
		Preferences:    prefs,
		MaxStackBytes:  cfg.RawWorkerMaxStack,
		ThreadOverride: cfg.ThumbnailWorkers,
	})
	if err != nil {
		return err
	}
	defer lib.Close()

	return fn(lib)
}
