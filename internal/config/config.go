package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"glimpse/internal/filesystem"

	"github.com/pelletier/go-toml/v2"
)

// FileName is the preferences file name inside the config directory.
const FileName = "config.toml"

// Settings is the on-disk preferences document.
type Settings struct {
	// ThumbnailThreads overrides the worker count; nil means auto.
	ThumbnailThreads *int `toml:"thumbnail_threads,omitempty"`
}

// Preferences is a concurrency-safe, file-backed Settings value.
type Preferences struct {
	path     string
	mu       sync.RWMutex
	settings Settings
}

// DefaultPath returns <user config dir>/Glimpse/config.toml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "Glimpse", FileName), nil
}

// Load reads preferences from path. A missing file yields defaults.
func Load(path string) (*Preferences, error) {
	p := &Preferences{path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, &p.settings); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := p.settings.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate rejects settings that cannot be applied.
func (s Settings) Validate() error {
	if s.ThumbnailThreads != nil && *s.ThumbnailThreads <= 0 {
		return fmt.Errorf("thumbnail_threads must be positive, got %d", *s.ThumbnailThreads)
	}
	return nil
}

// Path returns the file backing these preferences.
func (p *Preferences) Path() string {
	return p.path
}

// Snapshot returns a copy of the current settings.
func (p *Preferences) Snapshot() Settings {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := p.settings
	if s.ThumbnailThreads != nil {
		n := *s.ThumbnailThreads
		s.ThumbnailThreads = &n
	}
	return s
}

// ThumbnailThreads returns the worker override, or nil for auto.
func (p *Preferences) ThumbnailThreads() *int {
	return p.Snapshot().ThumbnailThreads
}

// SetThumbnailThreads stores a new override (nil restores auto) and saves
// the file. The in-memory value only changes when the write succeeds.
func (p *Preferences) SetThumbnailThreads(n *int) error {
	next := Settings{}
	if n != nil {
		v := *n
		next.ThumbnailThreads = &v
	}
	if err := next.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := save(p.path, next); err != nil {
		return err
	}
	p.settings = next
	return nil
}

func save(path string, s Settings) error {
	if path == "" {
		return nil
	}
	return filesystem.WriteAtomic(path, func(w io.Writer) error {
		if err := toml.NewEncoder(w).Encode(s); err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		return nil
	})
}
