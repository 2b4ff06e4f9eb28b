package handlers

import (
	"time"

	"glimpse/internal/library"
)

// Handlers serves the library API.
type Handlers struct {
	lib      *library.Library
	progress *progressHub
	started  time.Time
}

func New(lib *library.Library) *Handlers {
	return &Handlers{
		lib:      lib,
		progress: newProgressHub(),
		started:  time.Now(),
	}
}
