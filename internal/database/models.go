package database

import (
	"errors"
	"time"
)

// ErrSessionNotFound is returned when no session row exists for an id.
var ErrSessionNotFound = errors.New("session not found")

// Label is a user tag on one file. The vocabulary is open; only
// LabelRejected has meaning to export.
type Label string

const (
	LabelNone     Label = ""
	LabelAdopted  Label = "adopted"
	LabelRejected Label = "rejected"
)

// Session is one opened folder.
type Session struct {
	ID                string    `json:"id"`
	FolderPath        string    `json:"folderPath"`
	LastOpened        time.Time `json:"lastOpened"`
	LastSelectedIndex int       `json:"lastSelectedIndex"`
	TotalFiles        int       `json:"totalFiles"`
	CreatedAt         time.Time `json:"createdAt"`
}

// FileLabel is one label row.
type FileLabel struct {
	Filename  string    `json:"filename"`
	Label     Label     `json:"label"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ThumbnailCacheEntry records a generated thumbnail (and preview, for RAW
// sources) for one file.
type ThumbnailCacheEntry struct {
	SessionID        string    `json:"sessionId"`
	Filename         string    `json:"filename"`
	CachePath        string    `json:"cachePath"`
	PreviewPath      string    `json:"previewPath,omitempty"`
	OriginalModified time.Time `json:"originalModified"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Stale reports whether the source file has changed since the entry was
// generated. Timestamps are compared at one-second resolution.
func (e ThumbnailCacheEntry) Stale(currentModTime time.Time) bool {
	return currentModTime.Unix() != e.OriginalModified.Unix()
}
