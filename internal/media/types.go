package media

import (
	"path/filepath"
	"strings"
)

const (
	// ThumbnailSize is the bounding square of grid thumbnails.
	ThumbnailSize    = 300
	ThumbnailQuality = 80

	// PreviewSize bounds the detail-view preview generated for RAW sources.
	PreviewSize    = 2000
	PreviewQuality = 90

	// ModTimeLayout formats ImageInfo.ModifiedAt in local time.
	ModTimeLayout = "2006/01/02 15:04"

	// ModTimeUnknown replaces ModifiedAt when a file's metadata is unreadable.
	ModTimeUnknown = "-"
)

// Asset identifies a derived file kind.
type Asset string

const (
	AssetThumbnail Asset = "thumbnail"
	AssetPreview   Asset = "preview"
)

// ImageInfo describes one photo found by ScanFolder.
type ImageInfo struct {
	Filename   string `json:"filename"`
	Path       string `json:"path"`
	MimeType   string `json:"mimeType"`
	Size       int64  `json:"size"`
	ModifiedAt string `json:"modifiedAt"`
}

// NormalizePath converts path separators to forward slashes for display.
func NormalizePath(path string) string {
	return strings.ReplaceAll(filepath.ToSlash(path), `\`, "/")
}

// CacheDirs locates the derived assets of one session.
type CacheDirs struct {
	Thumbnails string
	Previews   string
}

// SessionCacheDirs returns <root>/<sessionID>/{thumbnails,previews}.
func SessionCacheDirs(root, sessionID string) CacheDirs {
	base := filepath.Join(root, sessionID)
	return CacheDirs{
		Thumbnails: filepath.Join(base, "thumbnails"),
		Previews:   filepath.Join(base, "previews"),
	}
}

func stem(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

// ThumbnailPath returns the thumbnail location for a source filename.
func (d CacheDirs) ThumbnailPath(filename string) string {
	return filepath.Join(d.Thumbnails, stem(filename)+".jpg")
}

// PreviewPath returns the preview location for a source filename.
func (d CacheDirs) PreviewPath(filename string) string {
	return filepath.Join(d.Previews, stem(filename)+"_preview.jpg")
}
