package mediatypes

import (
	"path/filepath"
	"strings"
)

// FileType represents the kind of a photo file.
type FileType string

const (
	// FileTypeImage represents a standard raster image.
	FileTypeImage FileType = "image"
	// FileTypeRaw represents a camera RAW file.
	FileTypeRaw FileType = "raw"
	// FileTypeOther represents an unknown or unsupported file type.
	FileTypeOther FileType = "other"
)

// ImageExtensions maps lowercase extensions to supported standard raster formats.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// RawExtensions maps lowercase extensions to supported camera RAW formats,
// keyed to the vendor that produces them.
var RawExtensions = map[string]string{
	".nef": "Nikon",
	".arw": "Sony",
	".cr2": "Canon",
	".cr3": "Canon",
	".raf": "Fujifilm",
	".orf": "Olympus",
	".rw2": "Panasonic",
	".pef": "Pentax",
	".dng": "Adobe",
	".srw": "Samsung",
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".webp": "image/webp",
	".dng":  "image/x-adobe-dng",
	".nef":  "image/x-nikon-nef",
	".arw":  "image/x-sony-arw",
	".cr2":  "image/x-canon-cr2",
	".cr3":  "image/x-canon-cr3",
	".raf":  "image/x-fuji-raf",
	".orf":  "image/x-olympus-orf",
	".rw2":  "image/x-panasonic-rw2",
	".pef":  "image/x-pentax-pef",
	".srw":  "image/x-samsung-srw",
}

// NormalizeExt lowercases an extension and ensures it has a leading dot.
func NormalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// GetFileType returns the FileType for a given file extension, with or
// without the leading dot, in any case.
func GetFileType(ext string) FileType {
	ext = NormalizeExt(ext)
	if ImageExtensions[ext] {
		return FileTypeImage
	}
	if _, ok := RawExtensions[ext]; ok {
		return FileTypeRaw
	}
	return FileTypeOther
}

// Classify returns the FileType of a file name or path.
func Classify(name string) FileType {
	return GetFileType(filepath.Ext(name))
}

// IsRaw reports whether name has a camera RAW extension.
func IsRaw(name string) bool {
	return Classify(name) == FileTypeRaw
}

// IsSupported reports whether name is a standard image or a RAW file.
func IsSupported(name string) bool {
	return Classify(name) != FileTypeOther
}

// GetMimeType returns the MIME type for a file name or path.
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(name string) string {
	if mime, ok := MimeTypes[NormalizeExt(filepath.Ext(name))]; ok {
		return mime
	}
	return "application/octet-stream"
}
