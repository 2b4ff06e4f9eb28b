// Package handlers exposes the photo library over JSON/HTTP.
//
// It includes handlers for:
//   - Opening folders and following thumbnail batches (Server-Sent Events)
//   - Labels, viewer position and sessions
//   - Serving cached thumbnails and RAW previews, and EXIF data
//   - Exporting kept images
//   - Cache maintenance, storage and thread settings
//   - Health checks, version and Prometheus metrics
package handlers
