// Package media finds photos in a folder and derives cached JPEG assets
// from them.
//
// ScanFolder lists the standard and RAW images directly inside a folder in
// filename order. The Generator turns each image into a thumbnail bounded
// by ThumbnailSize and, for RAW sources only, a preview bounded by
// PreviewSize. Outputs are written atomically and an existing output is
// never regenerated; clearing the session cache is the way to force it.
//
// Standard formats are decoded with the imaging package (EXIF orientation
// applied). RAW formats go through raw.Decoder, with libvips registered as
// its fallback when InitVips has succeeded.
package media
