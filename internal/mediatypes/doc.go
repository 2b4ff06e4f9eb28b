// Package mediatypes classifies photo files by extension.
//
// This package exists as a dependency-free foundation that can be imported by
// the scanner, the thumbnail generator and the RAW decoder without creating
// import cycles.
//
// # File Types
//
//	mediatypes.FileTypeImage // standard raster formats decoded directly (jpg, png, tiff, webp, ...)
//	mediatypes.FileTypeRaw   // camera RAW formats that need the demosaic pipeline (nef, arw, cr2, dng, ...)
//	mediatypes.FileTypeOther // everything else; ignored by the scanner
//
// # Extension Detection
//
// Comparison is case-insensitive; pass either the bare extension or a file name:
//
//	mediatypes.Classify("DSC_0001.NEF") // FileTypeRaw
//	mediatypes.GetFileType(".jpg")      // FileTypeImage
package mediatypes
