// Package raw decodes camera RAW files into 8-bit RGB images.
//
// The built-in decoder parses TIFF-based containers (DNG, NEF, CR2, ARW,
// PEF, SRW and the ORF/RW2 variants), locates CFA sensor data stored
// uncompressed or as lossless JPEG (strips or tiles) and develops it with
// a fixed pipeline: linearization, black and white level normalization,
// bilinear demosaic, as-shot white balance and the sRGB tone curve. Files
// the built-in decoder cannot handle go to an optional external
// [Fallback] (libvips in production) and then to the largest embedded
// JPEG preview, whichever has more pixels.
//
// All failures match [ErrRawProcessing] via errors.Is.
package raw
